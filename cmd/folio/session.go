package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Sign in so saves are mirrored remotely",
	Long: "Signs in with a bearer token. With --issue, mints a token for --subject " +
		"using FOLIO_SESSION_SECRET, which is meant for local development.",
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out; saves stay local",
	RunE:  runLogout,
}

var (
	loginIssue   bool
	loginSubject string
	loginName    string
)

func init() {
	loginCmd.Flags().BoolVar(&loginIssue, "issue", false, "Mint a token with the configured secret")
	loginCmd.Flags().StringVar(&loginSubject, "subject", "", "Subject for --issue")
	loginCmd.Flags().StringVar(&loginName, "name", "", "Display name for --issue")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	var token string
	switch {
	case loginIssue:
		if cfg.SessionSecret == "" {
			return session.ErrNoSecret
		}
		if strings.TrimSpace(loginSubject) == "" {
			return errors.New("--subject is required with --issue")
		}
		issued, err := session.IssueToken([]byte(cfg.SessionSecret), loginSubject, loginName, cfg.SessionTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		token = issued
	case len(args) == 1:
		token = strings.TrimSpace(args[0])
	default:
		return errors.New("a token argument or --issue is required")
	}

	svc, closeService, err := openService(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	info, err := svc.SignIn(cmd.Context(), token)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	fmt.Printf("signed in as %s", info.Subject)
	if info.ExpiresAt != nil {
		fmt.Printf(" until %s", info.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Println()
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	svc, closeService, err := openService(cmd.Context(), loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	if err := svc.SignOut(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}
