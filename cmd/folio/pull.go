package main

import (
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch the remote copy if it is newer",
	Long:  "Saves local edits, then replaces the local document with the signed-in user's remote copy when the remote one is newer.",
	RunE:  runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, _ []string) error {
	svc, closeService, err := openService(cmd.Context(), loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	result, err := svc.Pull(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(result)
}
