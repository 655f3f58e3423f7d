package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [hash]",
	Short: "List saved revisions, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum revisions to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, closeService, err := openService(cmd.Context(), loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	if len(args) == 1 {
		content, err := svc.Revision(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("read revision %s: %w", args[0], err)
		}
		_, err = os.Stdout.Write(content)
		return err
	}

	revisions, err := svc.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	for _, rev := range revisions {
		fmt.Printf("%s  %s  %s\n", rev.Hash, rev.CreatedAt.Local().Format("2006-01-02 15:04:05"), rev.Message)
	}
	return nil
}
