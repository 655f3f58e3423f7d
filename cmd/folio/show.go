package main

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved document",
	RunE:  runShow,
}

var showStatus bool

func init() {
	showCmd.Flags().BoolVar(&showStatus, "status", false, "Print the autosave status and validation warnings instead")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, _ []string) error {
	svc, closeService, err := openService(cmd.Context(), loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	if showStatus {
		return printJSON(svc.Status())
	}
	return printJSON(svc.Document())
}
