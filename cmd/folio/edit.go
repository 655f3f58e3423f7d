package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/resume"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply edits from stdin with autosave",
	Long: "Reads one JSON object per line and merges each into the document. " +
		"Edits are saved after the autosave delay; anything left unsaved is flushed at end of input.",
	RunE: runEdit,
}

var (
	editInput      string
	editReplace    bool
	editNoAutosave bool
	editTimeout    time.Duration
)

func init() {
	editCmd.Flags().StringVarP(&editInput, "in", "i", "", "Read edits from this file instead of stdin")
	editCmd.Flags().BoolVar(&editReplace, "replace", false, "Treat each line as a whole document instead of a patch")
	editCmd.Flags().BoolVar(&editNoAutosave, "no-autosave", false, "Only save once, at end of input")
	editCmd.Flags().DurationVar(&editTimeout, "flush-timeout", 30*time.Second, "How long to wait for the final save")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	if editNoAutosave {
		cfg.AutosaveOn = false
	}

	var in io.Reader = os.Stdin
	if editInput != "" {
		f, err := os.Open(editInput)
		if err != nil {
			return fmt.Errorf("open edits: %w", err)
		}
		defer f.Close()
		in = f
	}

	svc, closeService, err := openService(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), max(int(cfg.MaxRecordBytes), 1<<20))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if editReplace {
			var doc resume.Resume
			if err := json.Unmarshal([]byte(text), &doc); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			svc.UpdateDocument(doc)
			continue
		}
		if _, err := svc.PatchDocument([]byte(text)); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read edits: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), editTimeout)
	defer cancel()
	if err := svc.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	status := svc.Status()
	if err := printJSON(status); err != nil {
		return err
	}
	if status.LastError != "" {
		return fmt.Errorf("last save failed: %s", status.LastError)
	}
	return nil
}
