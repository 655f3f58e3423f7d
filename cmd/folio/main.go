// Command folio edits a resume with local-first autosave and optional
// remote sync.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/app"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/config"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/telemetry"
)

const closeTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:           "folio",
	Short:         "Resume editor with local-first autosave",
	Long:          "folio keeps a resume on this device, saves edits after a quiet period and mirrors them to a remote store when signed in.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	dataDirFlag  string
	docKeyFlag   string
	logLevelFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (overrides FOLIO_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&docKeyFlag, "key", "", "Document key (overrides FOLIO_DOCUMENT_KEY)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg := config.Load()
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if docKeyFlag != "" {
		cfg.DocumentKey = docKeyFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	return cfg
}

// openService builds the service for one command. The returned func flushes
// and closes it.
func openService(ctx context.Context, cfg config.Config) (*app.Service, func() error, error) {
	logger := telemetry.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	svc, err := app.New(ctx, cfg, app.Options{
		Logger:  logger,
		Metrics: telemetry.NewMetrics(),
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		return svc.Close(closeCtx)
	}
	return svc, closeFn, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
