// Package cmd implements the pattern-engine command line interface. The CLI
// stands in for the mobile UI layer: it wires the stores, the API client and
// the orchestrator together with an explicit lifecycle.
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/patternhq/pattern-engine/internal/api"
	"github.com/patternhq/pattern-engine/internal/config"
	"github.com/patternhq/pattern-engine/internal/storage"
)

var (
	flagConfig  string
	flagDataDir string
	flagAPIURL  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pattern-engine",
	Short: "Pattern analysis engine",
	Long: `pattern-engine runs streaming personality analyses against the Pattern
backend, keeps a local history of completed reports, manages saved profiles,
and reconciles local data with the backend on login.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override the data directory (default ~/.pattern)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "override the backend base URL")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// services bundles everything a command needs, with a teardown that closes
// the stores.
type services struct {
	cfg      *config.Config
	client   *api.Client
	reports  storage.ReportStore
	profiles storage.ProfileStore
}

func (s *services) close() {
	if s.reports != nil {
		s.reports.Close()
	}
	if s.profiles != nil {
		s.profiles.Close()
	}
}

// buildServices loads config and opens the local stores.
func buildServices() (*services, error) {
	pm := storage.NewPathManager()
	if flagDataDir != "" {
		pm = storage.NewPathManagerAt(flagDataDir)
	}

	configPath := flagConfig
	if configPath == "" {
		if p, err := pm.ConfigPath(); err == nil {
			if _, err := os.Stat(p); err == nil {
				configPath = p
			}
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if flagAPIURL != "" {
		cfg.APIBaseURL = flagAPIURL
	}
	if cfg.DataDir != "" && flagDataDir == "" {
		pm = storage.NewPathManagerAt(cfg.DataDir)
	}

	reports, err := storage.NewDefaultReportStore(pm)
	if err != nil {
		return nil, fmt.Errorf("failed to open report cache: %w", err)
	}
	profiles, err := storage.NewDefaultProfileStore(pm)
	if err != nil {
		reports.Close()
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}

	client := api.NewClient(cfg.APIBaseURL, api.WithToken(cfg.Token))
	return &services{cfg: cfg, client: client, reports: reports, profiles: profiles}, nil
}
