// Package commands implements the recapturectl command tree.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/recapturedocs/recapturedocs/cmd/recapturectl/ui"
	"github.com/recapturedocs/recapturedocs/internal/config"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/orchestrator"
)

var (
	cfgFile  string
	verbose  bool
	noColor  bool
	jsonMode bool
)

// session holds what a command run needs. It is built lazily so that
// commands like completion never touch storage.
type session struct {
	cfg     *config.Config
	logger  *observability.Logger
	runtime *orchestrator.Runtime
	ui      *ui.UI
}

var current *session

var rootCmd = &cobra.Command{
	Use:   "recapturectl",
	Short: "RecaptureDocs operator CLI",
	Long: `recapturectl manages RecaptureDocs conversion jobs: upload documents,
follow their transcription progress, collect results and handle payment.

It works directly against the configured job store, so point it at the same
configuration file the API server uses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		current = &session{ui: ui.New(jsonMode, noColor, verbose)}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil || current.runtime == nil {
			return nil
		}
		return current.runtime.Close(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonMode, "json", false, "print machine-readable JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func (s *session) loadConfig() (*config.Config, error) {
	if s.cfg != nil {
		return s.cfg, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	s.cfg = cfg
	s.logger = observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: cfg.Observability.ServiceName,
	})
	return cfg, nil
}

func (s *session) service(ctx context.Context) (*orchestrator.Service, error) {
	if s.runtime != nil {
		return s.runtime.Service, nil
	}
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := orchestrator.Build(ctx, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.runtime = rt
	return rt.Service, nil
}
