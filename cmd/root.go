// Package cmd defines and implements the CLI commands for the newsrange
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/acquire"
	"github.com/tadevos/newsrange/internal/config"
	"github.com/tadevos/newsrange/internal/logging"
)

var cfgFile string

// env bundles the services shared by all subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// envKeyType is the key for storing the env in the command context.
type envKeyType string

const envKey envKeyType = "env"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsrange",
		Short: "Acquires the best news article per day over a date range.",
		Long: `newsrange walks a range of calendar days and, for each day, searches a
news backend for a keyword, fetches the candidate articles, and keeps the one
published closest to that day. Progress is checkpointed after every success,
so an interrupted run never loses completed days.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./newsrange.yaml)")

	cmd.AddCommand(newAcquireCmd())
	cmd.AddCommand(newSentimentCmd())
	cmd.AddCommand(newConvertCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("application services not initialized")
	}
	return e, nil
}

// Execute is the main entry point. A run interrupted by the operator exits
// with a distinct status from other failures.
func Execute() {
	root := newRootCmd()
	err := root.Execute()
	switch {
	case err == nil:
	case errors.Is(err, acquire.ErrInterrupted):
		fmt.Fprintln(os.Stderr, "interrupted; partial results were checkpointed")
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
