package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/internal/config"
	"github.com/fastygo/taskify/pkg/logger"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskify",
		Short:         "Taskify - tasks, sprints and retrospectives",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("driver", "", "storage driver (bolt, redis, postgres, memory); overrides STORAGE_DRIVER")
	rootCmd.PersistentFlags().String("namespace", "", "snapshot key namespace; overrides STORAGE_NAMESPACE")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(snapshotCmd())
	return rootCmd
}

// setup loads configuration, applies the persistent flags and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
		cfg.Storage.Driver = strings.ToLower(driver)
	}
	if ns, _ := cmd.Flags().GetString("namespace"); ns != "" {
		cfg.Storage.Namespace = ns
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   os.Stderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, zapLogger, nil
}
