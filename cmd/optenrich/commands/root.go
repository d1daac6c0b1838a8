package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wonny/optenrich/pkg/config"
	"github.com/wonny/optenrich/pkg/logger"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "optenrich",
	Short: "Option tick enrichment batch",
	Long: `optenrich - offline option tick enrichment

Reads one parquet file per trading day, joins every option tick with the
underlying index and near-month future bar, decomposes the option symbol,
buckets each tick by moneyness and writes one combined parquet file per day.

Usage:
  go run ./cmd/optenrich [command]

Examples:
  go run ./cmd/optenrich run -i data/parquet -o data/combined
  go run ./cmd/optenrich watch
  go run ./cmd/optenrich profile`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it with ctx.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads configuration and applies the global flags
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger for cfg
func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(cfg)
}
