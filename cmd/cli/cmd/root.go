package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/telemetry"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

var (
	// Global flags
	cfgFile   string
	verbose   bool
	logFormat string

	cfg      *config.Config
	logger   utils.Logger
	shutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fieldaccess",
	Short: "Per-field memory access analysis for C++ heap objects",
	Long: `fieldaccess turns allocation records with per-byte access histograms into
per-field access counts of the allocated types.

Type layouts come from debug metadata (a snapshot file or the database).
Standard containers are expanded into their backing storage so accesses
land on the element fields.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}

		level := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			level = utils.LevelDebug
		}
		logger, err = utils.NewLogger(cfg.Log.Format, level, os.Stderr)
		if err != nil {
			return err
		}
		utils.SetGlobalLogger(logger)

		shutdown, err = telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("Tracing disabled: %v", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces: %v", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default ./fieldaccess.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	binName := BinName()
	rootCmd.Example = `  # Build field access histograms and print a summary
  ` + binName + ` analyze --profile ./allocs.json --metadata ./types.yaml --stats

  # Resolve the layout of one type
  ` + binName + ` resolve --metadata ./types.yaml 'std::vector<Pair>'

  # Persist a run and browse it
  ` + binName + ` analyze --profile ./allocs.json --metadata ./types.yaml --persist
  ` + binName + ` serve --addr :8080`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	if logger == nil {
		return utils.GetGlobalLogger()
	}
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
