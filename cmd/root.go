package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gtfsrt-io/rtfetch/internal/config"
)

var (
	// Config flags - bound in init()
	cfgFile     string
	outputDir   string
	baseURL     string
	catalogPath string
	logFormat   string
	logLevel    string
	logOutput   string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	appConfig  config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rtfetch",
	Short: "Materialize GTFS-RT parquet archives into a local date-partitioned cache.",
	Long: `rtfetch downloads archived GTFS-RT parquet files from the public
parquet.gtfsrt.io bucket into a local hive-partitioned cache, skipping files
already present and tolerating per-file failures without aborting the run.

The primary command is 'fetch', which resolves an agency (or an explicit feed
descriptor) and a date window into per-day downloads. Other commands list the
feed catalog, discover feeds from the bucket, or inspect the local cache.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- 1. Initialize Logger ---
		var level slog.Level
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var logWriter io.Writer = os.Stderr
		switch strings.ToLower(logOutput) {
		case "", "stderr":
		case "stdout":
			logWriter = os.Stdout
		default:
			f, err := os.OpenFile(logOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", logOutput, err)
			}
			logWriter = f
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)

		// --- 2. Assemble Config: defaults < config file < env < flags ---
		appConfig = config.Default()
		if cfgFile != "" {
			if err := config.LoadFile(afero.NewOsFs(), cfgFile, &appConfig); err != nil {
				return err
			}
		}
		// .env is optional; missing files are fine.
		_ = godotenv.Load()
		config.ApplyEnv(&appConfig)

		if cmd.Flags().Changed("base-url") || cmd.InheritedFlags().Changed("base-url") {
			appConfig.BaseURL = baseURL
		}
		if cmd.Flags().Changed("output-dir") || cmd.InheritedFlags().Changed("output-dir") {
			appConfig.OutputDir = outputDir
		}
		if cmd.Flags().Changed("catalog") || cmd.InheritedFlags().Changed("catalog") {
			appConfig.CatalogPath = catalogPath
		}

		rootLogger.Debug("Configuration assembled.",
			slog.String("base_url", appConfig.BaseURL),
			slog.String("output_dir", appConfig.OutputDir),
			slog.String("catalog", appConfig.CatalogPath),
		)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.main().
func Execute() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", config.DefaultOutputDir, "Local cache root for downloaded parquet files")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", config.DefaultBaseURL, "Archive base URL")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", config.DefaultCatalogPath, "Feed catalog CSV path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.2.0"
}

// Helper to get logger (could use context propagation instead)
func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

// Helper to get Config
func getConfig() config.Config {
	return appConfig
}

// humanBytes renders a byte count the way the progress output does.
func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
