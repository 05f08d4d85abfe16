package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/multiocr/internal/app"
	"github.com/felixgeelhaar/multiocr/pkg/config"
)

var (
	flags  overrides
	logger *slog.Logger
)

// overrides are persistent flags applied on top of the environment config.
type overrides struct {
	outputDir   string
	maxDepth    int
	enginesFile string
	pluginsDir  []string
	logLevel    string
	logFormat   string
	logFile     string
}

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "multiocr",
	Short: "multiocr - run several OCR engines over the same documents",
	Long: `multiocr discovers documents under a file or directory, runs every
configured OCR engine over each of them concurrently, and writes the file
metadata and the per-engine results side by side.

	Engine health is tracked from recent outcomes so degraded engines
	are visible without reading the logs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		cmd.SetContext(context.WithValue(cmd.Context(), commandContextKey{}, info))
		logger.Debug("command start",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
		)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.Debug("command end",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.outputDir, "output", "o", "", "directory for metadata and result artifacts")
	pf.IntVar(&flags.maxDepth, "max-depth", config.DefaultMaxDepth, "directory depth searched below the input")
	pf.StringVarP(&flags.enginesFile, "engines", "e", "", "YAML file describing the engines to run")
	pf.StringSliceVar(&flags.pluginsDir, "plugins-dir", nil, "directories scanned for engine plugins")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "", "text or json")
	pf.StringVar(&flags.logFile, "log-file", "", "also write logs to this file")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// LoadConfig reads the environment config and applies the flags the user set.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	pf := cmd.Flags()
	if pf.Changed("output") {
		cfg.OutputDir = flags.outputDir
	}
	if pf.Changed("max-depth") {
		cfg.MaxDepth = flags.maxDepth
	}
	if pf.Changed("engines") {
		cfg.EnginesFile = flags.enginesFile
	}
	if pf.Changed("plugins-dir") {
		cfg.PluginPaths = flags.pluginsDir
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if pf.Changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if pf.Changed("log-file") {
		cfg.LogFile = flags.logFile
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must not be negative: %d", cfg.MaxDepth)
	}
	return cfg, nil
}

// OpenContainer builds the application for a command. Callers must Close it.
func OpenContainer(cmd *cobra.Command) (*app.Container, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.NewContainer(cmd.Context(), cfg, Version)
}
