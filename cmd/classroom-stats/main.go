package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cam3ron2/classroom-stats/internal/config"
	"github.com/cam3ron2/classroom-stats/internal/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "classroom-stats: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCommand(newCLI(os.Stdout)).ExecuteContext(ctx)
}

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	stdout     io.Writer
	lookupEnv  func(string) (string, bool)
}

func newCLI(stdout io.Writer) *cli {
	return &cli{stdout: stdout, lookupEnv: os.LookupEnv}
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "classroom-stats",
		Short: "Aggregate grading metrics for student GitHub repositories",
		Long: `classroom-stats reads the course roster, collects repository metrics for
every group and writes them as a timestamped JSON snapshot.

Commands:
  scrape    collect metrics for every group and write a snapshot
  clone     clone every group repository locally
  serve     serve the latest snapshot as metrics and JSON`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to YAML config file (defaults apply when empty)")

	root.AddCommand(newScrapeCommand(c))
	root.AddCommand(newCloneCommand(c))
	root.AddCommand(newServeCommand(c))
	root.AddCommand(newVersionCommand(c))
	return root
}

func newVersionCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(c.stdout, "classroom-stats %s\n", version)
		},
	}
}

// environment is the configured process context of one command run.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	close  func()
}

// setup loads configuration, builds the logger and installs tracing.
func (c *cli) setup() (*environment, error) {
	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(cfg.LogLevel))
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "classroom-stats",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	return &environment{
		cfg:    cfg,
		logger: logger,
		close: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = telemetryRuntime.Shutdown(shutdownCtx)
			if syncErr := logger.Sync(); syncErr != nil && !shouldIgnoreLoggerSyncError(syncErr) {
				_, _ = fmt.Fprintf(os.Stderr, "classroom-stats: sync logger: %v\n", syncErr)
			}
		},
	}, nil
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// shouldIgnoreLoggerSyncError reports sync failures of terminals and pipes,
// which cannot be fsynced.
func shouldIgnoreLoggerSyncError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
