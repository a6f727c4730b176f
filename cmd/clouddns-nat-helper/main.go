// clouddns-nat-helper keeps IPv4 A records in a DNS zone in step with its AAAA
// records. Every name that has an AAAA record gets an A record pointing at one
// shared IPv4 address, typically the public address of a NAT gateway.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/config"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/metrics"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Reports go to out and logs to errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "clouddns-nat-helper",
		Short: "Publish A records for every AAAA record in a DNS zone",
		Long: `clouddns-nat-helper creates, updates and deletes IPv4 A records so that
every name with an AAAA record also resolves over IPv4 to a shared address.
Records it manages are marked with ownership TXT records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoop(cmd, out, errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the reconciliation loop (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runLoop(cmd, out, errOut)
			},
		},
		&cobra.Command{
			Use:   "plan",
			Short: "Print the changes one cycle would make and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPlan(cmd, out, errOut)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "clouddns-nat-helper %s (built %s, %s)\n",
					Version, BuildDate, runtime.Version())
				return err
			},
		},
	)

	return root
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig(cmd *cobra.Command, out io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(out, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("clouddns-nat-helper starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("source", cfg.Source),
		slog.String("provider", cfg.Provider),
		slog.String("policy", cfg.Policy.String()),
		slog.Bool("dry_run", cfg.DryRun),
	)
	return cfg, logger, nil
}

func setupLogger(out io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
