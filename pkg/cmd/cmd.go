package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/pyflame/internal/settings"
	"github.com/maxgio92/pyflame/pkg/profile"
)

const (
	logLevelInfo = "info"

	pidMax = 1 << 22
)

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [flags] <pid>", settings.CmdName),
		Short: fmt.Sprintf("%s is a sampling profiler for running CPython processes", settings.CmdName),
		Long: fmt.Sprintf(`
%s attaches to a running CPython process by PID and periodically reads the
interpreter call stack straight out of its address space, without restarting
or instrumenting the target. It prints collapsed stack traces suitable for
flame-graph rendering.
`, settings.CmdName),
		DisableAutoGenTag: true,
		Args:              o.ValidateArgs,
		RunE:              o.Run,
	}
	cmd.Flags().Float64VarP(&o.seconds, "seconds", "s", 1, "How many seconds to run for")
	cmd.Flags().Float64VarP(&o.rate, "rate", "r", 0.001, "Sample rate, as a fractional value of seconds")
	cmd.Flags().BoolVarP(&o.excludeIdle, "exclude-idle", "x", false, "Exclude idle time from statistics")
	cmd.Flags().BoolVarP(&o.timestamp, "timestamp", "t", false, "Include timestamps for each stacktrace")
	cmd.Flags().BoolVarP(&o.version, "version", "v", false, "Show the version")
	cmd.Flags().BoolVar(&o.status, "status", false, "Periodically print a status of the sampling")

	cmd.Flags().StringVar(&o.LogLevel, "log-level", logLevelInfo, "Log level (trace, debug, info, warn, error, fatal, panic)")

	return cmd
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	opts := NewOptions(
		WithContext(ctx),
		WithLogger(logger),
	)

	if err := NewCommand(opts).Execute(); err != nil {
		os.Exit(1)
	}
}

// ValidateArgs checks the trailing positional argument: a decimal PID.
// Anything non-numeric or out of range is a usage error.
func (o *Options) ValidateArgs(_ *cobra.Command, args []string) error {
	if o.version {
		return nil
	}
	if len(args) != 1 {
		return errors.New("exactly one PID argument is required")
	}
	pid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("PID %q is not a decimal number", args[0])
	}
	if pid < 1 || pid > pidMax {
		return errors.Errorf("PID %d is out of the valid PID range", pid)
	}
	o.pid = int(pid)

	return nil
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	// The arguments are valid at this point: errors from here on are
	// runtime failures, not usage mistakes.
	cmd.SilenceUsage = true

	if o.version {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", settings.VersionString, settings.BuildNote)
		return nil
	}

	logLevel, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		o.Logger.Fatal().Err(err).Msg("invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel)

	profiler := profile.NewProfiler(
		profile.WithProfilerPid(o.pid),
		profile.WithProfilerSeconds(o.seconds),
		profile.WithProfilerRate(o.rate),
		profile.WithProfilerExcludeIdle(o.excludeIdle),
		profile.WithProfilerTimestamps(o.timestamp),
		profile.WithProfilerStatus(o.status),
		profile.WithProfilerLogger(o.Logger),
	)

	report, err := profiler.Run(o.Ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to profile pid %d", o.pid)
	}

	return report.WriteReport(cmd.OutOrStdout())
}
