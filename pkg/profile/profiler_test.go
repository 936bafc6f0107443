package profile_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/pyflame/pkg/interpreter"
	"github.com/maxgio92/pyflame/pkg/proc"
	"github.com/maxgio92/pyflame/pkg/profile"
)

var testLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func TestProfilerNoSuchProcess(t *testing.T) {
	p := profile.NewProfiler(
		profile.WithProfilerPid(1<<30),
		profile.WithProfilerSeconds(1),
		profile.WithProfilerRate(0.001),
		profile.WithProfilerLogger(testLogger),
	)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, proc.ErrNoSuchProcess)
}

func TestProfilerNotPython(t *testing.T) {
	// The test binary itself is not a CPython interpreter.
	p := profile.NewProfiler(
		profile.WithProfilerPid(os.Getpid()),
		profile.WithProfilerSeconds(1),
		profile.WithProfilerRate(0.001),
		profile.WithProfilerLogger(testLogger),
	)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, interpreter.ErrNotPython)
}
