package profile

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/maxgio92/pyflame/pkg/frame"
	"github.com/maxgio92/pyflame/pkg/interpreter"
	"github.com/maxgio92/pyflame/pkg/proc"
)

// Profiler drives the sampling loop: attach, read the stack, detach,
// sleep, at the configured rate for the configured duration. The target
// is never held stopped across a sleep, so the per-sample stop time is
// bounded by the read cost alone.
type Profiler struct {
	process *proc.Process
	interp  *interpreter.Interpreter
	walker  *frame.Walker

	// Status counters, read by the status bar goroutine.
	samples uint64
	idle    uint64

	*ProfilerOptions
}

func NewProfiler(opts ...ProfilerOption) *Profiler {
	profiler := &Profiler{
		ProfilerOptions: &ProfilerOptions{},
	}
	for _, opt := range opts {
		opt(profiler)
	}

	return profiler
}

// Init resolves the target process and its interpreter. It does not
// attach.
func (p *Profiler) Init() error {
	var err error
	p.process, err = proc.NewProcess(
		proc.WithProcessPid(p.pid),
		proc.WithProcessLogger(p.logger),
	)
	if err != nil {
		return err
	}

	p.interp = interpreter.NewInterpreter(
		interpreter.WithInterpreterPid(p.pid),
		interpreter.WithInterpreterProcess(p.process),
		interpreter.WithInterpreterLogger(p.logger),
	)
	if err := p.interp.Detect(); err != nil {
		return err
	}

	offsets, err := frame.OffsetsFor(p.interp.Version())
	if err != nil {
		return errors.Wrap(interpreter.ErrUnsupportedInterpreter, err.Error())
	}
	p.walker = frame.NewWalker(
		frame.WithWalkerProcess(p.process),
		frame.WithWalkerOffsets(offsets),
		frame.WithWalkerLogger(p.logger),
	)

	return nil
}

// Run samples the target until the duration elapses or ctx is
// cancelled, and returns the aggregated report. The target is resumed on
// every return path.
func (p *Profiler) Run(ctx context.Context) (Report, error) {
	if p.process == nil {
		if err := p.Init(); err != nil {
			return nil, err
		}
	}

	if err := p.process.Attach(); err != nil {
		return nil, err
	}
	// The final detach for every path out of the loop, including
	// errors below; Detach through Close is idempotent.
	defer p.process.Close()

	// Locating the thread state is part of startup: a failure here is
	// fatal, unlike the per-sample faults tolerated in the loop.
	tstateAddr, err := p.interp.ThreadStateAddr()
	if err != nil {
		return nil, err
	}

	if p.seconds == 0 {
		return p.single(tstateAddr)
	}

	interval := microseconds(p.rate)
	end := time.Now().Add(microseconds(p.seconds))

	var agg aggregator
	if p.timestamps {
		agg = NewTrace()
	} else {
		agg = NewHistogram(!p.excludeIdle)
	}

	statusCtx, stopStatus := context.WithCancel(ctx)
	defer stopStatus()
	go p.printStatusBar(statusCtx, end)

	for {
		// Losing the thread state itself means the run cannot
		// continue; its read error is fatal, unlike the per-frame
		// faults tolerated below.
		frameAddr, err := p.walker.FirstFrameAddr(tstateAddr)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read the current frame pointer")
		}
		var stack frame.Stack
		if frameAddr != 0 {
			stack, err = p.walker.Stack(frameAddr)
		}
		now := time.Now()
		switch {
		case err == nil:
			agg.Add(now, stack)
			atomic.AddUint64(&p.samples, 1)
			if len(stack) == 0 {
				atomic.AddUint64(&p.idle, 1)
			}
		case errors.Is(err, proc.ErrReadFault), errors.Is(err, frame.ErrDecode):
			// The sample is discarded whole; the run goes on.
			p.logger.Warn().Err(err).Msg("sample discarded")
		default:
			return nil, err
		}

		if !now.Add(interval).Before(end) {
			break
		}

		if err := p.process.Detach(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			// Break at the iteration boundary; the target is
			// already resumed.
			return agg, nil
		case <-time.After(interval):
		}
		if err := p.process.Attach(); err != nil {
			return nil, err
		}
	}

	return agg, nil
}

func (p *Profiler) single(tstateAddr uint64) (Report, error) {
	frameAddr, err := p.walker.FirstFrameAddr(tstateAddr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the current frame pointer")
	}
	var stack frame.Stack
	if frameAddr != 0 {
		stack, err = p.walker.Stack(frameAddr)
		if err != nil {
			return nil, err
		}
	}

	return &Single{
		TS:         time.Now().UnixNano(),
		Stack:      stack,
		Timestamps: p.timestamps,
	}, nil
}

func microseconds(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1e6)) * time.Microsecond
}
