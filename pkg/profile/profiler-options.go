package profile

import (
	log "github.com/rs/zerolog"
)

type ProfilerOptions struct {
	pid int

	// seconds is the total run duration; zero means a single sample.
	seconds float64

	// rate is the inter-sample interval in seconds.
	rate float64

	excludeIdle bool
	timestamps  bool
	status      bool

	logger log.Logger
}

type ProfilerOption func(*Profiler)

func WithProfilerPid(pid int) ProfilerOption {
	return func(p *Profiler) {
		p.pid = pid
	}
}

func WithProfilerSeconds(seconds float64) ProfilerOption {
	return func(p *Profiler) {
		p.seconds = seconds
	}
}

func WithProfilerRate(rate float64) ProfilerOption {
	return func(p *Profiler) {
		p.rate = rate
	}
}

func WithProfilerExcludeIdle(excludeIdle bool) ProfilerOption {
	return func(p *Profiler) {
		p.excludeIdle = excludeIdle
	}
}

func WithProfilerTimestamps(timestamps bool) ProfilerOption {
	return func(p *Profiler) {
		p.timestamps = timestamps
	}
}

func WithProfilerStatus(status bool) ProfilerOption {
	return func(p *Profiler) {
		p.status = status
	}
}

func WithProfilerLogger(logger log.Logger) ProfilerOption {
	return func(p *Profiler) {
		p.logger = logger
	}
}
