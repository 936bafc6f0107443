package proc

import (
	log "github.com/rs/zerolog"
)

type ProcessOptions struct {
	pid int

	logger log.Logger
}

type ProcessOption func(*Process)

func WithProcessPid(pid int) ProcessOption {
	return func(p *Process) {
		p.pid = pid
	}
}

func WithProcessLogger(logger log.Logger) ProcessOption {
	return func(p *Process) {
		p.logger = logger
	}
}
