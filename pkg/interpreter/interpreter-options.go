package interpreter

import (
	log "github.com/rs/zerolog"

	"github.com/maxgio92/pyflame/pkg/proc"
)

type InterpreterOptions struct {
	pid     int
	process proc.Memory

	logger log.Logger
}

type InterpreterOption func(*Interpreter)

func WithInterpreterPid(pid int) InterpreterOption {
	return func(i *Interpreter) {
		i.pid = pid
	}
}

func WithInterpreterProcess(process proc.Memory) InterpreterOption {
	return func(i *Interpreter) {
		i.process = process
	}
}

func WithInterpreterLogger(logger log.Logger) InterpreterOption {
	return func(i *Interpreter) {
		i.logger = logger
	}
}
