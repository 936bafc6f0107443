package interpreter

import (
	"github.com/pkg/errors"
)

var (
	ErrNotPython              = errors.New("the target does not map a CPython interpreter")
	ErrUnsupportedInterpreter = errors.New("the interpreter does not expose the thread-state symbol")
	ErrInterpreterNotReady    = errors.New("the interpreter has not initialised threading yet")
)
