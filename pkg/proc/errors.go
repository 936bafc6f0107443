package proc

import (
	"github.com/pkg/errors"
)

var (
	ErrPermissionDenied = errors.New("the kernel refused to attach the target")
	ErrNoSuchProcess    = errors.New("no such process")
	ErrAlreadyTraced    = errors.New("the target is already traced")
	ErrReadFault        = errors.New("remote read hit an unmapped page")
	ErrNotAttached      = errors.New("the target is not attached")
	ErrNotMapped        = errors.New("the library is not mapped in the target")
)
