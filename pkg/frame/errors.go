package frame

import (
	"github.com/pkg/errors"
)

var (
	ErrDecode        = errors.New("malformed interpreter data")
	ErrUnknownLayout = errors.New("no structure layout for this interpreter version")
)
