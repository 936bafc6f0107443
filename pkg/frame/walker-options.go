package frame

import (
	log "github.com/rs/zerolog"

	"github.com/maxgio92/pyflame/pkg/proc"
)

type WalkerOptions struct {
	process proc.Memory
	offsets Offsets

	logger log.Logger
}

type WalkerOption func(*Walker)

func WithWalkerProcess(process proc.Memory) WalkerOption {
	return func(w *Walker) {
		w.process = process
	}
}

func WithWalkerOffsets(offsets Offsets) WalkerOption {
	return func(w *Walker) {
		w.offsets = offsets
	}
}

func WithWalkerLogger(logger log.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = logger
	}
}
