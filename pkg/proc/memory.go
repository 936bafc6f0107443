package proc

// Memory is the read surface of a stopped target process. *Process is
// the ptrace-backed implementation; consumers accept the interface so
// decoding can be exercised without a live target.
type Memory interface {
	// Peek copies exactly n bytes at addr.
	Peek(addr uint64, n int) ([]byte, error)

	// PeekString copies up to max bytes at addr, stopping at the
	// first NUL.
	PeekString(addr uint64, max int) (string, error)

	// PeekWord reads one native word at addr.
	PeekWord(addr uint64) (uint64, error)
}
