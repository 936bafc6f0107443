package proc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

const (
	pageSize = 4096

	// peekChunkLen is the granularity of PeekString reads. Chunks are
	// clamped to page boundaries so a string that ends just before an
	// unmapped page never faults.
	peekChunkLen = 64

	// stateTracingStop is the /proc/<pid>/stat state of a task stopped
	// by a tracer.
	stateTracingStop = "t"
)

// Process is a handle on the target process. It owns the ptrace
// attachment state and the remote read primitives. All reads require the
// target to be attached, which guarantees it is stopped for the duration
// of the read.
type Process struct {
	proc     procfs.Proc
	mem      *os.File
	attached bool

	*ProcessOptions
}

func NewProcess(opts ...ProcessOption) (*Process, error) {
	p := &Process{
		ProcessOptions: &ProcessOptions{},
	}
	for _, opt := range opts {
		opt(p)
	}

	proc, err := procfs.NewProc(p.pid)
	if err != nil {
		return nil, errors.Wrapf(ErrNoSuchProcess, "pid %d", p.pid)
	}
	p.proc = proc

	return p, nil
}

func (p *Process) Pid() int {
	return p.pid
}

// Attach stops the target with PTRACE_ATTACH and waits until the stop is
// observed. Every successful Attach must be paired with a Detach; prefer
// WithAttached which enforces the pairing on all paths.
func (p *Process) Attach() error {
	if p.attached {
		return nil
	}
	if err := unix.PtraceAttach(p.pid); err != nil {
		return p.classifyAttachError(err)
	}

	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(p.pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			// Undo the attach request so the target is not left
			// in limbo if the wait itself failed.
			_ = unix.PtraceDetach(p.pid)
			return errors.Wrapf(err, "failed to wait for pid %d to stop", p.pid)
		}
		break
	}
	if !ws.Stopped() {
		_ = unix.PtraceDetach(p.pid)
		return errors.Wrapf(ErrNoSuchProcess, "pid %d exited while attaching", p.pid)
	}

	p.attached = true
	p.logger.Debug().Int("pid", p.pid).Msg("attached")

	return nil
}

// Detach resumes the target. It is idempotent so that error paths can
// call it unconditionally.
func (p *Process) Detach() error {
	if !p.attached {
		return nil
	}
	p.attached = false
	if err := unix.PtraceDetach(p.pid); err != nil && err != unix.ESRCH {
		return errors.Wrapf(err, "failed to detach pid %d", p.pid)
	}
	p.logger.Debug().Int("pid", p.pid).Msg("detached")

	return nil
}

// WithAttached runs fn with the target attached and guarantees the
// detach on every return path. The target is never left stopped.
func (p *Process) WithAttached(fn func() error) error {
	if err := p.Attach(); err != nil {
		return err
	}
	defer p.Detach()

	return fn()
}

// Peek copies exactly n bytes out of the target address space at addr.
// A partial copy is reported as a read fault, not a short read.
func (p *Process) Peek(addr uint64, n int) ([]byte, error) {
	if !p.attached {
		return nil, ErrNotAttached
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	localIov := []unix.Iovec{{Base: &buf[0]}}
	localIov[0].SetLen(n)
	remoteIov := []unix.RemoteIovec{{Base: uintptr(addr), Len: n}}

	read, err := unix.ProcessVMReadv(p.pid, localIov, remoteIov, 0)
	if err != nil {
		if err == unix.ENOSYS || err == unix.EPERM {
			return p.peekMem(addr, buf)
		}
		return nil, errors.Wrapf(ErrReadFault, "read %d bytes at %#x: %v", n, addr, err)
	}
	if read != n {
		return nil, errors.Wrapf(ErrReadFault, "short read of %d/%d bytes at %#x", read, n, addr)
	}

	return buf, nil
}

// peekMem is the fallback read path through /proc/<pid>/mem, for kernels
// where process_vm_readv is unavailable or denied.
func (p *Process) peekMem(addr uint64, buf []byte) ([]byte, error) {
	if p.mem == nil {
		f, err := os.Open(fmt.Sprintf("/proc/%d/mem", p.pid))
		if err != nil {
			return nil, errors.Wrap(err, "failed to open target memory")
		}
		p.mem = f
	}
	if _, err := p.mem.Seek(int64(addr), io.SeekStart); err != nil {
		return nil, errors.Wrapf(ErrReadFault, "seek to %#x: %v", addr, err)
	}
	if _, err := io.ReadFull(p.mem, buf); err != nil {
		return nil, errors.Wrapf(ErrReadFault, "read %d bytes at %#x: %v", len(buf), addr, err)
	}

	return buf, nil
}

// PeekString copies up to max bytes at addr and returns the bytes before
// the first NUL as a string. Reads are clamped to page boundaries so a
// terminator on the last mapped page is still honoured.
func (p *Process) PeekString(addr uint64, max int) (string, error) {
	var out []byte
	for len(out) < max {
		n := peekChunkLen
		if rem := max - len(out); rem < n {
			n = rem
		}
		cur := addr + uint64(len(out))
		if toBoundary := int(pageSize - cur%pageSize); toBoundary < n {
			n = toBoundary
		}

		chunk, err := p.Peek(cur, n)
		if err != nil {
			return "", err
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(out, chunk[:i]...)), nil
		}
		out = append(out, chunk...)
	}

	return string(out), nil
}

// PeekWord reads one native word at addr.
func (p *Process) PeekWord(addr uint64) (uint64, error) {
	buf, err := p.Peek(addr, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(buf), nil
}

func (p *Process) Close() error {
	err := p.Detach()
	if p.mem != nil {
		if cerr := p.mem.Close(); err == nil {
			err = cerr
		}
		p.mem = nil
	}

	return err
}

func (p *Process) classifyAttachError(err error) error {
	switch err {
	case unix.ESRCH:
		return errors.Wrapf(ErrNoSuchProcess, "pid %d", p.pid)
	case unix.EPERM:
		// EPERM covers both an unprivileged tracer and a target that
		// already has one. Tell them apart through the task state.
		if stat, serr := p.proc.Stat(); serr == nil && stat.State == stateTracingStop {
			return errors.Wrapf(ErrAlreadyTraced, "pid %d", p.pid)
		}
		return errors.Wrapf(ErrPermissionDenied, "pid %d", p.pid)
	default:
		return errors.Wrapf(err, "failed to attach pid %d", p.pid)
	}
}
