package frame

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

const (
	maxNameLen = 256
	maxFileLen = 1024

	// maxLnotabLen bounds the packed line-number table copy. Real
	// tables are a few hundred bytes; anything larger means we read
	// garbage.
	maxLnotabLen = 1 << 20

	// maxDepth bounds the frame list walk against cycles in a target
	// caught mid-update.
	maxDepth = 4096
)

// codeObject is the decoded, owned snapshot of a remote PyCodeObject,
// cached by remote address. Code objects are immutable for the lifetime
// of the target process, so the cache is only dropped at shutdown.
type codeObject struct {
	name      string
	file      string
	firstLine int
	lnotab    []byte
}

// Walker turns a thread-state address into a decoded stack by walking
// the frame linked list in the target's address space.
type Walker struct {
	cache map[uint64]*codeObject

	*WalkerOptions
}

func NewWalker(opts ...WalkerOption) *Walker {
	walker := &Walker{
		WalkerOptions: &WalkerOptions{},
		cache:         make(map[uint64]*codeObject),
	}
	for _, opt := range opts {
		opt(walker)
	}

	return walker
}

// FirstFrameAddr reads the current-frame pointer out of the thread
// state. Zero means the interpreter is idle.
func (w *Walker) FirstFrameAddr(tstateAddr uint64) (uint64, error) {
	return w.process.PeekWord(tstateAddr + w.offsets.TStateFrame)
}

// Stack walks the frame list starting at frameAddr and decodes every
// frame, innermost first. The target must be attached for the whole
// call. Any read fault poisons the entire sample.
func (w *Walker) Stack(frameAddr uint64) (Stack, error) {
	var stack Stack
	depth := 0
	for addr := frameAddr; addr != 0; depth++ {
		if depth >= maxDepth {
			return nil, errors.Wrapf(ErrDecode, "frame list deeper than %d at %#x", maxDepth, addr)
		}

		codeAddr, err := w.process.PeekWord(addr + w.offsets.FrameCode)
		if err != nil {
			return nil, err
		}
		lasti, err := w.peekInt32(addr + w.offsets.FrameLastI)
		if err != nil {
			return nil, err
		}
		back, err := w.process.PeekWord(addr + w.offsets.FrameBack)
		if err != nil {
			return nil, err
		}

		// A frame caught before its code pointer is published is
		// skipped, not decoded as garbage.
		if codeAddr != 0 {
			code, err := w.codeObject(codeAddr)
			if err != nil {
				return nil, err
			}
			stack = append(stack, Frame{
				File: code.file,
				Name: code.name,
				Line: lineForOffset(code.lnotab, code.firstLine, int(lasti), w.offsets.SignedLineDeltas),
			})
		}

		addr = back
	}

	return stack, nil
}

func (w *Walker) codeObject(addr uint64) (*codeObject, error) {
	if code, ok := w.cache[addr]; ok {
		return code, nil
	}

	name, err := w.peekStrObject(addr+w.offsets.CodeName, maxNameLen)
	if err != nil {
		return nil, err
	}
	file, err := w.peekStrObject(addr+w.offsets.CodeFilename, maxFileLen)
	if err != nil {
		return nil, err
	}
	firstLine, err := w.peekInt32(addr + w.offsets.CodeFirstLineNo)
	if err != nil {
		return nil, err
	}
	lnotab, err := w.peekLnotab(addr + w.offsets.CodeLnotab)
	if err != nil {
		return nil, err
	}

	// The collapsed output joins frames with semicolons, so a name
	// carrying one cannot be rendered unambiguously.
	if strings.ContainsRune(name, ';') || strings.ContainsRune(file, ';') {
		return nil, errors.Wrapf(ErrDecode, "semicolon in code object at %#x", addr)
	}

	code := &codeObject{
		name:      name,
		file:      file,
		firstLine: int(firstLine),
		lnotab:    lnotab,
	}
	w.cache[addr] = code
	w.logger.Debug().
		Uint64("addr", addr).
		Str("name", name).
		Str("file", file).
		Msg("code object decoded")

	return code, nil
}

// peekStrObject dereferences a field holding a str object pointer and
// copies out its payload.
func (w *Walker) peekStrObject(fieldAddr uint64, max int) (string, error) {
	strAddr, err := w.process.PeekWord(fieldAddr)
	if err != nil {
		return "", err
	}
	if strAddr == 0 {
		return "", errors.Wrapf(ErrDecode, "null string object at %#x", fieldAddr)
	}

	return w.process.PeekString(strAddr+w.offsets.StrData, max)
}

// peekLnotab dereferences the co_lnotab field and copies the packed
// table out as raw bytes. Its length comes from the object's ob_size.
func (w *Walker) peekLnotab(fieldAddr uint64) ([]byte, error) {
	tabAddr, err := w.process.PeekWord(fieldAddr)
	if err != nil {
		return nil, err
	}
	if tabAddr == 0 {
		return nil, nil
	}
	size, err := w.process.PeekWord(tabAddr + w.offsets.ObSize)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	if size > maxLnotabLen || size%2 != 0 {
		return nil, errors.Wrapf(ErrDecode, "implausible lnotab of %d bytes at %#x", size, tabAddr)
	}

	return w.process.Peek(tabAddr+w.offsets.BytesData, int(size))
}

func (w *Walker) peekInt32(addr uint64) (int32, error) {
	buf, err := w.process.Peek(addr, 4)
	if err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(buf)), nil
}
