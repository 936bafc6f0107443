package frame_test

import (
	"encoding/binary"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/pyflame/pkg/frame"
	"github.com/maxgio92/pyflame/pkg/proc"
)

// fakeMemory is a sparse byte-addressable image standing in for a
// stopped target. Reads outside the populated bytes fault like an
// unmapped page would.
type fakeMemory struct {
	bytes map[uint64]byte
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{bytes: make(map[uint64]byte)}
}

func (m *fakeMemory) putBytes(addr uint64, b []byte) {
	for i, v := range b {
		m.bytes[addr+uint64(i)] = v
	}
}

func (m *fakeMemory) putWord(addr, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.putBytes(addr, b[:])
}

func (m *fakeMemory) putUint32(addr uint64, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.putBytes(addr, b[:])
}

func (m *fakeMemory) putString(addr uint64, s string) {
	m.putBytes(addr, append([]byte(s), 0))
}

func (m *fakeMemory) Peek(addr uint64, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := m.bytes[addr+uint64(i)]
		if !ok {
			return nil, errors.Wrapf(proc.ErrReadFault, "at %#x", addr+uint64(i))
		}
		out[i] = b
	}
	return out, nil
}

func (m *fakeMemory) PeekString(addr uint64, max int) (string, error) {
	var out []byte
	for i := 0; i < max; i++ {
		b, ok := m.bytes[addr+uint64(i)]
		if !ok {
			return "", errors.Wrapf(proc.ErrReadFault, "at %#x", addr+uint64(i))
		}
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return string(out), nil
}

func (m *fakeMemory) PeekWord(addr uint64) (uint64, error) {
	b, err := m.Peek(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

const (
	tstateAddr = 0x1000
	frame1Addr = 0x2000
	frame2Addr = 0x3000
	code1Addr  = 0x4000
	code2Addr  = 0x5000
)

// putCodeObject lays out a code object and its referenced string and
// lnotab objects, under the 2.7 layout.
func putCodeObject(m *fakeMemory, o frame.Offsets, addr uint64, name, file string, firstLine uint32, lnotab []byte) {
	nameAddr := addr + 0x100
	fileAddr := addr + 0x200
	tabAddr := addr + 0x300

	m.putWord(addr+o.CodeName, nameAddr)
	m.putWord(addr+o.CodeFilename, fileAddr)
	m.putUint32(addr+o.CodeFirstLineNo, firstLine)
	m.putWord(addr+o.CodeLnotab, tabAddr)

	m.putString(nameAddr+o.StrData, name)
	m.putString(fileAddr+o.StrData, file)
	m.putWord(tabAddr+o.ObSize, uint64(len(lnotab)))
	m.putBytes(tabAddr+o.BytesData, lnotab)
}

// putTarget builds a two-frame target: f() called g(), with g currently
// executing.
func putTarget(t *testing.T) (*fakeMemory, *frame.Walker, frame.Offsets) {
	t.Helper()

	offsets, err := frame.OffsetsFor(semver.MustParse("2.7.0"))
	require.NoError(t, err)

	m := newFakeMemory()
	m.putWord(tstateAddr+offsets.TStateFrame, frame1Addr)

	m.putWord(frame1Addr+offsets.FrameCode, code1Addr)
	m.putUint32(frame1Addr+offsets.FrameLastI, 0)
	m.putWord(frame1Addr+offsets.FrameBack, frame2Addr)

	m.putWord(frame2Addr+offsets.FrameCode, code2Addr)
	m.putUint32(frame2Addr+offsets.FrameLastI, 6)
	m.putWord(frame2Addr+offsets.FrameBack, 0)

	putCodeObject(m, offsets, code1Addr, "g", "app.py", 3, []byte{6, 1})
	putCodeObject(m, offsets, code2Addr, "f", "app.py", 7, []byte{6, 1})

	walker := frame.NewWalker(
		frame.WithWalkerProcess(m),
		frame.WithWalkerOffsets(offsets),
	)

	return m, walker, offsets
}

func TestWalkerStack(t *testing.T) {
	_, walker, _ := putTarget(t)

	frameAddr, err := walker.FirstFrameAddr(tstateAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(frame1Addr), frameAddr)

	stack, err := walker.Stack(frameAddr)
	require.NoError(t, err)
	require.Len(t, stack, 2)

	// Innermost first.
	require.Equal(t, frame.Frame{File: "app.py", Name: "g", Line: 3}, stack[0])
	// f is suspended past its first lnotab entry.
	require.Equal(t, frame.Frame{File: "app.py", Name: "f", Line: 8}, stack[1])
}

func TestWalkerIdle(t *testing.T) {
	m, walker, offsets := putTarget(t)
	m.putWord(tstateAddr+offsets.TStateFrame, 0)

	frameAddr, err := walker.FirstFrameAddr(tstateAddr)
	require.NoError(t, err)
	require.Zero(t, frameAddr)
}

func TestWalkerSkipsNullCodeObject(t *testing.T) {
	m, walker, offsets := putTarget(t)
	m.putWord(frame1Addr+offsets.FrameCode, 0)

	stack, err := walker.Stack(frame1Addr)
	require.NoError(t, err)
	require.Len(t, stack, 1)
	require.Equal(t, "f", stack[0].Name)
}

func TestWalkerCachesCodeObjects(t *testing.T) {
	m, walker, offsets := putTarget(t)

	first, err := walker.Stack(frame1Addr)
	require.NoError(t, err)

	// Clobber the remote strings: a cached decode must not notice.
	m.putString(code1Addr+0x100+offsets.StrData, "x")
	m.putString(code2Addr+0x100+offsets.StrData, "y")

	second, err := walker.Stack(frame1Addr)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestWalkerDiscardsSampleOnReadFault(t *testing.T) {
	m, walker, offsets := putTarget(t)

	// Point the outer frame at an unmapped page.
	m.putWord(frame1Addr+offsets.FrameBack, 0xdead0000)

	_, err := walker.Stack(frame1Addr)
	require.Error(t, err)
	require.ErrorIs(t, err, proc.ErrReadFault)
}

func TestWalkerRejectsSemicolons(t *testing.T) {
	m, walker, offsets := putTarget(t)
	m.putString(code1Addr+0x100+offsets.StrData, "evil;name")

	_, err := walker.Stack(frame1Addr)
	require.Error(t, err)
	require.ErrorIs(t, err, frame.ErrDecode)
}

func TestWalkerRejectsOddLnotab(t *testing.T) {
	m, walker, offsets := putTarget(t)
	m.putWord(code1Addr+0x300+offsets.ObSize, 3)

	_, err := walker.Stack(frame1Addr)
	require.Error(t, err)
	require.ErrorIs(t, err, frame.ErrDecode)
}
