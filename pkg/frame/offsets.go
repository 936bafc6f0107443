package frame

import (
	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Offsets are the byte offsets of the interpreter struct fields the
// walker reads, for 64-bit CPython builds. The layouts moved between
// minor versions, so they are keyed by the detected version rather than
// compiled in from headers.
type Offsets struct {
	// PyThreadState
	TStateFrame uint64

	// PyFrameObject
	FrameBack  uint64
	FrameCode  uint64
	FrameLastI uint64

	// PyCodeObject
	CodeFilename    uint64
	CodeName        uint64
	CodeFirstLineNo uint64
	CodeLnotab      uint64

	// Payload offset of the object backing co_name and co_filename:
	// PyStringObject ob_sval on 2.x, compact-ASCII PyUnicodeObject
	// data on 3.x.
	StrData uint64

	// Payload offset of the object backing co_lnotab: PyStringObject
	// ob_sval on 2.x, PyBytesObject ob_sval on 3.x.
	BytesData uint64

	// ob_size of var-sized objects.
	ObSize uint64

	// Line-number tables pack the line delta as signed
	// two's-complement from 3.6 onward.
	SignedLineDeltas bool
}

// OffsetsFor returns the structure layout of the given interpreter
// version.
func OffsetsFor(v *semver.Version) (Offsets, error) {
	switch {
	case v.Major() == 2 && (v.Minor() == 6 || v.Minor() == 7):
		return Offsets{
			TStateFrame:     16,
			FrameBack:       24,
			FrameCode:       32,
			FrameLastI:      120,
			CodeFilename:    80,
			CodeName:        88,
			CodeFirstLineNo: 96,
			CodeLnotab:      104,
			StrData:         36,
			BytesData:       36,
			ObSize:          16,
		}, nil
	case v.Major() == 3 && v.Minor() == 3:
		return Offsets{
			TStateFrame:     16,
			FrameBack:       24,
			FrameCode:       32,
			FrameLastI:      120,
			CodeFilename:    96,
			CodeName:        104,
			CodeFirstLineNo: 112,
			CodeLnotab:      120,
			StrData:         48,
			BytesData:       32,
			ObSize:          16,
		}, nil
	case v.Major() == 3 && v.Minor() >= 4 && v.Minor() <= 6:
		return Offsets{
			// 3.4 grew a prev link at the head of PyThreadState.
			TStateFrame:      24,
			FrameBack:        24,
			FrameCode:        32,
			FrameLastI:       120,
			CodeFilename:     96,
			CodeName:         104,
			CodeFirstLineNo:  112,
			CodeLnotab:       120,
			StrData:          48,
			BytesData:        32,
			ObSize:           16,
			SignedLineDeltas: v.Minor() >= 6,
		}, nil
	default:
		return Offsets{}, errors.Wrapf(ErrUnknownLayout, "python %s", v)
	}
}
