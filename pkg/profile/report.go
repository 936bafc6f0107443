package profile

import (
	"fmt"
	"io"
	"time"

	"github.com/maxgio92/pyflame/internal/utils"
	"github.com/maxgio92/pyflame/pkg/frame"
)

const idleMarker = "(idle)"

// Report is an aggregation of samples that knows how to emit itself.
type Report interface {
	WriteReport(w io.Writer) error
}

// aggregator consumes samples in wall-clock order. An empty stack is an
// idle sample.
type aggregator interface {
	Report
	Add(ts time.Time, stack frame.Stack)
}

type bucket struct {
	collapsed string
	count     uint64
}

// Histogram counts identical stacks. Buckets are keyed by the 64-bit
// FNV-1a hash of the collapsed rendering, the same identity the
// collapsed output uses.
type Histogram struct {
	includeIdle bool
	idle        uint64
	samples     uint64
	buckets     map[uint64]*bucket
}

func NewHistogram(includeIdle bool) *Histogram {
	return &Histogram{
		includeIdle: includeIdle,
		buckets:     make(map[uint64]*bucket),
	}
}

func (h *Histogram) Add(_ time.Time, stack frame.Stack) {
	h.samples++
	if len(stack) == 0 {
		if h.includeIdle {
			h.idle++
		}
		return
	}

	collapsed := stack.Collapse()
	key := utils.Hash(collapsed)
	if b, ok := h.buckets[key]; ok {
		b.count++
		return
	}
	h.buckets[key] = &bucket{collapsed: collapsed, count: 1}
}

func (h *Histogram) Idle() uint64 {
	return h.idle
}

func (h *Histogram) Samples() uint64 {
	return h.samples
}

// WriteReport emits the idle count, if any, followed by one line per
// bucket: the collapsed stack, a space, and the count. Bucket order is
// unspecified.
func (h *Histogram) WriteReport(w io.Writer) error {
	if h.idle > 0 {
		if _, err := fmt.Fprintf(w, "%s %d\n", idleMarker, h.idle); err != nil {
			return err
		}
	}
	for _, b := range h.buckets {
		if _, err := fmt.Fprintf(w, "%s %d\n", b.collapsed, b.count); err != nil {
			return err
		}
	}

	return nil
}

// Record is one timestamped sample.
type Record struct {
	// TS is nanoseconds since the Unix epoch.
	TS    int64
	Stack frame.Stack
}

// Trace keeps every sample in order, with its timestamp.
type Trace struct {
	records []Record
}

func NewTrace() *Trace {
	return new(Trace)
}

func (t *Trace) Add(ts time.Time, stack frame.Stack) {
	t.records = append(t.records, Record{TS: ts.UnixNano(), Stack: stack})
}

func (t *Trace) Records() []Record {
	return t.records
}

// WriteReport emits, per sample, the timestamp on its own line followed
// by the collapsed stack or the idle marker.
func (t *Trace) WriteReport(w io.Writer) error {
	for _, r := range t.records {
		if _, err := fmt.Fprintf(w, "%d\n", r.TS); err != nil {
			return err
		}
		line := idleMarker
		if len(r.Stack) > 0 {
			line = r.Stack.Collapse()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

// Single is the one-sample report of a zero-duration run: one frame per
// line, outermost first, or the idle marker.
type Single struct {
	TS         int64
	Stack      frame.Stack
	Timestamps bool
}

func (s *Single) WriteReport(w io.Writer) error {
	if s.Timestamps {
		if _, err := fmt.Fprintf(w, "%d\n", s.TS); err != nil {
			return err
		}
	}
	if len(s.Stack) == 0 {
		_, err := fmt.Fprintln(w, idleMarker)
		return err
	}
	for i := len(s.Stack) - 1; i >= 0; i-- {
		if _, err := fmt.Fprintln(w, s.Stack[i]); err != nil {
			return err
		}
	}

	return nil
}
