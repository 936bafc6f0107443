package profile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/maxgio92/pyflame/internal/output"
)

// printStatusBar repaints a sampling status line on stderr once a second
// until the run ends or ctx is cancelled.
func (p *Profiler) printStatusBar(ctx context.Context, end time.Time) {
	if !p.status {
		return
	}

	ticker := time.NewTicker(1 * time.Second) // bar refresh interval.
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			progress := 100.0
			if p.seconds > 0 {
				progress = (p.seconds - time.Until(end).Seconds()) / p.seconds * 100
			}
			output.PrintRight(output.PrettySampleStatus(
				progress,
				atomic.LoadUint64(&p.samples),
				atomic.LoadUint64(&p.idle),
			))
		case <-ctx.Done():
			return
		}
	}
}
