package progress

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps progressbar with enabled/disabled handling.
// All methods are no-ops when disabled.
type Bar struct {
	bar *progressbar.ProgressBar
	max int64
}

// New creates a determinate progress bar writing to w (normally os.Stderr).
// If enabled=false, returns a Bar where all methods are no-ops.
func New(enabled bool, w io.Writer) *Bar {
	if !enabled {
		return &Bar{}
	}

	bar := progressbar.NewOptions64(1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
	)
	return &Bar{bar: bar, max: 1}
}

// Update sets the bar to scanned out of total, growing the maximum as the
// session discovers more work.
func (b *Bar) Update(scanned, total int64) {
	if b.bar == nil || total == 0 {
		return
	}
	if total != b.max {
		b.bar.ChangeMax64(total)
		b.max = total
	}
	_ = b.bar.Set64(scanned)
}

// Clear erases the bar line so a log line can be printed without collision.
func (b *Bar) Clear() {
	if b.bar != nil {
		_ = b.bar.Clear()
	}
}

// Finish completes and clears the progress bar.
func (b *Bar) Finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}
