package scanner

import "time"

// debouncer is a resettable quiet-window timer owned by the scanner loop.
// It is not safe for concurrent use.
type debouncer struct {
	window  time.Duration
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

// reset (re)starts the window.
func (d *debouncer) reset() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.timerCh = d.timer.C
}

// timerC returns the channel that fires when the window expires, or nil
// when no window is running so the select case blocks.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

// stop cancels the window.
func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
}
