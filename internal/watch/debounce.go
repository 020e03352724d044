package watch

import (
	"sync"
	"time"
)

const defaultDebounce = 150 * time.Millisecond

// debouncer fires its callback once per quiet period: every touch resets the
// timer, and the callback runs only after no touch arrives for the delay.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	fire    func()
	stopped bool
}

func newDebouncer(delay time.Duration, fire func()) *debouncer {
	return &debouncer{delay: delay, fire: fire}
}

// touch records a change and (re)arms the timer.
func (d *debouncer) touch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// stop cancels any pending fire.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
