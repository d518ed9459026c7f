package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultExamDuration is the countdown of a test-mode exam.
const DefaultExamDuration = 3000 * time.Second

// TickerFunc starts a ticker and returns its channel and stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Timer counts an exam down once per second and, when it runs out, ends the
// exam through the session context. The end-exam path is idempotent, so the
// timer firing after a manual submission does nothing.
type Timer struct {
	sctx      *Context
	newTicker TickerFunc
	onExpire  func(error)

	mu        sync.Mutex
	remaining time.Duration
	running   bool
	expired   bool
	stop      chan struct{}
	done      chan struct{}
}

type TimerOption func(*Timer)

func WithTicker(fn TickerFunc) TimerOption { return func(t *Timer) { t.newTicker = fn } }

// WithExpireHook is called with the result of the exam-end trigger.
func WithExpireHook(fn func(error)) TimerOption { return func(t *Timer) { t.onExpire = fn } }

func NewTimer(sctx *Context, d time.Duration, opts ...TimerOption) *Timer {
	if d <= 0 {
		d = DefaultExamDuration
	}
	t := &Timer{sctx: sctx, remaining: d, newTicker: realTicker}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start runs the countdown in its own goroutine until it expires, Stop is
// called or ctx is done. Starting a running or expired timer does nothing.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.expired {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(ctx, t.stop, t.done)
}

func (t *Timer) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticks, stopTicker := t.newTicker(time.Second)
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			t.halt()
			return
		case <-stop:
			return
		case <-ticks:
			if t.tick() {
				err := t.sctx.TriggerExamEnd(ctx)
				if t.onExpire != nil {
					t.onExpire(err)
				}
				return
			}
		}
	}
}

// tick takes one second off and reports whether the timer just expired.
func (t *Timer) tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return false
	}
	if t.remaining <= time.Second {
		t.remaining = 0
		t.expired = true
		t.running = false
		return true
	}
	t.remaining -= time.Second
	return false
}

func (t *Timer) halt() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Stop halts a running countdown and waits for its goroutine to exit. It
// does not wait for an exam-end trigger that already fired.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	done := t.done
	t.mu.Unlock()
	<-done
}

// Running reports whether the countdown is still going.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// FormatClock renders d as MM:SS.
func FormatClock(d time.Duration) string {
	s := int(d / time.Second)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
