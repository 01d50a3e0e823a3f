// Package clock abstracts the host scheduler that drives the countdown so
// timers can run on wall time in production and on manual time in tests.
package clock

import (
	"sync"
	"time"
)

// Clock schedules callbacks. Callbacks may run on any goroutine; callers
// serialize their own state.
type Clock interface {
	Now() time.Time
	// Every calls fn once per interval until the returned handle is stopped.
	Every(interval time.Duration, fn func()) Handle
	// After calls fn once after delay unless the handle is stopped first.
	After(delay time.Duration, fn func()) Handle
}

// Handle cancels a scheduled callback. Stop is idempotent.
type Handle interface {
	Stop()
}

// Real is a Clock backed by the time package.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) Every(interval time.Duration, fn func()) Handle {
	h := &tickerHandle{stopCh: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return h
}

func (Real) After(delay time.Duration, fn func()) Handle {
	return timerHandle{timer: time.AfterFunc(delay, fn)}
}

type tickerHandle struct {
	once   sync.Once
	stopCh chan struct{}
}

// Stop ends the ticking goroutine. It does not wait for a callback that is
// already running, since that callback may be blocked on the caller's lock.
func (h *tickerHandle) Stop() {
	h.once.Do(func() {
		close(h.stopCh)
	})
}

type timerHandle struct {
	timer *time.Timer
}

func (h timerHandle) Stop() {
	h.timer.Stop()
}
