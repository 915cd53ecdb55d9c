package match

import "time"

// Scheduler defers a piece of work. The server uses it to hold session
// teardown back until the farewell broadcast has gone out, and tests swap
// in a manual implementation to make that window observable.
type Scheduler interface {
	// Schedule runs fn after delay on its own goroutine. The returned cancel
	// function stops a run that has not started yet.
	Schedule(delay time.Duration, fn func()) (cancel func())
}

// TimerScheduler runs deferred work on wall-clock timers.
type TimerScheduler struct{}

// NewTimerScheduler creates a wall-clock scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// Schedule runs fn after delay via time.AfterFunc.
func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}
