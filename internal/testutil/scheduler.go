package testutil

import (
	"sync"
	"time"
)

type scheduledTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

// ManualScheduler records deferred work without running it. Tests fire the
// pending tasks explicitly, which makes the window between a broadcast and
// its deferred teardown observable.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*scheduledTask
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule records fn for later and returns a cancel function.
func (m *ManualScheduler) Schedule(delay time.Duration, fn func()) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task := &scheduledTask{delay: delay, fn: fn}
	m.tasks = append(m.tasks, task)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.cancelled = true
	}
}

// Pending returns the number of recorded tasks that have neither run nor
// been cancelled.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, task := range m.tasks {
		if !task.cancelled {
			n++
		}
	}
	return n
}

// RunAll executes every pending task in scheduling order and clears the
// queue. It returns the number of tasks run.
func (m *ManualScheduler) RunAll() int {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	n := 0
	for _, task := range tasks {
		if task.cancelled {
			continue
		}
		task.fn()
		n++
	}
	return n
}
