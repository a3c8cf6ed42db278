// Package reminder keeps an external one-shot alarm dispatcher in sync
// with task state.
package reminder

import (
	"log"
	"sync"
	"time"
)

// Dispatcher is the external alarm collaborator. The identifier equals
// the task's identifier, which makes Cancel idempotent and collision-free
// across tasks. Dispatch is best-effort: implementations do not report
// failures and lifecycle operations never fail on them.
type Dispatcher interface {
	Schedule(id, title, body string, fireAt time.Time)
	Cancel(id string)
	CancelAll()
}

// LogDispatcher logs schedule/cancel calls. It stands in for a platform
// notification service in environments without one.
type LogDispatcher struct{}

func (LogDispatcher) Schedule(id, title, _ string, fireAt time.Time) {
	log.Printf("reminder scheduled: id=%s title=%q fireAt=%s", id, title, fireAt.Format(time.RFC3339))
}

func (LogDispatcher) Cancel(id string) {
	log.Printf("reminder canceled: id=%s", id)
}

func (LogDispatcher) CancelAll() {
	log.Printf("all reminders canceled")
}

// ScheduledReminder is a pending alarm held by MemoryDispatcher.
type ScheduledReminder struct {
	Title  string
	Body   string
	FireAt time.Time
}

// MemoryDispatcher keeps pending alarms in memory. Tests use it to
// observe the scheduler's effects.
type MemoryDispatcher struct {
	mu      sync.Mutex
	pending map[string]ScheduledReminder
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{pending: make(map[string]ScheduledReminder)}
}

func (d *MemoryDispatcher) Schedule(id, title, body string, fireAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[id] = ScheduledReminder{Title: title, Body: body, FireAt: fireAt}
}

func (d *MemoryDispatcher) Cancel(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, id)
}

func (d *MemoryDispatcher) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = make(map[string]ScheduledReminder)
}

// Pending returns the alarm scheduled under id, if any.
func (d *MemoryDispatcher) Pending(id string) (ScheduledReminder, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.pending[id]
	return r, ok
}

// Count returns the number of pending alarms.
func (d *MemoryDispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
