package reminder

import (
	"time"

	"github.com/google/uuid"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

// Dispatchers may reject triggers in the past or firing right now, so
// imminent reminders are pushed out by this much.
const minLeadTime = 5 * time.Second

// Scheduler derives dispatcher calls from task state. Reschedule is the
// single synchronization point: it runs after every task mutation that
// could affect due date, reminder or completion.
type Scheduler struct {
	dispatcher Dispatcher
	clock      clock.Clock
}

func NewScheduler(dispatcher Dispatcher, clk clock.Clock) *Scheduler {
	return &Scheduler{dispatcher: dispatcher, clock: clk}
}

// Reschedule cancels any pending alarm for the task, then schedules a new
// one only if the task is open and its reminder is in the future.
func (s *Scheduler) Reschedule(task *domain.Task) {
	s.dispatcher.Cancel(task.ID.String())
	if task.IsCompleted || task.Reminder == nil {
		return
	}
	now := s.clock.Now()
	if !task.Reminder.After(now) {
		return
	}
	fireAt := *task.Reminder
	if earliest := now.Add(minLeadTime); fireAt.Before(earliest) {
		fireAt = earliest
	}
	body := ""
	if task.Notes != nil {
		body = *task.Notes
	}
	s.dispatcher.Schedule(task.ID.String(), task.Title, body, fireAt)
}

// Cancel drops any pending alarm for the task identifier.
func (s *Scheduler) Cancel(id uuid.UUID) {
	s.dispatcher.Cancel(id.String())
}
