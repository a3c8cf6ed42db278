package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
	"github.com/jarvis-app/jarvis-backend/internal/events"
	"github.com/jarvis-app/jarvis-backend/internal/recurrence"
	"github.com/jarvis-app/jarvis-backend/internal/reminder"
	"github.com/jarvis-app/jarvis-backend/internal/repository"
)

// CreateTaskRequest holds the data needed to create a new task.
type CreateTaskRequest struct {
	ListID uuid.UUID `json:"listId"`
	Title  string    `json:"title"`
	Notes  *string   `json:"notes"`
}

// UpdateTaskRequest carries field changes. Pointer fields distinguish
// "omitted" from "set"; the Clear flags reset optional fields, which a
// nil pointer alone cannot express.
type UpdateTaskRequest struct {
	Title           *string            `json:"title"`
	Notes           *string            `json:"notes"`
	ClearNotes      bool               `json:"clearNotes"`
	DueDate         *time.Time         `json:"dueDate"`
	ClearDueDate    bool               `json:"clearDueDate"`
	Reminder        *time.Time         `json:"reminder"`
	ClearReminder   bool               `json:"clearReminder"`
	RepeatRule      *domain.RepeatRule `json:"repeatRule"`
	ClearRepeatRule bool               `json:"clearRepeatRule"`
}

// StepResponse is the representation of a step returned by the service.
type StepResponse struct {
	ID          uuid.UUID `json:"id"`
	TaskID      uuid.UUID `json:"taskId"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"isCompleted"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskResponse is the standard representation of a task returned by the
// service.
type TaskResponse struct {
	ID          uuid.UUID          `json:"id"`
	ListID      uuid.UUID          `json:"listId"`
	Title       string             `json:"title"`
	Notes       *string            `json:"notes,omitempty"`
	DueDate     *time.Time         `json:"dueDate,omitempty"`
	Reminder    *time.Time         `json:"reminder,omitempty"`
	IsCompleted bool               `json:"isCompleted"`
	IsImportant bool               `json:"isImportant"`
	MyDay       bool               `json:"myDay"`
	RepeatRule  *domain.RepeatRule `json:"repeatRule,omitempty"`
	SortIndex   int64              `json:"sortIndex"`
	TagNames    []string           `json:"tagNames,omitempty"`
	Steps       []StepResponse     `json:"steps,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// TaskService owns the task lifecycle: creation, mutation, recurrence
// successor spawning and the reminder synchronization that follows every
// mutation.
type TaskService interface {
	Create(ctx context.Context, req CreateTaskRequest) (*TaskResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*TaskResponse, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateTaskRequest) (*TaskResponse, error)
	ToggleCompleted(ctx context.Context, id uuid.UUID) (*TaskResponse, error)
	ToggleImportant(ctx context.Context, id uuid.UUID) (*TaskResponse, error)
	ToggleMyDay(ctx context.Context, id uuid.UUID) (*TaskResponse, error)
	Move(ctx context.Context, id, toListID uuid.UUID) (*TaskResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ByList(ctx context.Context, listID uuid.UUID, includeCompleted bool) ([]TaskResponse, error)
	Search(ctx context.Context, keyword, tag string) ([]TaskResponse, error)
	MyDay(ctx context.Context) ([]TaskResponse, error)
	Planned(ctx context.Context) ([]TaskResponse, error)
	Important(ctx context.Context) ([]TaskResponse, error)
	Completed(ctx context.Context) ([]TaskResponse, error)

	AddStep(ctx context.Context, taskID uuid.UUID, title string) (*StepResponse, error)
	ToggleStep(ctx context.Context, stepID uuid.UUID) (*StepResponse, error)
	DeleteStep(ctx context.Context, stepID uuid.UUID) error
}

type taskService struct {
	repos     *repository.Repositories
	scheduler *reminder.Scheduler
	bus       *events.Bus
	clock     clock.Clock
	// mu serializes all lifecycle mutations: sort-index computation and
	// successor spawning read-then-write without their own isolation.
	mu *sync.Mutex
}

func NewTaskService(repos *repository.Repositories, scheduler *reminder.Scheduler, bus *events.Bus, clk clock.Clock, mu *sync.Mutex) TaskService {
	return &taskService{repos: repos, scheduler: scheduler, bus: bus, clock: clk, mu: mu}
}

func (s *taskService) Create(ctx context.Context, req CreateTaskRequest) (*TaskResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalidInputf("task title cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repos.Lists.FindByID(req.ListID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("list %s", req.ListID)
		}
		return nil, persistencef("fetch list", err)
	}

	now := s.clock.Now()
	task := &domain.Task{
		ID:        uuid.New(),
		ListID:    req.ListID,
		Title:     title,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.repos.InTx(func(r *repository.Repositories) error {
		idx, err := r.Tasks.NextSortIndex(req.ListID)
		if err != nil {
			return err
		}
		task.SortIndex = idx
		return r.Tasks.Create(task)
	})
	if err != nil {
		return nil, persistencef("create task", err)
	}

	// No reminder is set yet, so nothing to schedule.
	s.bus.Publish(events.Event{Kind: events.TaskCreated, ID: task.ID})
	return toTaskResponse(task), nil
}

func (s *taskService) Get(ctx context.Context, id uuid.UUID) (*TaskResponse, error) {
	task, err := s.findTask(id)
	if err != nil {
		return nil, err
	}
	return toTaskResponse(task), nil
}

func (s *taskService) Update(ctx context.Context, id uuid.UUID, req UpdateTaskRequest) (*TaskResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.findTask(id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, invalidInputf("task title cannot be empty")
		}
		task.Title = title
	}
	if req.ClearNotes {
		task.Notes = nil
	} else if req.Notes != nil {
		task.Notes = req.Notes
	}
	if req.ClearDueDate {
		task.DueDate = nil
	} else if req.DueDate != nil {
		due := *req.DueDate
		task.DueDate = &due
	}
	if req.ClearReminder {
		task.Reminder = nil
	} else if req.Reminder != nil {
		rem := *req.Reminder
		task.Reminder = &rem
	}
	if req.ClearRepeatRule {
		task.RepeatRule = nil
	} else if req.RepeatRule != nil {
		encoded, err := req.RepeatRule.Encode()
		if err != nil {
			return nil, invalidInputf("repeat rule: %v", err)
		}
		task.RepeatRule = &encoded
	}
	if task.DueDate != nil && task.Reminder != nil && task.Reminder.After(*task.DueDate) {
		return nil, invalidInputf("reminder must not be after the due date")
	}

	task.UpdatedAt = s.clock.Now()
	if err := s.repos.Tasks.Save(task); err != nil {
		return nil, persistencef("save task", err)
	}

	// Every update is a schedule-recompute point: due-date or completion
	// changes affect whether the reminder should fire.
	s.scheduler.Reschedule(task)
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: task.ID})
	return toTaskResponse(task), nil
}

func (s *taskService) ToggleCompleted(ctx context.Context, id uuid.UUID) (*TaskResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var task, successor *domain.Task
	err := s.repos.InTx(func(r *repository.Repositories) error {
		t, err := r.Tasks.FindByID(id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		t.IsCompleted = !t.IsCompleted
		t.UpdatedAt = now

		if t.IsCompleted {
			successor, err = s.spawnSuccessor(r, t, now)
			if err != nil {
				return err
			}
		}
		task = t
		return r.Tasks.Save(t)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("task %s", id)
		}
		return nil, persistencef("toggle completed", err)
	}

	if task.IsCompleted {
		s.scheduler.Cancel(task.ID)
	} else {
		s.scheduler.Reschedule(task)
	}
	if successor != nil {
		s.scheduler.Reschedule(successor)
		s.bus.Publish(events.Event{Kind: events.TaskCreated, ID: successor.ID})
	}
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: task.ID})
	return toTaskResponse(task), nil
}

// spawnSuccessor synthesizes the next occurrence of a repeating task
// inside the toggle transaction. It returns nil when the task does not
// repeat. An undecodable rule is ignored rather than failing the toggle.
func (s *taskService) spawnSuccessor(r *repository.Repositories, t *domain.Task, now time.Time) (*domain.Task, error) {
	if t.DueDate == nil || t.RepeatRule == nil {
		return nil, nil
	}
	rule, err := domain.DecodeRepeatRule(*t.RepeatRule)
	if err != nil || rule.Kind == domain.RepeatNone {
		return nil, nil
	}
	nextDue := recurrence.NextOccurrence(*t.DueDate, rule)
	if nextDue == nil {
		return nil, nil
	}

	idx, err := r.Tasks.NextSortIndex(t.ListID)
	if err != nil {
		return nil, err
	}
	successor := &domain.Task{
		ID:          uuid.New(),
		ListID:      t.ListID,
		Title:       t.Title,
		Notes:       t.Notes,
		DueDate:     nextDue,
		IsImportant: t.IsImportant,
		RepeatRule:  t.RepeatRule,
		SortIndex:   idx,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Reminder != nil {
		// Carry the reminder forward preserving the lead time.
		lead := t.DueDate.Sub(*t.Reminder)
		carried := nextDue.Add(-lead)
		successor.Reminder = &carried
	}
	if err := r.Tasks.Create(successor); err != nil {
		return nil, err
	}
	return successor, nil
}

func (s *taskService) ToggleImportant(ctx context.Context, id uuid.UUID) (*TaskResponse, error) {
	return s.toggleFlag(id, func(t *domain.Task) { t.IsImportant = !t.IsImportant })
}

func (s *taskService) ToggleMyDay(ctx context.Context, id uuid.UUID) (*TaskResponse, error) {
	return s.toggleFlag(id, func(t *domain.Task) { t.MyDay = !t.MyDay })
}

func (s *taskService) toggleFlag(id uuid.UUID, flip func(*domain.Task)) (*TaskResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.findTask(id)
	if err != nil {
		return nil, err
	}
	flip(task)
	task.UpdatedAt = s.clock.Now()
	if err := s.repos.Tasks.Save(task); err != nil {
		return nil, persistencef("save task", err)
	}
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: task.ID})
	return toTaskResponse(task), nil
}

func (s *taskService) Move(ctx context.Context, id, toListID uuid.UUID) (*TaskResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.findTask(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Lists.FindByID(toListID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("list %s", toListID)
		}
		return nil, persistencef("fetch list", err)
	}

	// The sort index is not renormalized against the destination list;
	// new tasks there still get indices above its current max.
	task.ListID = toListID
	task.UpdatedAt = s.clock.Now()
	if err := s.repos.Tasks.Save(task); err != nil {
		return nil, persistencef("save task", err)
	}
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: task.ID})
	return toTaskResponse(task), nil
}

func (s *taskService) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.findTask(id); err != nil {
		return err
	}
	if err := s.repos.Tasks.Delete(id); err != nil {
		return persistencef("delete task", err)
	}
	s.scheduler.Cancel(id)
	s.bus.Publish(events.Event{Kind: events.TaskDeleted, ID: id})
	return nil
}

func (s *taskService) ByList(ctx context.Context, listID uuid.UUID, includeCompleted bool) ([]TaskResponse, error) {
	if _, err := s.repos.Lists.FindByID(listID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("list %s", listID)
		}
		return nil, persistencef("fetch list", err)
	}
	tasks, err := s.repos.Tasks.FindByList(listID, includeCompleted)
	if err != nil {
		return nil, persistencef("fetch tasks", err)
	}
	return toTaskResponses(tasks), nil
}

func (s *taskService) Search(ctx context.Context, keyword, tag string) ([]TaskResponse, error) {
	tasks, err := s.repos.Tasks.Search(keyword, tag)
	if err != nil {
		return nil, persistencef("search tasks", err)
	}
	return toTaskResponses(tasks), nil
}

func (s *taskService) MyDay(ctx context.Context) ([]TaskResponse, error) {
	return s.smart(s.repos.Tasks.MyDay)
}

func (s *taskService) Planned(ctx context.Context) ([]TaskResponse, error) {
	return s.smart(s.repos.Tasks.Planned)
}

func (s *taskService) Important(ctx context.Context) ([]TaskResponse, error) {
	return s.smart(s.repos.Tasks.Important)
}

func (s *taskService) Completed(ctx context.Context) ([]TaskResponse, error) {
	return s.smart(s.repos.Tasks.Completed)
}

func (s *taskService) smart(query func() ([]domain.Task, error)) ([]TaskResponse, error) {
	tasks, err := query()
	if err != nil {
		return nil, persistencef("fetch tasks", err)
	}
	return toTaskResponses(tasks), nil
}

func (s *taskService) AddStep(ctx context.Context, taskID uuid.UUID, title string) (*StepResponse, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidInputf("step title cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.findTask(taskID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	step := &domain.Step{
		ID:        uuid.New(),
		TaskID:    taskID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Steps.Create(step); err != nil {
		return nil, persistencef("create step", err)
	}
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: taskID})
	return toStepResponse(step), nil
}

func (s *taskService) ToggleStep(ctx context.Context, stepID uuid.UUID) (*StepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, err := s.repos.Steps.FindByID(stepID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("step %s", stepID)
		}
		return nil, persistencef("fetch step", err)
	}
	step.IsCompleted = !step.IsCompleted
	step.UpdatedAt = s.clock.Now()
	if err := s.repos.Steps.Save(step); err != nil {
		return nil, persistencef("save step", err)
	}
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: step.TaskID})
	return toStepResponse(step), nil
}

func (s *taskService) DeleteStep(ctx context.Context, stepID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, err := s.repos.Steps.FindByID(stepID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("step %s", stepID)
		}
		return persistencef("fetch step", err)
	}
	if err := s.repos.Steps.Delete(stepID); err != nil {
		return persistencef("delete step", err)
	}
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: step.TaskID})
	return nil
}

func (s *taskService) findTask(id uuid.UUID) (*domain.Task, error) {
	task, err := s.repos.Tasks.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("task %s", id)
		}
		return nil, persistencef("fetch task", err)
	}
	return task, nil
}

func toTaskResponse(t *domain.Task) *TaskResponse {
	resp := &TaskResponse{
		ID:          t.ID,
		ListID:      t.ListID,
		Title:       t.Title,
		Notes:       t.Notes,
		DueDate:     t.DueDate,
		Reminder:    t.Reminder,
		IsCompleted: t.IsCompleted,
		IsImportant: t.IsImportant,
		MyDay:       t.MyDay,
		SortIndex:   t.SortIndex,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.RepeatRule != nil {
		if rule, err := domain.DecodeRepeatRule(*t.RepeatRule); err == nil {
			resp.RepeatRule = &rule
		} else {
			log.Printf("task %s carries an undecodable repeat rule: %v", t.ID, err)
		}
	}
	for _, tag := range t.Tags {
		resp.TagNames = append(resp.TagNames, tag.Name)
	}
	for i := range t.Steps {
		resp.Steps = append(resp.Steps, *toStepResponse(&t.Steps[i]))
	}
	return resp
}

func toTaskResponses(tasks []domain.Task) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		responses = append(responses, *toTaskResponse(&tasks[i]))
	}
	return responses
}

func toStepResponse(s *domain.Step) *StepResponse {
	return &StepResponse{
		ID:          s.ID,
		TaskID:      s.TaskID,
		Title:       s.Title,
		IsCompleted: s.IsCompleted,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
