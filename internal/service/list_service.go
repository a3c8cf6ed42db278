package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
	"github.com/jarvis-app/jarvis-backend/internal/events"
	"github.com/jarvis-app/jarvis-backend/internal/reminder"
	"github.com/jarvis-app/jarvis-backend/internal/repository"
)

// CreateListRequest holds the data needed to create a new list.
type CreateListRequest struct {
	Name  string  `json:"name"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

// ListResponse is the standard representation of a list returned by the
// service.
type ListResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      *string   `json:"icon,omitempty"`
	Color     *string   `json:"color,omitempty"`
	IsSystem  bool      `json:"isSystem"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SmartList describes a built-in derived view. These are not stored;
// membership is computed by predicate.
type SmartList struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// SmartLists enumerates the built-in derived views in display order.
func SmartLists() []SmartList {
	return []SmartList{
		{Key: "myday", Title: "My Day"},
		{Key: "planned", Title: "Planned"},
		{Key: "important", Title: "Important"},
		{Key: "completed", Title: "Completed"},
	}
}

// ListService owns list CRUD. Deleting a list cascades to its tasks and
// their steps; system lists are never user-deletable.
type ListService interface {
	Create(ctx context.Context, req CreateListRequest) (*ListResponse, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*ListResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*ListResponse, error)
	All(ctx context.Context) ([]ListResponse, error)
	UserLists(ctx context.Context) ([]ListResponse, error)
}

type listService struct {
	repos     *repository.Repositories
	scheduler *reminder.Scheduler
	bus       *events.Bus
	clock     clock.Clock
	mu        *sync.Mutex
}

func NewListService(repos *repository.Repositories, scheduler *reminder.Scheduler, bus *events.Bus, clk clock.Clock, mu *sync.Mutex) ListService {
	return &listService{repos: repos, scheduler: scheduler, bus: bus, clock: clk, mu: mu}
}

func (s *listService) Create(ctx context.Context, req CreateListRequest) (*ListResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidInputf("list name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	list := &domain.List{
		ID:        uuid.New(),
		Name:      name,
		Icon:      req.Icon,
		Color:     req.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Lists.Create(list); err != nil {
		return nil, persistencef("create list", err)
	}
	s.bus.Publish(events.Event{Kind: events.ListCreated, ID: list.ID})
	return toListResponse(list), nil
}

func (s *listService) Rename(ctx context.Context, id uuid.UUID, name string) (*ListResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInputf("list name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.findList(id)
	if err != nil {
		return nil, err
	}
	list.Name = name
	list.UpdatedAt = s.clock.Now()
	if err := s.repos.Lists.Save(list); err != nil {
		return nil, persistencef("save list", err)
	}
	s.bus.Publish(events.Event{Kind: events.ListUpdated, ID: list.ID})
	return toListResponse(list), nil
}

func (s *listService) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.findList(id)
	if err != nil {
		return err
	}
	if list.IsSystem {
		return invalidInputf("system lists cannot be deleted")
	}

	taskIDs, err := s.repos.Lists.TaskIDs(id)
	if err != nil {
		return persistencef("fetch list tasks", err)
	}
	err = s.repos.InTx(func(r *repository.Repositories) error {
		for _, taskID := range taskIDs {
			if err := r.Tasks.Delete(taskID); err != nil {
				return err
			}
		}
		return r.Lists.Delete(id)
	})
	if err != nil {
		return persistencef("delete list", err)
	}

	for _, taskID := range taskIDs {
		s.scheduler.Cancel(taskID)
	}
	s.bus.Publish(events.Event{Kind: events.ListDeleted, ID: id})
	return nil
}

func (s *listService) Get(ctx context.Context, id uuid.UUID) (*ListResponse, error) {
	list, err := s.findList(id)
	if err != nil {
		return nil, err
	}
	return toListResponse(list), nil
}

func (s *listService) All(ctx context.Context) ([]ListResponse, error) {
	lists, err := s.repos.Lists.FindAll()
	if err != nil {
		return nil, persistencef("fetch lists", err)
	}
	return toListResponses(lists), nil
}

func (s *listService) UserLists(ctx context.Context) ([]ListResponse, error) {
	lists, err := s.repos.Lists.FindUserLists()
	if err != nil {
		return nil, persistencef("fetch lists", err)
	}
	return toListResponses(lists), nil
}

func (s *listService) findList(id uuid.UUID) (*domain.List, error) {
	list, err := s.repos.Lists.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("list %s", id)
		}
		return nil, persistencef("fetch list", err)
	}
	return list, nil
}

func toListResponse(l *domain.List) *ListResponse {
	return &ListResponse{
		ID:        l.ID,
		Name:      l.Name,
		Icon:      l.Icon,
		Color:     l.Color,
		IsSystem:  l.IsSystem,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func toListResponses(lists []domain.List) []ListResponse {
	responses := make([]ListResponse, 0, len(lists))
	for i := range lists {
		responses = append(responses, *toListResponse(&lists[i]))
	}
	return responses
}
