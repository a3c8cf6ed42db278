package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
	"github.com/jarvis-app/jarvis-backend/internal/events"
	"github.com/jarvis-app/jarvis-backend/internal/repository"
	"github.com/jarvis-app/jarvis-backend/internal/tags"
)

// TagResponse is the standard representation of a tag.
type TagResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// TagService owns tag normalization and the tag↔task relation.
type TagService interface {
	// FetchOrCreate trims the name, looks it up case-insensitively and
	// creates it on miss. Names are never duplicated.
	FetchOrCreate(ctx context.Context, name string) (*TagResponse, error)
	// SetTags replaces the task's tag set with the resolved, normalized
	// names. This is a full-replace operation, not an incremental add.
	SetTags(ctx context.Context, taskID uuid.UUID, names []string) error
	// ApplyExtracted extracts hashtags from free text and applies them
	// via SetTags.
	ApplyExtracted(ctx context.Context, taskID uuid.UUID, text string) error
	All(ctx context.Context) ([]TagResponse, error)
}

type tagService struct {
	repos *repository.Repositories
	bus   *events.Bus
	clock clock.Clock
	mu    *sync.Mutex
}

func NewTagService(repos *repository.Repositories, bus *events.Bus, clk clock.Clock, mu *sync.Mutex) TagService {
	return &tagService{repos: repos, bus: bus, clock: clk, mu: mu}
}

func (s *tagService) FetchOrCreate(ctx context.Context, name string) (*TagResponse, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, invalidInputf("tag name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := fetchOrCreateTag(s.repos.Tags, name)
	if err != nil {
		return nil, persistencef("fetch or create tag", err)
	}
	return &TagResponse{ID: tag.ID, Name: tag.Name}, nil
}

func (s *tagService) SetTags(ctx context.Context, taskID uuid.UUID, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repos.InTx(func(r *repository.Repositories) error {
		task, err := r.Tasks.FindByID(taskID)
		if err != nil {
			return err
		}
		if err := applyTags(r, task, names); err != nil {
			return err
		}
		task.UpdatedAt = s.clock.Now()
		return r.Tasks.Save(task)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("task %s", taskID)
		}
		return persistencef("set tags", err)
	}
	s.bus.Publish(events.Event{Kind: events.TaskUpdated, ID: taskID})
	return nil
}

func (s *tagService) ApplyExtracted(ctx context.Context, taskID uuid.UUID, text string) error {
	return s.SetTags(ctx, taskID, tags.Extract(text))
}

func (s *tagService) All(ctx context.Context) ([]TagResponse, error) {
	all, err := s.repos.Tags.FindAll()
	if err != nil {
		return nil, persistencef("fetch tags", err)
	}
	responses := make([]TagResponse, 0, len(all))
	for _, t := range all {
		responses = append(responses, TagResponse{ID: t.ID, Name: t.Name})
	}
	return responses, nil
}

// normalizeTagNames trims, lower-cases, drops empties and deduplicates
// while preserving first-seen order.
func normalizeTagNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func fetchOrCreateTag(repo repository.TagRepository, name string) (*domain.Tag, error) {
	tag, err := repo.FindByNameFold(name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	tag = &domain.Tag{ID: uuid.New(), Name: name}
	if err := repo.Create(tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// applyTags resolves normalized names to tags and replaces the task's
// tag set. Shared with the backup importer, which runs it inside the
// merge transaction.
func applyTags(r *repository.Repositories, task *domain.Task, names []string) error {
	normalized := normalizeTagNames(names)
	resolved := make([]domain.Tag, 0, len(normalized))
	for _, name := range normalized {
		tag, err := fetchOrCreateTag(r.Tags, name)
		if err != nil {
			return err
		}
		resolved = append(resolved, *tag)
	}
	return r.Tasks.ReplaceTags(task, resolved)
}
