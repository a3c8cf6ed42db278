package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
	"github.com/jarvis-app/jarvis-backend/internal/events"
	"github.com/jarvis-app/jarvis-backend/internal/repository"
)

// BackupVersion is the envelope version this codec writes.
const BackupVersion = 1

// importBucketName is the list that adopts imported tasks whose parent
// list is not part of the envelope or the store.
const importBucketName = "Imported"

// The envelope is the versioned container for a full-store snapshot:
// JSON, UTF-8, RFC 3339 dates. Field order follows the struct
// declarations, so output is reproducible.

type BackupList struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      *string   `json:"icon,omitempty"`
	Color     *string   `json:"color,omitempty"`
	IsSystem  bool      `json:"isSystem"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BackupTask struct {
	ID           uuid.UUID          `json:"id"`
	Title        string             `json:"title"`
	Notes        *string            `json:"notes,omitempty"`
	DueDate      *time.Time         `json:"dueDate,omitempty"`
	Reminder     *time.Time         `json:"reminder,omitempty"`
	IsCompleted  bool               `json:"isCompleted"`
	IsImportant  bool               `json:"isImportant"`
	RepeatRule   *domain.RepeatRule `json:"repeatRule,omitempty"`
	MyDay        bool               `json:"myDay"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	ParentListID uuid.UUID          `json:"parentListId"`
	TagNames     []string           `json:"tagNames,omitempty"`
}

type BackupStep struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	IsCompleted  bool      `json:"isCompleted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ParentTaskID uuid.UUID `json:"parentTaskId"`
}

type BackupTag struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type BackupEnvelope struct {
	Version int          `json:"version"`
	Lists   []BackupList `json:"lists"`
	Tasks   []BackupTask `json:"tasks"`
	Steps   []BackupStep `json:"steps"`
	Tags    []BackupTag  `json:"tags"`
}

// BackupService round-trips the whole store through the envelope format.
// Import validates before it mutates and merges without creating
// duplicates.
type BackupService interface {
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) error
}

type backupService struct {
	repos *repository.Repositories
	bus   *events.Bus
	clock clock.Clock
	mu    *sync.Mutex
}

func NewBackupService(repos *repository.Repositories, bus *events.Bus, clk clock.Clock, mu *sync.Mutex) BackupService {
	return &backupService{repos: repos, bus: bus, clock: clk, mu: mu}
}

// ExportFilename names a backup download after its creation time.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("JarvisBackup-%d.json", now.Unix())
}

func (s *backupService) Export(ctx context.Context) ([]byte, error) {
	env := BackupEnvelope{
		Version: BackupVersion,
		Lists:   []BackupList{},
		Tasks:   []BackupTask{},
		Steps:   []BackupStep{},
		Tags:    []BackupTag{},
	}
	err := s.repos.InTx(func(r *repository.Repositories) error {
		lists, err := r.Lists.FindAll()
		if err != nil {
			return err
		}
		for _, l := range lists {
			env.Lists = append(env.Lists, BackupList{
				ID: l.ID, Name: l.Name, Icon: l.Icon, Color: l.Color,
				IsSystem: l.IsSystem, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
			})
		}

		tasks, err := r.Tasks.FindAll()
		if err != nil {
			return err
		}
		for _, t := range tasks {
			row := BackupTask{
				ID: t.ID, Title: t.Title, Notes: t.Notes,
				DueDate: t.DueDate, Reminder: t.Reminder,
				IsCompleted: t.IsCompleted, IsImportant: t.IsImportant,
				MyDay:     t.MyDay,
				CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
				ParentListID: t.ListID,
			}
			if t.RepeatRule != nil {
				if rule, err := domain.DecodeRepeatRule(*t.RepeatRule); err == nil {
					row.RepeatRule = &rule
				} else {
					log.Printf("export: task %s carries an undecodable repeat rule, skipping it: %v", t.ID, err)
				}
			}
			for _, tag := range t.Tags {
				row.TagNames = append(row.TagNames, tag.Name)
			}
			env.Tasks = append(env.Tasks, row)
		}

		steps, err := r.Steps.FindAll()
		if err != nil {
			return err
		}
		for _, st := range steps {
			env.Steps = append(env.Steps, BackupStep{
				ID: st.ID, Title: st.Title, IsCompleted: st.IsCompleted,
				CreatedAt: st.CreatedAt, UpdatedAt: st.UpdatedAt,
				ParentTaskID: st.TaskID,
			})
		}

		tags, err := r.Tags.FindAll()
		if err != nil {
			return err
		}
		for _, tag := range tags {
			env.Tags = append(env.Tags, BackupTag{ID: tag.ID, Name: tag.Name})
		}
		return nil
	})
	if err != nil {
		return nil, persistencef("export snapshot", err)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup envelope: %w", err)
	}
	return data, nil
}

// Import validates the payload, then merges it into the store inside one
// transaction. Identifiers already present are reused as-is: existing
// data wins, re-importing the same envelope is idempotent.
func (s *backupService) Import(ctx context.Context, data []byte) error {
	env, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	if err := validateEnvelope(env); err != nil {
		return err
	}
	if env.Version < 1 {
		return ErrVersionUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.merge(env); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.BackupImported})
	return nil
}

func decodeEnvelope(data []byte) (*BackupEnvelope, error) {
	if len(data) == 0 {
		return nil, ErrBackupEmpty
	}
	var env BackupEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	// All four sections are required for the payload to count as an
	// envelope; empty arrays are fine, missing keys are not.
	if env.Lists == nil || env.Tasks == nil || env.Steps == nil || env.Tags == nil {
		return nil, fmt.Errorf("%w: missing envelope sections", ErrInvalidSchema)
	}
	return &env, nil
}

// validateEnvelope checks the envelope's self-consistency: a duplicate
// identifier within one section fails the import before any row is
// persisted, independent of what already exists in the store.
func validateEnvelope(env *BackupEnvelope) error {
	seen := make(map[uuid.UUID]bool, len(env.Lists))
	for _, l := range env.Lists {
		if seen[l.ID] {
			return validationFailedf("duplicate list id %s", l.ID)
		}
		seen[l.ID] = true
	}
	seen = make(map[uuid.UUID]bool, len(env.Tasks))
	for _, t := range env.Tasks {
		if seen[t.ID] {
			return validationFailedf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
	}
	seen = make(map[uuid.UUID]bool, len(env.Steps))
	for _, st := range env.Steps {
		if seen[st.ID] {
			return validationFailedf("duplicate step id %s", st.ID)
		}
		seen[st.ID] = true
	}
	return nil
}

func (s *backupService) merge(env *BackupEnvelope) error {
	droppedSteps := 0
	err := s.repos.InTx(func(r *repository.Repositories) error {
		listIDs := make(map[uuid.UUID]bool, len(env.Lists))
		for _, row := range env.Lists {
			if _, err := r.Lists.FindByID(row.ID); err == nil {
				listIDs[row.ID] = true
				continue
			}
			list := &domain.List{
				ID: row.ID, Name: row.Name, Icon: row.Icon, Color: row.Color,
				IsSystem: row.IsSystem, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
			}
			if err := r.Lists.Create(list); err != nil {
				return err
			}
			listIDs[row.ID] = true
		}

		var bucket *domain.List
		taskIDs := make(map[uuid.UUID]bool, len(env.Tasks))
		for _, row := range env.Tasks {
			task, err := r.Tasks.FindByID(row.ID)
			if err != nil {
				parentID := row.ParentListID
				if !listIDs[parentID] {
					if _, err := r.Lists.FindByID(parentID); err != nil {
						// Unknown parent: adopt into the import bucket
						// instead of rejecting the row.
						if bucket == nil {
							if bucket, err = ensureImportBucket(r, s.clock.Now()); err != nil {
								return err
							}
						}
						parentID = bucket.ID
					}
				}
				rule, err := encodeRule(row.RepeatRule)
				if err != nil {
					return validationFailedf("task %s: %v", row.ID, err)
				}
				idx, err := r.Tasks.NextSortIndex(parentID)
				if err != nil {
					return err
				}
				task = &domain.Task{
					ID: row.ID, ListID: parentID, Title: row.Title, Notes: row.Notes,
					DueDate: row.DueDate, Reminder: row.Reminder,
					IsCompleted: row.IsCompleted, IsImportant: row.IsImportant,
					MyDay: row.MyDay, RepeatRule: rule, SortIndex: idx,
					CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
				}
				if err := r.Tasks.Create(task); err != nil {
					return err
				}
			}
			taskIDs[row.ID] = true
			if len(row.TagNames) > 0 {
				if err := applyTags(r, task, row.TagNames); err != nil {
					return err
				}
			}
		}

		for _, row := range env.Steps {
			if _, err := r.Steps.FindByID(row.ID); err == nil {
				continue
			}
			if !taskIDs[row.ParentTaskID] {
				if _, err := r.Tasks.FindByID(row.ParentTaskID); err != nil {
					// Partial-graph tolerance: a step whose parent task
					// is neither in the envelope nor in the store is
					// dropped, not an error.
					droppedSteps++
					continue
				}
			}
			step := &domain.Step{
				ID: row.ID, TaskID: row.ParentTaskID, Title: row.Title,
				IsCompleted: row.IsCompleted,
				CreatedAt:   row.CreatedAt, UpdatedAt: row.UpdatedAt,
			}
			if err := r.Steps.Create(step); err != nil {
				return err
			}
		}

		for _, row := range env.Tags {
			if _, err := r.Tags.FindByID(row.ID); err == nil {
				continue
			}
			if _, err := r.Tags.FindByNameFold(row.Name); err == nil {
				continue
			}
			if err := r.Tags.Create(&domain.Tag{ID: row.ID, Name: row.Name}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistencef("import merge", err)
	}
	if droppedSteps > 0 {
		log.Printf("import: dropped %d step(s) with unknown parent task", droppedSteps)
	}
	return nil
}

func ensureImportBucket(r *repository.Repositories, now time.Time) (*domain.List, error) {
	if list, err := r.Lists.FindUserListByName(importBucketName); err == nil {
		return list, nil
	}
	list := &domain.List{
		ID:        uuid.New(),
		Name:      importBucketName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.Lists.Create(list); err != nil {
		return nil, err
	}
	return list, nil
}

func encodeRule(rule *domain.RepeatRule) (*string, error) {
	if rule == nil {
		return nil, nil
	}
	encoded, err := rule.Encode()
	if err != nil {
		return nil, err
	}
	return &encoded, nil
}
