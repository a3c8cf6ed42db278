package repository

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

// TaskRepository defines the data operations for tasks, including the
// derived smart-list queries.
type TaskRepository interface {
	Create(task *domain.Task) error
	Save(task *domain.Task) error
	FindByID(id uuid.UUID) (*domain.Task, error)
	// Delete removes the task, its steps and its tag associations.
	// Shared tags themselves are kept.
	Delete(id uuid.UUID) error

	// FindByList orders by sort index, then most recently created.
	// Completed tasks are excluded unless includeCompleted is set.
	FindByList(listID uuid.UUID, includeCompleted bool) ([]domain.Task, error)
	// Search matches keyword case-insensitively against title or notes
	// and, when tag is non-empty, intersects with tasks carrying that
	// tag. Incomplete tasks come first, then most recently updated.
	Search(keyword, tag string) ([]domain.Task, error)

	MyDay() ([]domain.Task, error)
	Planned() ([]domain.Task, error)
	Important() ([]domain.Task, error)
	Completed() ([]domain.Task, error)

	// NextSortIndex returns max(sortIndex in list) + 1.
	NextSortIndex(listID uuid.UUID) (int64, error)
	ReplaceTags(task *domain.Task, tags []domain.Tag) error
	FindAll() ([]domain.Task, error)
}

type gormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) Create(task *domain.Task) error {
	return r.db.Create(task).Error
}

func (r *gormTaskRepository) Save(task *domain.Task) error {
	// Save persists scalar columns only; associations are managed
	// explicitly through ReplaceTags and the step repository.
	return r.db.Omit("Steps", "Tags").Save(task).Error
}

func (r *gormTaskRepository) FindByID(id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	result := r.db.Preload("Steps").Preload("Tags").First(&task, "id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &task, nil
}

func (r *gormTaskRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&domain.Step{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM task_tags WHERE task_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Task{}, "id = ?", id).Error
	})
}

func (r *gormTaskRepository) FindByList(listID uuid.UUID, includeCompleted bool) ([]domain.Task, error) {
	q := r.db.Where("list_id = ?", listID)
	if !includeCompleted {
		q = q.Where("is_completed = ?", false)
	}
	var tasks []domain.Task
	result := q.Preload("Steps").Preload("Tags").
		Order("sort_index ASC").Order("created_at DESC").
		Find(&tasks)
	return tasks, result.Error
}

func (r *gormTaskRepository) Search(keyword, tag string) ([]domain.Task, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	q := r.db.Model(&domain.Task{}).
		Where("LOWER(title) LIKE ? OR LOWER(COALESCE(notes, '')) LIKE ?", pattern, pattern)
	if tag != "" {
		q = q.Joins("JOIN task_tags ON task_tags.task_id = tasks.id").
			Joins("JOIN tags ON tags.id = task_tags.tag_id").
			Where("LOWER(tags.name) = ?", strings.ToLower(tag))
	}
	var tasks []domain.Task
	result := q.Preload("Tags").
		Order("is_completed ASC").Order("updated_at DESC").
		Find(&tasks)
	return tasks, result.Error
}

func (r *gormTaskRepository) MyDay() ([]domain.Task, error) {
	return r.findSmart("my_day = ? AND is_completed = ?", true, false)
}

func (r *gormTaskRepository) Planned() ([]domain.Task, error) {
	return r.findSmart("(due_date IS NOT NULL OR reminder IS NOT NULL) AND is_completed = ?", false)
}

func (r *gormTaskRepository) Important() ([]domain.Task, error) {
	return r.findSmart("is_important = ? AND is_completed = ?", true, false)
}

func (r *gormTaskRepository) Completed() ([]domain.Task, error) {
	return r.findSmart("is_completed = ?", true)
}

func (r *gormTaskRepository) findSmart(cond string, args ...any) ([]domain.Task, error) {
	var tasks []domain.Task
	result := r.db.Where(cond, args...).Order("updated_at DESC").Find(&tasks)
	return tasks, result.Error
}

func (r *gormTaskRepository) NextSortIndex(listID uuid.UUID) (int64, error) {
	var max *int64
	result := r.db.Model(&domain.Task{}).
		Where("list_id = ?", listID).
		Select("MAX(sort_index)").
		Scan(&max)
	if result.Error != nil {
		return 0, result.Error
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

func (r *gormTaskRepository) ReplaceTags(task *domain.Task, tags []domain.Tag) error {
	if err := r.db.Model(task).Association("Tags").Replace(tags); err != nil {
		return err
	}
	task.Tags = tags
	return nil
}

func (r *gormTaskRepository) FindAll() ([]domain.Task, error) {
	var tasks []domain.Task
	result := r.db.Preload("Tags").Order("created_at ASC").Find(&tasks)
	return tasks, result.Error
}
