package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

// StepRepository defines the data operations for task steps.
type StepRepository interface {
	Create(step *domain.Step) error
	Save(step *domain.Step) error
	FindByID(id uuid.UUID) (*domain.Step, error)
	FindByTask(taskID uuid.UUID) ([]domain.Step, error)
	Delete(id uuid.UUID) error
	FindAll() ([]domain.Step, error)
}

type gormStepRepository struct {
	db *gorm.DB
}

func NewGormStepRepository(db *gorm.DB) StepRepository {
	return &gormStepRepository{db: db}
}

func (r *gormStepRepository) Create(step *domain.Step) error {
	return r.db.Create(step).Error
}

func (r *gormStepRepository) Save(step *domain.Step) error {
	return r.db.Save(step).Error
}

func (r *gormStepRepository) FindByID(id uuid.UUID) (*domain.Step, error) {
	var step domain.Step
	result := r.db.First(&step, "id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &step, nil
}

func (r *gormStepRepository) FindByTask(taskID uuid.UUID) ([]domain.Step, error) {
	var steps []domain.Step
	result := r.db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&steps)
	return steps, result.Error
}

func (r *gormStepRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&domain.Step{}, "id = ?", id).Error
}

func (r *gormStepRepository) FindAll() ([]domain.Step, error) {
	var steps []domain.Step
	result := r.db.Order("created_at ASC").Find(&steps)
	return steps, result.Error
}
