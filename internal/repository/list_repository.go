package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

// ListRepository defines the data operations for lists.
type ListRepository interface {
	Create(list *domain.List) error
	Save(list *domain.List) error
	FindByID(id uuid.UUID) (*domain.List, error)
	// FindUserListByName matches non-system lists by exact name.
	FindUserListByName(name string) (*domain.List, error)
	FindAll() ([]domain.List, error)
	FindUserLists() ([]domain.List, error)
	CountUserLists() (int64, error)
	// Delete removes the list only; the service layer cascades tasks.
	Delete(id uuid.UUID) error
	// TaskIDs returns the identifiers of every task owned by the list.
	TaskIDs(id uuid.UUID) ([]uuid.UUID, error)
}

type gormListRepository struct {
	db *gorm.DB
}

func NewGormListRepository(db *gorm.DB) ListRepository {
	return &gormListRepository{db: db}
}

func (r *gormListRepository) Create(list *domain.List) error {
	return r.db.Create(list).Error
}

func (r *gormListRepository) Save(list *domain.List) error {
	return r.db.Omit("Tasks").Save(list).Error
}

func (r *gormListRepository) FindByID(id uuid.UUID) (*domain.List, error) {
	var list domain.List
	result := r.db.First(&list, "id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &list, nil
}

func (r *gormListRepository) FindUserListByName(name string) (*domain.List, error) {
	var list domain.List
	result := r.db.First(&list, "name = ? AND is_system = ?", name, false)
	if result.Error != nil {
		return nil, result.Error
	}
	return &list, nil
}

func (r *gormListRepository) FindAll() ([]domain.List, error) {
	var lists []domain.List
	result := r.db.Order("created_at ASC").Find(&lists)
	return lists, result.Error
}

func (r *gormListRepository) FindUserLists() ([]domain.List, error) {
	var lists []domain.List
	result := r.db.Where("is_system = ?", false).Order("created_at ASC").Find(&lists)
	return lists, result.Error
}

func (r *gormListRepository) CountUserLists() (int64, error) {
	var count int64
	result := r.db.Model(&domain.List{}).Where("is_system = ?", false).Count(&count)
	return count, result.Error
}

func (r *gormListRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&domain.List{}, "id = ?", id).Error
}

func (r *gormListRepository) TaskIDs(id uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := r.db.Model(&domain.Task{}).Where("list_id = ?", id).Pluck("id", &ids)
	return ids, result.Error
}
