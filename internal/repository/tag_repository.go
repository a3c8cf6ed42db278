package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

// TagRepository defines the data operations for tags.
type TagRepository interface {
	Create(tag *domain.Tag) error
	FindByID(id uuid.UUID) (*domain.Tag, error)
	// FindByNameFold matches case-insensitively.
	FindByNameFold(name string) (*domain.Tag, error)
	FindAll() ([]domain.Tag, error)
}

type gormTagRepository struct {
	db *gorm.DB
}

func NewGormTagRepository(db *gorm.DB) TagRepository {
	return &gormTagRepository{db: db}
}

func (r *gormTagRepository) Create(tag *domain.Tag) error {
	return r.db.Create(tag).Error
}

func (r *gormTagRepository) FindByID(id uuid.UUID) (*domain.Tag, error) {
	var tag domain.Tag
	result := r.db.First(&tag, "id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &tag, nil
}

func (r *gormTagRepository) FindByNameFold(name string) (*domain.Tag, error) {
	var tag domain.Tag
	result := r.db.First(&tag, "LOWER(name) = LOWER(?)", name)
	if result.Error != nil {
		return nil, result.Error
	}
	return &tag, nil
}

func (r *gormTagRepository) FindAll() ([]domain.Tag, error) {
	var tags []domain.Tag
	result := r.db.Order("name ASC").Find(&tags)
	return tags, result.Error
}
