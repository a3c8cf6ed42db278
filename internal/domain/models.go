package domain

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps are stamped by the lifecycle services through the injected
// clock, never by GORM, so the auto-tracking is disabled on every model.

// List groups tasks. System lists are the built-in smart-list placeholders
// and cannot be deleted by users.
type List struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	Icon      *string
	Color     *string
	IsSystem  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`

	Tasks []Task `gorm:"foreignKey:ListID"`
}

// Task is the central entity. RepeatRule is stored as a serialized JSON
// string attribute, not a separate table.
type Task struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ListID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Title       string    `gorm:"not null"`
	Notes       *string
	DueDate     *time.Time
	Reminder    *time.Time
	IsCompleted bool `gorm:"not null;index"`
	IsImportant bool `gorm:"not null"`
	MyDay       bool `gorm:"not null"`
	RepeatRule  *string
	SortIndex   int64     `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`

	Steps []Step `gorm:"foreignKey:TaskID"`
	Tags  []Tag  `gorm:"many2many:task_tags"`
}

// Step is a sub-item of a task. Deleting the task deletes its steps.
type Step struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TaskID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Title       string    `gorm:"not null"`
	IsCompleted bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

// Tag has a case-insensitively unique name and is shared between tasks.
// Deleting a task detaches its tags but never deletes them.
type Tag struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null;uniqueIndex"`

	Tasks []Task `gorm:"many2many:task_tags"`
}

// AllModels lists every entity for schema auto-migration.
func AllModels() []any {
	return []any{&List{}, &Task{}, &Step{}, &Tag{}}
}
