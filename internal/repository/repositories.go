package repository

import "gorm.io/gorm"

// Repositories bundles the per-entity repositories over one GORM handle.
type Repositories struct {
	Tasks TaskRepository
	Lists ListRepository
	Tags  TagRepository
	Steps StepRepository

	db *gorm.DB
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Tasks: NewGormTaskRepository(db),
		Lists: NewGormListRepository(db),
		Tags:  NewGormTagRepository(db),
		Steps: NewGormStepRepository(db),
		db:    db,
	}
}

// InTx runs fn with repositories scoped to one database transaction.
// Returning an error rolls the whole transaction back.
func (r *Repositories) InTx(fn func(*Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
