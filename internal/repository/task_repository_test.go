package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second pooled connection would see its own empty memory store.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(domain.AllModels()...))
	return db
}

func seedList(t *testing.T, repos *Repositories, name string) *domain.List {
	t.Helper()
	now := time.Date(2023, time.September, 1, 9, 0, 0, 0, time.UTC)
	list := &domain.List{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repos.Lists.Create(list))
	return list
}

func seedTask(t *testing.T, repos *Repositories, listID uuid.UUID, title string, sortIndex int64) *domain.Task {
	t.Helper()
	now := time.Date(2023, time.September, 1, 9, 0, 0, 0, time.UTC)
	task := &domain.Task{
		ID: uuid.New(), ListID: listID, Title: title,
		SortIndex: sortIndex, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repos.Tasks.Create(task))
	return task
}

func TestNextSortIndex(t *testing.T) {
	repos := New(newTestDB(t))
	list := seedList(t, repos, "Inbox")
	other := seedList(t, repos, "Other")

	idx, err := repos.Tasks.NextSortIndex(list.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), idx, "empty list starts at 1")

	seedTask(t, repos, list.ID, "a", 1)
	seedTask(t, repos, list.ID, "b", 7)

	idx, err = repos.Tasks.NextSortIndex(list.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), idx, "follows the max, not the count")

	idx, err = repos.Tasks.NextSortIndex(other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), idx, "lists do not share index space")
}

func TestFindByListOrdering(t *testing.T) {
	repos := New(newTestDB(t))
	list := seedList(t, repos, "Inbox")
	second := seedTask(t, repos, list.ID, "second", 2)
	first := seedTask(t, repos, list.ID, "first", 1)
	done := seedTask(t, repos, list.ID, "done", 3)
	done.IsCompleted = true
	require.NoError(t, repos.Tasks.Save(done))

	open, err := repos.Tasks.FindByList(list.ID, false)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, first.ID, open[0].ID)
	assert.Equal(t, second.ID, open[1].ID)

	all, err := repos.Tasks.FindByList(list.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteCascadesStepsAndAssociations(t *testing.T) {
	repos := New(newTestDB(t))
	list := seedList(t, repos, "Inbox")
	task := seedTask(t, repos, list.ID, "parent", 1)

	now := task.CreatedAt
	step := &domain.Step{ID: uuid.New(), TaskID: task.ID, Title: "child", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repos.Steps.Create(step))
	tag := domain.Tag{ID: uuid.New(), Name: "work"}
	require.NoError(t, repos.Tags.Create(&tag))
	require.NoError(t, repos.Tasks.ReplaceTags(task, []domain.Tag{tag}))

	require.NoError(t, repos.Tasks.Delete(task.ID))

	_, err := repos.Tasks.FindByID(task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	steps, err := repos.Steps.FindByTask(task.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
	// The tag itself survives, only the association goes.
	kept, err := repos.Tags.FindByID(tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "work", kept.Name)
}

func TestSearchTagJoin(t *testing.T) {
	repos := New(newTestDB(t))
	list := seedList(t, repos, "Inbox")
	alpha := seedTask(t, repos, list.ID, "Alpha report", 1)
	beta := seedTask(t, repos, list.ID, "Beta report", 2)

	work := domain.Tag{ID: uuid.New(), Name: "work"}
	home := domain.Tag{ID: uuid.New(), Name: "home"}
	require.NoError(t, repos.Tags.Create(&work))
	require.NoError(t, repos.Tags.Create(&home))
	require.NoError(t, repos.Tasks.ReplaceTags(alpha, []domain.Tag{work}))
	require.NoError(t, repos.Tasks.ReplaceTags(beta, []domain.Tag{home}))

	// Keyword alone matches both.
	results, err := repos.Tasks.Search("report", "")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// The tag filter intersects, case-insensitively.
	results, err = repos.Tasks.Search("report", "WORK")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, alpha.ID, results[0].ID)

	results, err = repos.Tasks.Search("gamma", "work")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindByNameFold(t *testing.T) {
	repos := New(newTestDB(t))
	tag := domain.Tag{ID: uuid.New(), Name: "work"}
	require.NoError(t, repos.Tags.Create(&tag))

	found, err := repos.Tags.FindByNameFold("WoRk")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, found.ID)

	_, err = repos.Tags.FindByNameFold("home")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestInTxRollsBackOnError(t *testing.T) {
	repos := New(newTestDB(t))
	list := seedList(t, repos, "Inbox")

	wantErr := gorm.ErrInvalidData
	err := repos.InTx(func(r *Repositories) error {
		seedTask(t, r, list.ID, "ghost", 1)
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	tasks, err := repos.Tasks.FindByList(list.ID, true)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
