package service

import (
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
	"github.com/jarvis-app/jarvis-backend/internal/events"
	"github.com/jarvis-app/jarvis-backend/internal/reminder"
	"github.com/jarvis-app/jarvis-backend/internal/repository"
)

// testEnv wires the services over an in-memory sqlite store, a manual
// clock and an in-memory reminder dispatcher.
type testEnv struct {
	repos      *repository.Repositories
	clock      *clock.Manual
	dispatcher *reminder.MemoryDispatcher
	bus        *events.Bus

	tasks  TaskService
	lists  ListService
	tags   TagService
	backup BackupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := clock.NewManual(time.Date(2023, time.September, 1, 9, 0, 0, 0, time.UTC))
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: clk.Now,
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second pooled connection would see its own empty memory store.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(domain.AllModels()...))

	repos := repository.New(db)
	bus := events.NewBus()
	dispatcher := reminder.NewMemoryDispatcher()
	scheduler := reminder.NewScheduler(dispatcher, clk)
	var mu sync.Mutex

	return &testEnv{
		repos:      repos,
		clock:      clk,
		dispatcher: dispatcher,
		bus:        bus,
		tasks:      NewTaskService(repos, scheduler, bus, clk, &mu),
		lists:      NewListService(repos, scheduler, bus, clk, &mu),
		tags:       NewTagService(repos, bus, clk, &mu),
		backup:     NewBackupService(repos, bus, clk, &mu),
	}
}

func (e *testEnv) mustCreateList(t *testing.T, name string) *ListResponse {
	t.Helper()
	list, err := e.lists.Create(t.Context(), CreateListRequest{Name: name})
	require.NoError(t, err)
	return list
}

func (e *testEnv) mustCreateTask(t *testing.T, listID uuid.UUID, title string) *TaskResponse {
	t.Helper()
	task, err := e.tasks.Create(t.Context(), CreateTaskRequest{ListID: listID, Title: title})
	require.NoError(t, err)
	return task
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
