package service

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

func envelopeJSON(t *testing.T, env BackupEnvelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func emptyEnvelope(version int) BackupEnvelope {
	return BackupEnvelope{
		Version: version,
		Lists:   []BackupList{},
		Tasks:   []BackupTask{},
		Steps:   []BackupStep{},
		Tags:    []BackupTag{},
	}
}

func TestImportRejectsEmptyPayload(t *testing.T) {
	env := newTestEnv(t)
	err := env.backup.Import(t.Context(), nil)
	assert.ErrorIs(t, err, ErrBackupEmpty)
	err = env.backup.Import(t.Context(), []byte{})
	assert.ErrorIs(t, err, ErrBackupEmpty)
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	err := env.backup.Import(t.Context(), []byte("{not json"))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestImportRejectsMissingSections(t *testing.T) {
	env := newTestEnv(t)
	// Decodes fine as JSON but has none of the envelope sections.
	err := env.backup.Import(t.Context(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidSchema)

	err = env.backup.Import(t.Context(), []byte(`{"version":1,"lists":[],"tasks":[],"steps":[]}`))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestImportRejectsUnsupportedVersion(t *testing.T) {
	env := newTestEnv(t)
	err := env.backup.Import(t.Context(), envelopeJSON(t, emptyEnvelope(0)))
	assert.ErrorIs(t, err, ErrVersionUnsupported)
}

func TestImportRejectsDuplicateIDsBeforePersisting(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	listID := uuid.New()
	payload := emptyEnvelope(1)
	payload.Lists = []BackupList{
		{ID: listID, Name: "One", CreatedAt: now, UpdatedAt: now},
		{ID: listID, Name: "Two", CreatedAt: now, UpdatedAt: now},
	}

	err := env.backup.Import(t.Context(), envelopeJSON(t, payload))
	assert.ErrorIs(t, err, ErrValidationFailed)

	// Nothing was persisted, not even the first occurrence.
	lists, err := env.lists.All(t.Context())
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestImportMergesFullGraph(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	listID := uuid.New()
	taskID := uuid.New()
	stepID := uuid.New()
	due := now.Add(48 * time.Hour)
	rule := domain.RepeatRule{Kind: domain.RepeatDaily}

	payload := emptyEnvelope(1)
	payload.Lists = []BackupList{{ID: listID, Name: "Restored", CreatedAt: now, UpdatedAt: now}}
	payload.Tasks = []BackupTask{{
		ID: taskID, Title: "restored task", DueDate: &due,
		RepeatRule: &rule, ParentListID: listID,
		TagNames:  []string{"Work", "work"},
		CreatedAt: now, UpdatedAt: now,
	}}
	payload.Steps = []BackupStep{{ID: stepID, Title: "restored step", ParentTaskID: taskID, CreatedAt: now, UpdatedAt: now}}
	payload.Tags = []BackupTag{{ID: uuid.New(), Name: "work"}}

	require.NoError(t, env.backup.Import(t.Context(), envelopeJSON(t, payload)))

	got, err := env.tasks.Get(t.Context(), taskID)
	require.NoError(t, err)
	assert.Equal(t, listID, got.ListID)
	assert.Equal(t, "restored task", got.Title)
	require.NotNil(t, got.RepeatRule)
	assert.Equal(t, domain.RepeatDaily, got.RepeatRule.Kind)
	assert.Equal(t, []string{"work"}, got.TagNames)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "restored step", got.Steps[0].Title)
}

func TestImportIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	listID := uuid.New()
	taskID := uuid.New()
	payload := emptyEnvelope(1)
	payload.Lists = []BackupList{{ID: listID, Name: "Restored", CreatedAt: now, UpdatedAt: now}}
	payload.Tasks = []BackupTask{{ID: taskID, Title: "once", ParentListID: listID, CreatedAt: now, UpdatedAt: now}}

	raw := envelopeJSON(t, payload)
	require.NoError(t, env.backup.Import(t.Context(), raw))
	require.NoError(t, env.backup.Import(t.Context(), raw))

	lists, err := env.lists.All(t.Context())
	require.NoError(t, err)
	assert.Len(t, lists, 1)
	all, err := env.tasks.ByList(t.Context(), listID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestImportExistingDataWins(t *testing.T) {
	env := newTestEnv(t)
	list := env.mustCreateList(t, "Local")
	task := env.mustCreateTask(t, list.ID, "local title")
	now := env.clock.Now()

	payload := emptyEnvelope(1)
	payload.Lists = []BackupList{{ID: list.ID, Name: "Imported name", CreatedAt: now, UpdatedAt: now}}
	payload.Tasks = []BackupTask{{ID: task.ID, Title: "imported title", ParentListID: list.ID, CreatedAt: now, UpdatedAt: now}}

	require.NoError(t, env.backup.Import(t.Context(), envelopeJSON(t, payload)))

	gotList, err := env.lists.Get(t.Context(), list.ID)
	require.NoError(t, err)
	assert.Equal(t, "Local", gotList.Name)
	gotTask, err := env.tasks.Get(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "local title", gotTask.Title)
}

func TestImportAdoptsOrphanTasksIntoBucket(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	payload := emptyEnvelope(1)
	payload.Tasks = []BackupTask{
		{ID: uuid.New(), Title: "orphan a", ParentListID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), Title: "orphan b", ParentListID: uuid.New(), CreatedAt: now, UpdatedAt: now},
	}

	require.NoError(t, env.backup.Import(t.Context(), envelopeJSON(t, payload)))

	lists, err := env.lists.All(t.Context())
	require.NoError(t, err)
	require.Len(t, lists, 1, "both orphans share one bucket")
	assert.Equal(t, "Imported", lists[0].Name)

	adopted, err := env.tasks.ByList(t.Context(), lists[0].ID, true)
	require.NoError(t, err)
	assert.Len(t, adopted, 2)
}

func TestImportDropsStepsWithUnknownParent(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	listID := uuid.New()
	taskID := uuid.New()
	payload := emptyEnvelope(1)
	payload.Lists = []BackupList{{ID: listID, Name: "Restored", CreatedAt: now, UpdatedAt: now}}
	payload.Tasks = []BackupTask{{ID: taskID, Title: "parent", ParentListID: listID, CreatedAt: now, UpdatedAt: now}}
	payload.Steps = []BackupStep{
		{ID: uuid.New(), Title: "kept", ParentTaskID: taskID, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), Title: "dropped", ParentTaskID: uuid.New(), CreatedAt: now, UpdatedAt: now},
	}

	require.NoError(t, env.backup.Import(t.Context(), envelopeJSON(t, payload)))

	got, err := env.tasks.Get(t.Context(), taskID)
	require.NoError(t, err)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "kept", got.Steps[0].Title)
}

func TestImportSkipsTagNameCollisions(t *testing.T) {
	env := newTestEnv(t)
	existing, err := env.tags.FetchOrCreate(t.Context(), "work")
	require.NoError(t, err)

	payload := emptyEnvelope(1)
	payload.Tags = []BackupTag{{ID: uuid.New(), Name: "Work"}}

	require.NoError(t, env.backup.Import(t.Context(), envelopeJSON(t, payload)))

	all, err := env.tags.All(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, existing.ID, all[0].ID)
}

func TestExportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	list := env.mustCreateList(t, "Inbox")
	task := env.mustCreateTask(t, list.ID, "round trip")
	due := env.clock.Now().Add(24 * time.Hour)
	rule := domain.RepeatRule{Kind: domain.RepeatWeekly, Weekdays: []int{2, 6}}
	_, err := env.tasks.Update(t.Context(), task.ID, UpdateTaskRequest{DueDate: timePtr(due), RepeatRule: &rule})
	require.NoError(t, err)
	_, err = env.tasks.AddStep(t.Context(), task.ID, "outline")
	require.NoError(t, err)
	require.NoError(t, env.tags.SetTags(t.Context(), task.ID, []string{"work"}))

	data, err := env.backup.Export(t.Context())
	require.NoError(t, err)

	var decoded BackupEnvelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, BackupVersion, decoded.Version)
	require.Len(t, decoded.Lists, 1)
	require.Len(t, decoded.Tasks, 1)
	require.Len(t, decoded.Steps, 1)
	require.Len(t, decoded.Tags, 1)
	assert.Equal(t, task.ID, decoded.Tasks[0].ID)
	assert.Equal(t, list.ID, decoded.Tasks[0].ParentListID)
	require.NotNil(t, decoded.Tasks[0].RepeatRule)
	assert.Equal(t, rule, *decoded.Tasks[0].RepeatRule)
	assert.Equal(t, []string{"work"}, decoded.Tasks[0].TagNames)

	// An export imports cleanly into a fresh store.
	fresh := newTestEnv(t)
	require.NoError(t, fresh.backup.Import(t.Context(), data))
	got, err := fresh.tasks.Get(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "round trip", got.Title)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, []string{"work"}, got.TagNames)
}

func TestExportEmptyStoreHasEmptySections(t *testing.T) {
	env := newTestEnv(t)
	data, err := env.backup.Export(t.Context())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"lists", "tasks", "steps", "tags"} {
		assert.JSONEq(t, "[]", string(raw[key]), fmt.Sprintf("section %q", key))
	}
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2023, time.September, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, fmt.Sprintf("JarvisBackup-%d.json", at.Unix()), ExportFilename(at))
}
