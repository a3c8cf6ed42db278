package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOrCreateIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.tags.FetchOrCreate(t.Context(), "Work")
	require.NoError(t, err)
	second, err := env.tags.FetchOrCreate(t.Context(), "  WORK ")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "work", first.Name)

	all, err := env.tags.All(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFetchOrCreateRejectsEmptyName(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.tags.FetchOrCreate(t.Context(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetTagsNormalizesAndReplaces(t *testing.T) {
	env := newTestEnv(t)
	list := env.mustCreateList(t, "Inbox")
	task := env.mustCreateTask(t, list.ID, "tagged")

	err := env.tags.SetTags(t.Context(), task.ID, []string{" Work ", "HOME", "work", ""})
	require.NoError(t, err)

	got, err := env.tasks.Get(t.Context(), task.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"work", "home"}, got.TagNames)

	// A later call fully replaces the previous assignment.
	err = env.tags.SetTags(t.Context(), task.ID, []string{"errands"})
	require.NoError(t, err)

	got, err = env.tasks.Get(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"errands"}, got.TagNames)

	// Orphaned tags stay in the store for reuse.
	all, err := env.tags.All(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSetTagsEmptyClearsAssignment(t *testing.T) {
	env := newTestEnv(t)
	list := env.mustCreateList(t, "Inbox")
	task := env.mustCreateTask(t, list.ID, "tagged")

	require.NoError(t, env.tags.SetTags(t.Context(), task.ID, []string{"work"}))
	require.NoError(t, env.tags.SetTags(t.Context(), task.ID, nil))

	got, err := env.tasks.Get(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagNames)
}

func TestSetTagsUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	err := env.tags.SetTags(t.Context(), uuid.New(), []string{"work"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyExtractedFromText(t *testing.T) {
	env := newTestEnv(t)
	list := env.mustCreateList(t, "Inbox")
	task := env.mustCreateTask(t, list.ID, "ship release")

	err := env.tags.ApplyExtracted(t.Context(), task.ID, "finish the #Release notes #work")
	require.NoError(t, err)

	got, err := env.tasks.Get(t.Context(), task.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"release", "work"}, got.TagNames)
}

func TestApplyExtractedWithoutHashtagsClears(t *testing.T) {
	env := newTestEnv(t)
	list := env.mustCreateList(t, "Inbox")
	task := env.mustCreateTask(t, list.ID, "plain")
	require.NoError(t, env.tags.SetTags(t.Context(), task.ID, []string{"old"}))

	err := env.tags.ApplyExtracted(t.Context(), task.ID, "no hashtags here")
	require.NoError(t, err)

	got, err := env.tasks.Get(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagNames)
}
