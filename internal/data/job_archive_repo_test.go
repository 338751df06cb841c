package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
	"github.com/target/mmk-agent-api/internal/testutil"
)

func TestJobArchiveRepo_NotConfigured(t *testing.T) {
	var repo *JobArchiveRepo
	require.ErrorIs(t, repo.Save(context.Background(), &model.Job{ID: "x"}), ErrArchiveNotConfigured)

	repo = NewJobArchiveRepo(nil)
	_, err := repo.Get(context.Background(), "x")
	require.ErrorIs(t, err, ErrArchiveNotConfigured)
}

func TestJobArchiveRepo_SaveAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	defer db.Close()

	repo := NewJobArchiveRepo(db)
	ctx := context.Background()

	require.ErrorIs(t, repo.Save(ctx, &model.Job{}), ErrJobIDRequired)

	job := model.NewJob("archive-1", "get title", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, job.Apply(model.JobUpdate{Status: model.JobStatusRunning, Note: model.NoteStarted}))
	require.NoError(t, job.Apply(model.JobUpdate{
		Status: model.JobStatusCompleted,
		Note:   model.NoteCompleted,
		Result: json.RawMessage(`{"title":"Example"}`),
	}))

	require.NoError(t, repo.Save(ctx, job))
	// Upsert is idempotent.
	require.NoError(t, repo.Save(ctx, job))

	got, err := repo.Get(ctx, "archive-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, job.Updates, got.Updates)
	assert.JSONEq(t, `{"title":"Example"}`, string(got.Result))
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
