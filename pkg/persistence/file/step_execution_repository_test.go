package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/persistence"
	"github.com/stepflow/stepflow/pkg/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepExecutionRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	p := NewPersistence(tempDir)
	ctx := context.Background()

	stepExecution := models.NewStepExecution("nightly-import", "load-accounts")
	stepExecution.Context.PutString("last.file", "accounts-0042.csv")
	stepExecution.Context.PutInt64("read.count", 1300)
	stepExecution.Context.PutFloat64("progress", 0.25)

	err := p.SaveStepExecution(ctx, stepExecution)
	require.NoError(t, err)

	retrieved, err := p.StepExecutionByID(ctx, stepExecution.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, stepExecution.ID, retrieved.ID)
	assert.Equal(t, "nightly-import", retrieved.JobName)
	assert.Equal(t, "load-accounts", retrieved.StepName)
	assert.Equal(t, models.ExecutionStatusRunning, retrieved.Status)
	assert.True(t, retrieved.Context.Equal(stepExecution.Context))
	assert.False(t, retrieved.Context.IsDirty(), "a restored context starts clean")

	count, err := retrieved.Context.GetInt64("read.count")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), count)
}

func TestStepExecutionRepository_GetMissing(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	_, err := p.StepExecutionByID(context.Background(), "never-saved")
	require.Error(t, err)
	assert.True(t, persistence.IsStepExecutionNotFound(err))
}

func TestStepExecutionRepository_RejectsUnsafeIDs(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	for _, executionID := range []string{"", "../escape", "a/b", `a\b`} {
		_, err := p.StepExecutionByID(ctx, executionID)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrInvalidExecutionID)
	}
}

func TestStepExecutionRepository_Update(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	p := NewPersistence(tempDir)
	ctx := context.Background()

	stepExecution := models.NewStepExecution("nightly-import", "load-accounts")
	stepExecution.Context.PutInt64("read.count", 100)
	require.NoError(t, p.SaveStepExecution(ctx, stepExecution))

	stepExecution.Context.PutInt64("read.count", 200)
	stepExecution.Complete()
	require.NoError(t, p.SaveStepExecution(ctx, stepExecution))

	retrieved, err := p.StepExecutionByID(ctx, stepExecution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, retrieved.Status)
	require.NotNil(t, retrieved.CompletedAt)

	count, err := retrieved.Context.GetInt64("read.count")
	require.NoError(t, err)
	assert.Equal(t, int64(200), count)
}

func TestStepExecutionRepository_ListByJob(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	first := models.NewStepExecution("nightly-import", "load-accounts")
	second := models.NewStepExecution("nightly-import", "reconcile")
	other := models.NewStepExecution("hourly-sync", "push-events")

	for _, stepExecution := range []*models.StepExecution{first, second, other} {
		require.NoError(t, p.SaveStepExecution(ctx, stepExecution))
	}

	all, err := p.StepExecutions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	nightly, err := p.StepExecutionsByJob(ctx, "nightly-import")
	require.NoError(t, err)
	assert.Len(t, nightly, 2)

	none, err := p.StepExecutionsByJob(ctx, "unknown-job")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStepExecutionRepository_Delete(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	stepExecution := models.NewStepExecution("nightly-import", "load-accounts")
	require.NoError(t, p.SaveStepExecution(ctx, stepExecution))

	require.NoError(t, p.DeleteStepExecution(ctx, stepExecution.ID))

	_, err := p.StepExecutionByID(ctx, stepExecution.ID)
	assert.True(t, persistence.IsStepExecutionNotFound(err))

	err = p.DeleteStepExecution(ctx, stepExecution.ID)
	assert.True(t, persistence.IsStepExecutionNotFound(err))
}

func TestStepExecutionRepository_DeleteCompletedBefore(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	old := models.NewStepExecution("nightly-import", "load-accounts")
	old.Complete()
	completedAt := time.Now().UTC().Add(-48 * time.Hour)
	old.CompletedAt = &completedAt

	recent := models.NewStepExecution("nightly-import", "reconcile")
	recent.Complete()

	running := models.NewStepExecution("nightly-import", "push-events")

	for _, stepExecution := range []*models.StepExecution{old, recent, running} {
		require.NoError(t, p.SaveStepExecution(ctx, stepExecution))
	}

	deleted, err := p.DeleteCompletedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = p.StepExecutionByID(ctx, old.ID)
	assert.True(t, persistence.IsStepExecutionNotFound(err))

	remaining, err := p.StepExecutions(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestStepExecutionRepository_SkipsCorruptDocuments(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	p := NewPersistence(tempDir)
	ctx := context.Background()

	stepExecution := models.NewStepExecution("nightly-import", "load-accounts")
	require.NoError(t, p.SaveStepExecution(ctx, stepExecution))

	dir := filepath.Join(tempDir, "step_executions")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte(`{"id": 42}`), 0600))

	all, err := p.StepExecutions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStepExecutionRepository_JSONSerializer(t *testing.T) {
	t.Parallel()

	p := NewPersistenceWithSerializer(t.TempDir(), serialization.NewJSONSerializer())
	ctx := context.Background()

	stepExecution := models.NewStepExecution("nightly-import", "load-accounts")
	stepExecution.Context.PutString("last.file", "accounts-0042.csv")
	stepExecution.Context.PutInt("chunk", 4)

	require.NoError(t, p.SaveStepExecution(ctx, stepExecution))

	retrieved, err := p.StepExecutionByID(ctx, stepExecution.ID)
	require.NoError(t, err)
	assert.True(t, retrieved.Context.Equal(stepExecution.Context))
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	p := NewPersistence(tempDir)
	ctx := context.Background()

	require.NoError(t, p.HealthCheck(ctx))
	require.NoError(t, p.Close(ctx))

	missing := NewPersistence(filepath.Join(tempDir, "does-not-exist"))
	assert.Error(t, missing.HealthCheck(ctx))
}
