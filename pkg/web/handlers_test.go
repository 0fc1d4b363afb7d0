package web_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/persistence/file"
	"github.com/stepflow/stepflow/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	handlers := web.NewAPIHandlers(persistence)
	app := fiber.New()

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Delete("/:id", handlers.DeleteExecution)

	app.Get("/health", handlers.HealthCheck)

	return app, persistence
}

func seedExecution(t *testing.T, persistence *file.Persistence, jobName, stepName string) *models.StepExecution {
	t.Helper()

	execution := models.NewStepExecution(jobName, stepName)
	execution.Context.PutInt64(stepName+".read.count", 40321)
	execution.Context.PutString("batch.taskletType", "chunk")

	require.NoError(t, persistence.SaveStepExecution(t.Context(), execution))

	return execution
}

func TestAPIHandlers_GetExecutions(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)

	seedExecution(t, persistence, "nightly-import", "load-accounts")
	seedExecution(t, persistence, "nightly-import", "send-report")
	seedExecution(t, persistence, "weekly-rollup", "aggregate")

	tests := []struct {
		name          string
		url           string
		expectedCount int
	}{
		{name: "all executions", url: "/executions/", expectedCount: 3},
		{name: "filtered by job", url: "/executions/?job=nightly-import", expectedCount: 2},
		{name: "unknown job", url: "/executions/?job=missing", expectedCount: 0},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, testCase.url, nil))
			require.NoError(t, err)

			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			var result web.ListExecutionsResponse

			require.NoError(t, json.Unmarshal(body, &result))
			assert.Equal(t, testCase.expectedCount, result.TotalCount)
			assert.Len(t, result.Executions, testCase.expectedCount)
		})
	}
}

func TestAPIHandlers_GetExecution(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	execution := seedExecution(t, persistence, "nightly-import", "load-accounts")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+execution.ID, nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var loaded models.StepExecution

	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, execution.ID, loaded.ID)
	assert.Equal(t, "nightly-import", loaded.JobName)

	count, err := loaded.Context.GetInt64("load-accounts.read.count")
	require.NoError(t, err)
	assert.Equal(t, int64(40321), count)
}

func TestAPIHandlers_GetExecution_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions/does-not-exist", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var problem map[string]any

	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "not_found", problem["type"])
}

func TestAPIHandlers_GetExecution_InvalidID(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions/..escape", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_DeleteExecution(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	execution := seedExecution(t, persistence, "nightly-import", "load-accounts")

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/executions/"+execution.ID, nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = persistence.StepExecutionByID(t.Context(), execution.ID)
	assert.Error(t, err)
}

func TestAPIHandlers_DeleteExecution_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/executions/does-not-exist", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
