// Package web provides HTTP handlers and REST API endpoints for stored step
// executions.
package web

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/persistence"
)

type APIHandlers struct {
	persistence persistence.Persistence
}

func NewAPIHandlers(persistence persistence.Persistence) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
	}
}

// GetExecutions lists stored step executions, optionally filtered by job name
// with the ?job= query parameter.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	jobName := c.Query("job")

	executions, err := h.listExecutions(c, jobName)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(ListExecutionsResponse{
		Executions: executions,
		TotalCount: len(executions),
		JobName:    jobName,
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.StepExecutionByID(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) DeleteExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	err := h.persistence.DeleteStepExecution(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Stepflow API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Stepflow API is unhealthy: " + err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) listExecutions(c fiber.Ctx, jobName string) ([]*ExecutionSummary, error) {
	var (
		executions []*models.StepExecution
		err        error
	)

	if jobName != "" {
		executions, err = h.persistence.StepExecutionsByJob(c.Context(), jobName)
	} else {
		executions, err = h.persistence.StepExecutions(c.Context())
	}

	if err != nil {
		return nil, err
	}

	summaries := make([]*ExecutionSummary, 0, len(executions))
	for _, execution := range executions {
		summaries = append(summaries, newExecutionSummary(execution))
	}

	return summaries, nil
}
