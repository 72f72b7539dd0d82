package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/qdispatch/api/internal/model"
	"github.com/qdispatch/api/internal/registry"
	"github.com/qdispatch/api/internal/service"
	"github.com/qdispatch/api/pkg/response"
)

type CircuitsHandler struct {
	service   *service.ExecutorService
	validator *validator.Validate
}

func NewCircuitsHandler(svc *service.ExecutorService, v *validator.Validate) *CircuitsHandler {
	return &CircuitsHandler{
		service:   svc,
		validator: v,
	}
}

// Execute handles POST /api/circuits/execute
func (h *CircuitsHandler) Execute(c *fiber.Ctx) error {
	var req model.ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.Submit(c.Context(), &req)
	if err != nil {
		if service.IsValidation(err) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	resp := &model.ExecuteResponse{
		JobID:  job.ID,
		Status: job.Status,
	}

	if req.AsyncMode {
		resp.ExecutionMode = model.ExecutionModeAsync
		return response.Accepted(c, resp)
	}

	resp.ExecutionMode = model.ExecutionModeSync
	if job.Status == model.JobStatusFailed {
		// The job record keeps the failure; the caller sees it as an upstream
		// provider error.
		message := "execution failed"
		if job.Error != nil {
			message = *job.Error
		}
		return response.ProviderError(c, message)
	}
	if job.Status == model.JobStatusCompleted {
		result, err := h.service.JobResult(c.Context(), job.ID)
		if err != nil {
			return response.ServiceError(c, err.Error())
		}
		resp.Counts = result.Counts
		resp.Metadata = result.Metadata
		resp.ExecutionTime = result.ExecutionTime
	}
	return response.OK(c, resp)
}

// Status handles GET /api/circuits/jobs/:jobId
func (h *CircuitsHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.JobStatus(jobID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/circuits/jobs/:jobId/result
func (h *CircuitsHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.JobResult(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrResultNotReady) {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/circuits/jobs/:jobId/cancel
func (h *CircuitsHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Cancel(jobID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, registry.ErrTerminal) || errors.Is(err, registry.ErrNotCancellable) {
			return response.ValidationError(c, "Job can no longer be cancelled", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Providers handles GET /api/circuits/providers
func (h *CircuitsHandler) Providers(c *fiber.Ctx) error {
	return response.OK(c, h.service.Providers())
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
