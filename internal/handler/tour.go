package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/walkumentary/api/internal/model"
	"github.com/walkumentary/api/internal/service"
	"github.com/walkumentary/api/pkg/response"
)

const (
	defaultDurationMinutes = 30
	defaultLanguage        = "en"
)

type TourHandler struct {
	tours     *service.TourService
	costs     *service.CostService
	validator *validator.Validate
}

func NewTourHandler(tours *service.TourService, costs *service.CostService, v *validator.Validate) *TourHandler {
	return &TourHandler{
		tours:     tours,
		costs:     costs,
		validator: v,
	}
}

// Create handles POST /api/tours. The response carries only the
// identifier and queued phase; generation continues in the background.
func (h *TourHandler) Create(c *fiber.Ctx) error {
	var req model.TourCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	applyInputDefaults(&req.TourInput)

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	tour, err := h.tours.Create(c.Context(), &req.TourInput)
	if err != nil {
		return response.ServiceError(c, "Failed to start tour generation")
	}

	return response.Accepted(c, model.TourCreateResponse{
		TourID:    tour.ID,
		Phase:     tour.Phase,
		CreatedAt: tour.CreatedAt,
	})
}

// Get handles GET /api/tours/:id and returns the full durable snapshot.
func (h *TourHandler) Get(c *fiber.Ctx) error {
	tour, err := h.tours.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrTourNotFound) {
			return response.NotFound(c, "Tour not found")
		}
		return response.ServiceError(c, "Failed to load tour")
	}
	return response.OK(c, tour)
}

// Status handles GET /api/tours/:id/status, the lightweight polling view.
func (h *TourHandler) Status(c *fiber.Ctx) error {
	status, err := h.tours.Status(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrTourNotFound) {
			return response.NotFound(c, "Tour not found")
		}
		return response.ServiceError(c, "Failed to load tour status")
	}
	return response.OK(c, status)
}

// Estimate handles POST /api/tours/estimate. Read-only: no job is
// created and no provider is called.
func (h *TourHandler) Estimate(c *fiber.Ctx) error {
	var req model.CostEstimateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	applyInputDefaults(&req.TourInput)

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	estimate, err := h.costs.Estimate(c.Context(), &req.TourInput)
	if err != nil {
		return response.ServiceError(c, "Failed to estimate cost")
	}
	return response.OK(c, estimate)
}

func applyInputDefaults(in *model.TourInput) {
	if in.DurationMinutes == 0 {
		in.DurationMinutes = defaultDurationMinutes
	}
	if in.Language == "" {
		in.Language = defaultLanguage
	}
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
