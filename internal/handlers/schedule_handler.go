package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/services"
)

type scheduleApplicationService interface {
	Get(ctx context.Context, providerID int64) (*models.ProviderSchedule, error)
	Update(ctx context.Context, providerID int64, fee float64, windows []models.ScheduleWindow) (*models.ProviderSchedule, error)
}

type ScheduleHandler struct {
	service scheduleApplicationService
}

func NewScheduleHandler(service scheduleApplicationService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

type scheduleWindowRequest struct {
	DayOfWeek   int  `json:"day_of_week"`
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
	Available   bool `json:"available"`
}

type updateScheduleRequest struct {
	Fee     float64                 `json:"fee"`
	Windows []scheduleWindowRequest `json:"windows"`
}

// Get serves a provider's weekly availability template to any
// authenticated caller.
func (h *ScheduleHandler) Get(c *fiber.Ctx) error {
	providerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || providerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid provider id"})
	}

	schedule, err := h.service.Get(c.Context(), providerID)
	if err != nil {
		return mapScheduleError(c, err)
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

// Update replaces the calling provider's own template and fee.
func (h *ScheduleHandler) Update(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok || role != "provider" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only providers can update a schedule"})
	}

	providerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	windows := make([]models.ScheduleWindow, 0, len(req.Windows))
	for _, w := range req.Windows {
		windows = append(windows, models.ScheduleWindow{
			ProviderID:  providerID,
			DayOfWeek:   w.DayOfWeek,
			StartMinute: w.StartMinute,
			EndMinute:   w.EndMinute,
			Available:   w.Available,
		})
	}

	schedule, err := h.service.Update(c.Context(), providerID, req.Fee, windows)
	if err != nil {
		return mapScheduleError(c, err)
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func mapScheduleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule"})
	case errors.Is(err, services.ErrProviderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Provider not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process schedule request"})
	}
}
