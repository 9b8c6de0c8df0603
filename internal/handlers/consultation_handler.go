package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/repository"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/services"
)

const dateLayout = "2006-01-02"

type consultationApplicationService interface {
	Book(ctx context.Context, clientID int64, input services.BookConsultationInput) (*models.Consultation, error)
	CheckAvailability(ctx context.Context, providerID int64, date time.Time, timeMinute, durationMin int) (bool, error)
	Transition(ctx context.Context, actorID int64, role string, consultationID int64, action, reason string) (*models.Consultation, error)
	Reschedule(ctx context.Context, actorID int64, role string, consultationID int64, newDate time.Time, newTime int) (*models.Consultation, error)
	Rate(ctx context.Context, actorID int64, role string, consultationID int64, score int, text string) (*models.Consultation, error)
	Get(ctx context.Context, actorID int64, role string, consultationID int64) (*models.ConsultationDetail, error)
	List(ctx context.Context, actorID int64, role string, filter repository.ConsultationListFilter) ([]models.Consultation, error)
}

type ConsultationHandler struct {
	service consultationApplicationService
}

func NewConsultationHandler(service consultationApplicationService) *ConsultationHandler {
	return &ConsultationHandler{service: service}
}

type bookConsultationRequest struct {
	ProviderID      int64  `json:"provider_id"`
	Date            string `json:"date"`
	TimeMinute      int    `json:"time_minute"`
	DurationMinutes int    `json:"duration_minutes"`
	Kind            string `json:"kind"`
	Mode            string `json:"mode"`
}

type transitionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	Date       string `json:"date"`
	TimeMinute int    `json:"time_minute"`
}

type ratingRequest struct {
	Score int    `json:"score"`
	Text  string `json:"text"`
}

func (h *ConsultationHandler) Book(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok || role != "client" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	clientID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req bookConsultationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}

	consultation, err := h.service.Book(c.Context(), clientID, services.BookConsultationInput{
		ProviderID:  req.ProviderID,
		Date:        date,
		TimeMinute:  req.TimeMinute,
		DurationMin: req.DurationMinutes,
		Kind:        req.Kind,
		Mode:        req.Mode,
	})
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"consultation": consultation})
}

func (h *ConsultationHandler) CheckAvailability(c *fiber.Ctx) error {
	if _, ok := actorRole(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	providerID, err := strconv.ParseInt(c.Query("provider_id"), 10, 64)
	if err != nil || providerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid provider id"})
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(c.Query("date")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}

	timeMinute, err := strconv.Atoi(c.Query("time_minute"))
	if err != nil || timeMinute < 0 || timeMinute >= 24*60 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid time_minute"})
	}

	duration := parsePositiveInt(c.Query("duration_minutes"), 30)

	available, err := h.service.CheckAvailability(c.Context(), providerID, date, timeMinute, duration)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"available": available})
}

func (h *ConsultationHandler) List(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok || role == "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	consultations, err := h.service.List(c.Context(), actorID, role, repository.ConsultationListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultations": consultations})
}

func (h *ConsultationHandler) Get(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || consultationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	detail, err := h.service.Get(c.Context(), actorID, role, consultationID)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultation": detail})
}

func (h *ConsultationHandler) UpdateStatus(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || consultationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	consultation, err := h.service.Transition(c.Context(), actorID, role, consultationID, req.Action, req.Reason)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultation": consultation})
}

func (h *ConsultationHandler) Reschedule(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || consultationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}

	consultation, err := h.service.Reschedule(c.Context(), actorID, role, consultationID, date, req.TimeMinute)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultation": consultation})
}

func (h *ConsultationHandler) Rate(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok || role != "client" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || consultationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	var req ratingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	consultation, err := h.service.Rate(c.Context(), actorID, role, consultationID, req.Score, req.Text)
	if err != nil {
		return mapConsultationError(c, err)
	}

	return c.JSON(fiber.Map{"consultation": consultation})
}

func mapConsultationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidAction):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAccessDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrSlotConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Requested slot is already reserved"})
	case errors.Is(err, services.ErrOutsideAvailability):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Requested time is outside the provider's availability"})
	case errors.Is(err, services.ErrIllegalTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrProviderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Provider not found"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Consultation not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process consultation request"})
	}
}
