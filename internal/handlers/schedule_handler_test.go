package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/services"
)

type stubScheduleService struct {
	getResult    *models.ProviderSchedule
	getErr       error
	updateResult *models.ProviderSchedule
	updateErr    error

	lastProviderID int64
	lastFee        float64
	lastWindows    []models.ScheduleWindow
}

func (s *stubScheduleService) Get(_ context.Context, providerID int64) (*models.ProviderSchedule, error) {
	s.lastProviderID = providerID
	return s.getResult, s.getErr
}

func (s *stubScheduleService) Update(_ context.Context, providerID int64, fee float64, windows []models.ScheduleWindow) (*models.ProviderSchedule, error) {
	s.lastProviderID = providerID
	s.lastFee = fee
	s.lastWindows = windows
	return s.updateResult, s.updateErr
}

func newScheduleTestApp(handler *ScheduleHandler, role, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Get("/api/v1/providers/:id/schedule", handler.Get)
	app.Put("/api/v1/providers/schedule", handler.Update)
	return app
}

func TestGetScheduleReturnsTemplate(t *testing.T) {
	service := &stubScheduleService{
		getResult: &models.ProviderSchedule{
			ProviderID: 7,
			Fee:        80,
			Windows: []models.ScheduleWindow{
				{DayOfWeek: 1, StartMinute: 540, EndMinute: 720, Available: true},
			},
		},
	}
	handler := &ScheduleHandler{service: service}
	app := newScheduleTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/7/schedule", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastProviderID != 7 {
		t.Fatalf("expected provider 7, got %d", service.lastProviderID)
	}
}

func TestGetScheduleReturnsNotFoundForUnknownProvider(t *testing.T) {
	service := &stubScheduleService{getErr: services.ErrProviderNotFound}
	handler := &ScheduleHandler{service: service}
	app := newScheduleTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/999/schedule", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateScheduleRejectsNonProviders(t *testing.T) {
	service := &stubScheduleService{}
	handler := &ScheduleHandler{service: service}
	app := newScheduleTestApp(handler, "client", "42")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/schedule",
		strings.NewReader(`{"fee":80,"windows":[]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestUpdateScheduleForwardsOwnProviderID(t *testing.T) {
	service := &stubScheduleService{
		updateResult: &models.ProviderSchedule{ProviderID: 7, Fee: 90},
	}
	handler := &ScheduleHandler{service: service}
	app := newScheduleTestApp(handler, "provider", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/schedule", strings.NewReader(`{
		"fee": 90,
		"windows": [
			{"day_of_week": 1, "start_minute": 540, "end_minute": 720, "available": true}
		]
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastProviderID != 7 || service.lastFee != 90 {
		t.Fatalf("unexpected forwarded update: provider=%d fee=%v", service.lastProviderID, service.lastFee)
	}
	if len(service.lastWindows) != 1 || service.lastWindows[0].ProviderID != 7 {
		t.Fatalf("expected windows stamped with caller id, got %+v", service.lastWindows)
	}
}

func TestUpdateScheduleReturnsBadRequestForInvalidTemplate(t *testing.T) {
	service := &stubScheduleService{updateErr: services.ErrInvalidInput}
	handler := &ScheduleHandler{service: service}
	app := newScheduleTestApp(handler, "provider", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/schedule", strings.NewReader(`{
		"fee": 90,
		"windows": [
			{"day_of_week": 9, "start_minute": 540, "end_minute": 720, "available": true}
		]
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
