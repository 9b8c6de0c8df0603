package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/services"
	chatws "github.com/reduanahmadswe/SmartHealthcare-sub001/internal/websocket"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/pkg/utils"
)

type channelApplicationService interface {
	Authorize(ctx context.Context, callerID int64, role string, consultationID int64, live bool) (*models.Consultation, error)
	Send(ctx context.Context, senderID int64, role string, consultationID int64, input services.SendInput) (*models.ChannelMessage, error)
	MarkRead(ctx context.Context, readerID int64, role string, messageID int64) (*models.ChannelMessage, error)
	Delete(ctx context.Context, senderID int64, role string, messageID int64) (*models.ChannelMessage, error)
	History(ctx context.Context, callerID int64, role string, consultationID int64, page, limit int) ([]models.ChannelMessage, int, error)
}

type ChannelHandler struct {
	service   channelApplicationService
	hub       *chatws.Hub
	jwtSecret string
}

func NewChannelHandler(service channelApplicationService, hub *chatws.Hub, jwtSecret string) *ChannelHandler {
	return &ChannelHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// History serves the paginated log read used for reconnect recovery. It
// stays available after the consultation reaches a terminal status.
func (h *ChannelHandler) History(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	callerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || consultationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.History(c.Context(), callerID, role, consultationID, page, limit)
	if err != nil {
		return mapChannelError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

// MarkRead is the HTTP fallback for read receipts; the websocket path is
// preferred since it broadcasts to the room as part of the same flow.
func (h *ChannelHandler) MarkRead(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	readerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	messageID, err := strconv.ParseInt(c.Params("messageId"), 10, 64)
	if err != nil || messageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message id"})
	}

	message, err := h.service.MarkRead(c.Context(), readerID, role, messageID)
	if err != nil {
		return mapChannelError(c, err)
	}

	h.hub.Broadcast(message.ConsultationID, &chatws.Frame{
		Type:           "read",
		ConsultationID: message.ConsultationID,
		MessageID:      message.ID,
		Seq:            message.Seq,
		SenderID:       message.SenderID,
		ReaderID:       readerID,
		ReadBy:         message.ReadBy,
	})

	return c.JSON(fiber.Map{"message": message})
}

// Delete removes one of the caller's own messages from the log.
func (h *ChannelHandler) Delete(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	senderID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	messageID, err := strconv.ParseInt(c.Params("messageId"), 10, 64)
	if err != nil || messageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message id"})
	}

	message, err := h.service.Delete(c.Context(), senderID, role, messageID)
	if err != nil {
		return mapChannelError(c, err)
	}

	h.hub.Broadcast(message.ConsultationID, &chatws.Frame{
		Type:           "delete",
		ConsultationID: message.ConsultationID,
		MessageID:      message.ID,
		Seq:            message.Seq,
		SenderID:       message.SenderID,
	})

	return c.JSON(fiber.Map{"deleted": true})
}

// WebSocketAuth runs before the upgrade: it validates the token and the
// caller's membership in the requested consultation's channel, so an
// unauthorized join never creates connection state.
func (h *ChannelHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	callerID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	consultationID, err := strconv.ParseInt(c.Query("consultation_id"), 10, 64)
	if err != nil || consultationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation id"})
	}

	if _, err := h.service.Authorize(c.Context(), callerID, claims.Role, consultationID, true); err != nil {
		return mapChannelError(c, err)
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	c.Locals("consultation_id", consultationID)
	return c.Next()
}

func (h *ChannelHandler) HandleWebSocket(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)
	consultationID, _ := conn.Locals("consultation_id").(int64)

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(h.hub, conn, userID, role, consultationID)
	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

func (h *ChannelHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChannelError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrAccessDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process channel request"})
	}
}
