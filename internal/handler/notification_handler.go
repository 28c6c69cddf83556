package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/service"
	"github.com/noah-isme/gema-gate-api/internal/utils"
)

// NotificationHandler serves a student's notification feed.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/stream", h.stream)
	router.Patch("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	studentID := middleware.UserID(c)
	if studentID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil || offset < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	notifications, err := h.service.List(middleware.RequestContext(c), studentID, limit, offset)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load notifications")
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	studentID := middleware.UserID(c)
	if studentID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	ctx, cancel := context.WithCancel(middleware.RequestContext(c))
	events, unsubscribe := h.service.Subscribe(studentID)

	streamEvents(ctx, c, h.logger, h.keepAlive, "notification", events, func() {
		unsubscribe()
		cancel()
	})
	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	studentID := middleware.UserID(c)
	if studentID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "notification id required")
	}

	notification, err := h.service.MarkRead(middleware.RequestContext(c), id, studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update notification")
	}

	return utils.SendSuccess(c, "notification updated", notification)
}
