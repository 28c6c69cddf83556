package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/service"
	"github.com/noah-isme/gema-gate-api/internal/utils"
)

// ReleaseHandler exposes the pending release set and manual completion.
type ReleaseHandler struct {
	service   service.ReleaseService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewReleaseHandler constructs a release handler.
func NewReleaseHandler(service service.ReleaseService, logger zerolog.Logger, keepAlive time.Duration) *ReleaseHandler {
	return &ReleaseHandler{
		service:   service,
		logger:    logger.With().Str("component", "release_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds release routes.
func (h *ReleaseHandler) Register(router fiber.Router) {
	router.Get("/pending", h.pending)
	router.Get("/pending/stream", h.stream)
	router.Post("/:id/complete", h.complete)
}

func (h *ReleaseHandler) pending(c *fiber.Ctx) error {
	releases, err := h.service.ListPending(middleware.RequestContext(c), middleware.Unit(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load pending releases")
	}

	return utils.OK(c, dto.NewReleaseResponseSlice(releases), "pending releases", fiber.Map{"count": len(releases)})
}

func (h *ReleaseHandler) stream(c *fiber.Ctx) error {
	ctx, cancel := context.WithCancel(middleware.RequestContext(c))
	snapshots := h.service.Watch(ctx, middleware.Unit(c))

	events := make(chan []dto.ReleaseResponse)
	go func() {
		defer close(events)
		for releases := range snapshots {
			select {
			case events <- dto.NewReleaseResponseSlice(releases):
			case <-ctx.Done():
				return
			}
		}
	}()

	streamEvents(ctx, c, h.logger, h.keepAlive, "releases", events, cancel)
	return nil
}

func (h *ReleaseHandler) complete(c *fiber.Ctx) error {
	session, err := operatorSession(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to complete release")
	}

	releaseID := strings.TrimSpace(c.Params("id"))
	if releaseID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "release id required")
	}

	result, err := h.service.Complete(middleware.RequestContext(c), session, releaseID)
	if err != nil {
		if errors.Is(err, service.ErrCompletionPartial) {
			requestLogger(h.logger, c).Warn().Err(err).Str("release_id", releaseID).Msg("release completed partially")
			return utils.SendSuccess(c, err.Error(), result)
		}
		return sendServiceError(c, h.logger, err, "failed to complete release")
	}

	return utils.SendSuccess(c, "release completed", result)
}
