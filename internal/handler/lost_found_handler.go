package handler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/service"
	"github.com/noah-isme/gema-gate-api/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LostFoundHandlerConfig tunes uploads and streams.
type LostFoundHandlerConfig struct {
	MaxPhotoBytes   int64
	UploadRateLimit int
	KeepAlive       time.Duration
}

// LostFoundHandler manages the lost and found registry.
type LostFoundHandler struct {
	service service.LostFoundService
	cfg     LostFoundHandlerConfig
	logger  zerolog.Logger
}

// NewLostFoundHandler constructs a lost and found handler.
func NewLostFoundHandler(service service.LostFoundService, cfg LostFoundHandlerConfig, logger zerolog.Logger) *LostFoundHandler {
	return &LostFoundHandler{
		service: service,
		cfg:     cfg,
		logger:  logger.With().Str("component", "lost_found_handler").Logger(),
	}
}

// Register binds registry routes. Handover, removal and the report are staff-only.
func (h *LostFoundHandler) Register(router fiber.Router) {
	staffOnly := middleware.RequireRole(string(service.RoleStaff), string(service.RoleCoordinator))

	router.Get("/", h.list)
	router.Get("/stream", h.stream)
	router.Get("/export", staffOnly, h.export)
	router.Post("/", middleware.RateLimit("lost_found_add", h.cfg.UploadRateLimit, time.Minute), h.add)
	router.Post("/:id/claim", h.claim)
	router.Post("/:id/deliver", staffOnly, h.deliver)
	router.Delete("/:id", staffOnly, h.delete)
}

func (h *LostFoundHandler) list(c *fiber.Ctx) error {
	items, err := h.service.List(middleware.RequestContext(c), middleware.Unit(c), strings.TrimSpace(c.Query("status")))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load lost and found items")
	}

	return utils.OK(c, items, "lost and found items", fiber.Map{"count": len(items)})
}

func (h *LostFoundHandler) stream(c *fiber.Ctx) error {
	ctx, cancel := context.WithCancel(middleware.RequestContext(c))
	streamEvents(ctx, c, h.logger, h.cfg.KeepAlive, "lost_found", h.service.Watch(ctx, middleware.Unit(c)), cancel)
	return nil
}

func (h *LostFoundHandler) add(c *fiber.Ctx) error {
	session, err := operatorSession(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to register item")
	}

	var payload dto.LostFoundCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	photo, status, err := h.readPhoto(c)
	if err != nil {
		return utils.SendError(c, status, err.Error())
	}

	item, err := h.service.Add(middleware.RequestContext(c), session, payload, photo)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to register item")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "item registered", item)
}

// readPhoto returns the optional photo part. A request without one is not an error.
func (h *LostFoundHandler) readPhoto(c *fiber.Ctx) (*service.PhotoUpload, int, error) {
	header, err := c.FormFile("photo")
	if err != nil {
		return nil, 0, nil
	}
	if h.cfg.MaxPhotoBytes > 0 && header.Size > h.cfg.MaxPhotoBytes {
		return nil, fiber.StatusRequestEntityTooLarge, fmt.Errorf("photo exceeds %d bytes", h.cfg.MaxPhotoBytes)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fiber.StatusBadRequest, fmt.Errorf("photo unreadable")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fiber.StatusBadRequest, fmt.Errorf("photo unreadable")
	}
	if len(data) == 0 {
		return nil, 0, nil
	}

	return &service.PhotoUpload{FileName: header.Filename, Data: data}, 0, nil
}

func (h *LostFoundHandler) claim(c *fiber.Ctx) error {
	session, err := operatorSession(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to claim item")
	}

	var payload dto.LostFoundClaimRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	item, err := h.service.Claim(middleware.RequestContext(c), session, c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to claim item")
	}

	return utils.SendSuccess(c, "item claimed", item)
}

func (h *LostFoundHandler) deliver(c *fiber.Ctx) error {
	session, err := operatorSession(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to deliver item")
	}

	item, err := h.service.Deliver(middleware.RequestContext(c), session, c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to deliver item")
	}

	return utils.SendSuccess(c, "item delivered", item)
}

func (h *LostFoundHandler) delete(c *fiber.Ctx) error {
	session, err := operatorSession(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete item")
	}

	if err := h.service.Delete(middleware.RequestContext(c), session, c.Params("id")); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete item")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *LostFoundHandler) export(c *fiber.Ctx) error {
	unit := middleware.Unit(c)
	report, err := h.service.Export(middleware.RequestContext(c), unit)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to export lost and found items")
	}

	c.Attachment(fmt.Sprintf("achados-e-perdidos-%s-%s.xlsx", unit, time.Now().UTC().Format("20060102")))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(report)
}
