package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/service"
	"github.com/noah-isme/gema-gate-api/internal/utils"
)

// IdentityHandler lets the gate UI resolve a typed token before a scan.
type IdentityHandler struct {
	resolver service.IdentityResolver
	logger   zerolog.Logger
}

// NewIdentityHandler constructs an identity handler.
func NewIdentityHandler(resolver service.IdentityResolver, logger zerolog.Logger) *IdentityHandler {
	return &IdentityHandler{
		resolver: resolver,
		logger:   logger.With().Str("component", "identity_handler").Logger(),
	}
}

// Register binds identity routes.
func (h *IdentityHandler) Register(router fiber.Router) {
	router.Get("/resolve", h.resolve)
}

func (h *IdentityHandler) resolve(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "token required")
	}

	student, err := h.resolver.Resolve(middleware.RequestContext(c), token, middleware.Unit(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to resolve student")
	}

	return utils.SendSuccess(c, "student resolved", dto.NewStudentResponse(student))
}
