package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/gate"
	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/service"
)

const closeUnauthorized = 4401

// GateHandler upgrades gate devices to websocket sessions.
type GateHandler struct {
	deps   gate.Dependencies
	logger zerolog.Logger
}

// NewGateHandler constructs a gate handler.
func NewGateHandler(deps gate.Dependencies, logger zerolog.Logger) *GateHandler {
	return &GateHandler{
		deps:   deps,
		logger: logger.With().Str("component", "gate_handler").Logger(),
	}
}

// Register binds the gate websocket route.
func (h *GateHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		session, err := operatorSession(c)
		if err != nil {
			return sendServiceError(c, h.logger, err, "gate session rejected")
		}
		c.Locals("gate_session", session)
		c.Locals("request_ctx", middleware.RequestContext(c))
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *GateHandler) handleConnection(conn *websocket.Conn) {
	operator, _ := conn.Locals("gate_session").(service.Session)
	baseCtx, ok := conn.Locals("request_ctx").(context.Context)
	if !ok {
		baseCtx = context.Background()
	}

	session, err := gate.NewSession(conn, operator, h.deps)
	if err != nil {
		h.logger.Warn().Err(err).Msg("gate session rejected")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeUnauthorized, err.Error()))
		_ = conn.Close()
		return
	}

	logger := middleware.LoggerWithCorrelation(baseCtx, h.logger)
	logger.Info().Str("unit", operator.Unit).Str("operator", operator.OperatorName).Msg("gate websocket connected")
	session.Run(baseCtx)
	logger.Info().Str("unit", operator.Unit).Str("operator", operator.OperatorName).Msg("gate websocket disconnected")
}
