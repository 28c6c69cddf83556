package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-gate-api/internal/config"
	"github.com/noah-isme/gema-gate-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Realtime    string    `json:"realtime"`
	Node        string    `json:"node,omitempty"`
}

// HealthCheck reports liveness along with the realtime transport this node fans out over.
func HealthCheck(cfg config.Config, nodeID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "service healthy", HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Realtime:    cfg.RealtimeTransport,
			Node:        nodeID,
		})
	}
}
