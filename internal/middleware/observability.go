package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/observability"
)

const slowRequestThreshold = 500 * time.Millisecond

// Observability records request metrics and writes one structured log line per API call.
// Streams and gate sockets are skipped: their lifetime is the connection, not a request.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), "/api/v1") || isLongLived(c.Path()) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.APIRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		fields := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed)
		if unit := Unit(c); unit != "" {
			fields = fields.Str("unit", unit)
		}
		if operator := OperatorName(c); operator != "" {
			fields = fields.Str("operator", operator)
		}
		requestLogger := fields.Logger()

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = requestLogger.Error()
		case status >= fiber.StatusBadRequest, elapsed > slowRequestThreshold:
			event = requestLogger.Warn()
		default:
			event = requestLogger.Info()
		}
		event.Bool("slow", elapsed > slowRequestThreshold).Msg("request completed")

		return err
	}
}

func isLongLived(path string) bool {
	return strings.HasSuffix(path, "/stream") || strings.HasSuffix(path, "/ws")
}

func routeTemplate(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}
