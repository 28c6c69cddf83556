package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/service"
	"github.com/noah-isme/gema-gate-api/internal/utils"
)

const defaultKeepAlive = 30 * time.Second

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

// operatorSession builds the service session from the token locals.
func operatorSession(c *fiber.Ctx) (service.Session, error) {
	return service.NewSession(
		middleware.OperatorName(c),
		middleware.Unit(c),
		middleware.UserRole(c),
		middleware.UserID(c),
	)
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

// sendServiceError maps service errors onto HTTP statuses. Only unexpected errors are logged.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, action string) error {
	switch {
	case errors.Is(err, service.ErrSessionRequired):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrInvalidInput):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrReleaseNotFound),
		errors.Is(err, service.ErrLostItemNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrReleaseNotPending), errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg(action)
		return utils.SendError(c, fiber.StatusInternalServerError, action)
	}
}

func setStreamHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}

// streamEvents writes every value received on events as an SSE event until the channel closes,
// a write fails or ctx is done. cleanup always runs.
func streamEvents[T any](ctx context.Context, c *fiber.Ctx, logger zerolog.Logger, keepAlive time.Duration, event string, events <-chan T, cleanup func()) {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	setStreamHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cleanup()

		ticker := time.NewTicker(keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case value, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, event, value); err != nil {
					logger.Debug().Err(err).Str("event", event).Msg("stream closed")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Str("event", event).Msg("stream keepalive failed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
}

func writeEvent(w *bufio.Writer, event string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
