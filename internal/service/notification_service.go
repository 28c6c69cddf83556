package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/observability"
	"github.com/noah-isme/gema-gate-api/internal/realtime"
	"github.com/noah-isme/gema-gate-api/internal/repository"
)

const notificationBufferSize = 16

// ErrNotificationNotFound indicates the notification does not belong to the student or does not exist.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService appends notifications to student feeds and streams them via SSE.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, studentID string, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, studentID string) (dto.NotificationResponse, error)
	Subscribe(studentID string) (<-chan dto.NotificationResponse, func())
}

type notificationService struct {
	repo      repository.NotificationRepository
	hub       *realtime.Hub
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewNotificationService constructs a notification service.
func NewNotificationService(repo repository.NotificationRepository, hub *realtime.Hub, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:      repo,
		hub:       hub,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-gate-api/internal/service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	cleanTitle := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanTitle == "" || cleanMessage == "" {
		return dto.NotificationResponse{}, fmt.Errorf("%w: notification empty after sanitization", ErrInvalidInput)
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.String("notification.student_id", payload.StudentID),
	))
	defer span.End()

	model := models.Notification{
		StudentID: payload.StudentID,
		Title:     cleanTitle,
		Message:   cleanMessage,
	}
	if len(payload.Data) > 0 {
		model.Data = datatypes.JSONMap(payload.Data)
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	if err := s.hub.Publish(spanCtx, realtime.NotificationsTopic(model.StudentID), response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification event")
	}

	observability.NotificationsPublished().Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, studentID string, limit, offset int) ([]dto.NotificationResponse, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, ErrSessionRequired
	}

	notifications, err := s.repo.ListByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, studentID string) (dto.NotificationResponse, error) {
	if strings.TrimSpace(studentID) == "" {
		return dto.NotificationResponse{}, ErrSessionRequired
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.String("notification.student_id", studentID),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

// Subscribe streams notifications appended for the student on any node. The cleanup func closes the channel.
func (s *notificationService) Subscribe(studentID string) (<-chan dto.NotificationResponse, func()) {
	sub := s.hub.Subscribe(realtime.NotificationsTopic(studentID))
	out := make(chan dto.NotificationResponse, notificationBufferSize)

	go func() {
		defer close(out)
		for event := range sub.C {
			if len(event.Payload) == 0 {
				continue
			}
			var notification dto.NotificationResponse
			if err := json.Unmarshal(event.Payload, &notification); err != nil {
				s.logger.Warn().Err(err).Msg("invalid notification event payload")
				continue
			}
			select {
			case out <- notification:
			default:
			}
		}
	}()

	return out, sub.Stop
}
