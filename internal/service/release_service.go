package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/observability"
	"github.com/noah-isme/gema-gate-api/internal/realtime"
	"github.com/noah-isme/gema-gate-api/internal/repository"
)

// Completion steps, used to label partial failures.
const (
	stepStatus       = "status"
	stepAccessRecord = "access_record"
	stepNotification = "notification"
)

// ReleaseService lists pending releases and commits confirmed ones.
type ReleaseService interface {
	ListPending(ctx context.Context, unit string) ([]models.AuthorizedRelease, error)
	Watch(ctx context.Context, unit string) <-chan []models.AuthorizedRelease
	Complete(ctx context.Context, session Session, releaseID string) (dto.ReleaseCompletionResponse, error)
}

type releaseService struct {
	releases      repository.ReleaseRepository
	accessRecords repository.AccessRecordRepository
	notifications NotificationService
	hub           *realtime.Hub
	localizer     *Localizer
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewReleaseService constructs the release completion coordinator.
func NewReleaseService(
	releases repository.ReleaseRepository,
	accessRecords repository.AccessRecordRepository,
	notifications NotificationService,
	hub *realtime.Hub,
	localizer *Localizer,
	logger zerolog.Logger,
) ReleaseService {
	return &releaseService{
		releases:      releases,
		accessRecords: accessRecords,
		notifications: notifications,
		hub:           hub,
		localizer:     localizer,
		logger:        logger.With().Str("component", "release_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-gate-api/internal/service/release"),
		now:           time.Now,
	}
}

func (s *releaseService) ListPending(ctx context.Context, unit string) ([]models.AuthorizedRelease, error) {
	if unit == "" {
		return nil, ErrSessionRequired
	}
	return s.releases.ListPending(ctx, unit)
}

// Watch streams the unit's pending set, refreshed after every release change on any node.
func (s *releaseService) Watch(ctx context.Context, unit string) <-chan []models.AuthorizedRelease {
	return realtime.Watch[models.AuthorizedRelease](ctx, s.hub, realtime.ReleasesTopic(unit), func(ctx context.Context) ([]models.AuthorizedRelease, error) {
		return s.releases.ListPending(ctx, unit)
	}, s.logger)
}

// Complete flips the release to released, stamps the linked access record and notifies the student,
// in that order. There is no transaction across the steps: when a later step fails the status flip
// stays committed and the returned error wraps ErrCompletionPartial, alongside the partial response.
func (s *releaseService) Complete(ctx context.Context, session Session, releaseID string) (dto.ReleaseCompletionResponse, error) {
	if err := session.Validate(); err != nil {
		return dto.ReleaseCompletionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "releases.complete", trace.WithAttributes(
		attribute.String("release.id", releaseID),
		attribute.String("release.unit", session.Unit),
	))
	defer span.End()

	release, err := s.releases.GetByID(ctx, session.Unit, releaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReleaseCompletionResponse{}, ErrReleaseNotFound
		}
		return dto.ReleaseCompletionResponse{}, s.fail(span, stepStatus, err)
	}
	if !release.IsPending() {
		return dto.ReleaseCompletionResponse{}, ErrReleaseNotPending
	}

	now := s.now().UTC()
	if err := s.releases.MarkReleased(ctx, session.Unit, release.ID, now, session.OperatorName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReleaseCompletionResponse{}, ErrReleaseNotPending
		}
		return dto.ReleaseCompletionResponse{}, s.fail(span, stepStatus, err)
	}

	release.Status = models.ReleaseStatusReleased
	release.ReleasedAt = &now
	release.GatekeeperName = session.OperatorName
	observability.ReleasesCompleted().Inc()

	response := dto.ReleaseCompletionResponse{
		Release:     dto.NewReleaseResponse(release),
		CompletedAt: now,
	}

	if err := s.hub.Publish(ctx, realtime.ReleasesTopic(session.Unit), response.Release); err != nil {
		s.logger.Warn().Err(err).Str("release_id", release.ID).Msg("failed to publish release change")
	}

	if release.HasLinkedAccessRecord() {
		if err := s.accessRecords.PatchExit(ctx, release.Unit, *release.LinkedAccessRecordID, now, session.OperatorName); err != nil {
			return response, s.partial(span, stepAccessRecord, release.ID, err)
		}
		response.AccessRecordPatched = true
	}

	notification, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
		StudentID: release.StudentID,
		Title:     s.localizer.ReleaseConfirmedTitle(),
		Message:   s.localizer.ReleaseConfirmedMessage(now, session.OperatorName),
		Data: map[string]interface{}{
			"release_id":  release.ID,
			"unit":        release.Unit,
			"released_at": now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return response, s.partial(span, stepNotification, release.ID, err)
	}
	response.NotificationID = notification.ID

	s.logger.Info().
		Str("release_id", release.ID).
		Str("student_id", release.StudentID).
		Str("gatekeeper", session.OperatorName).
		Msg("release completed")

	return response, nil
}

func (s *releaseService) fail(span trace.Span, step string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, step)
	observability.ReleaseCompletionFailures().WithLabelValues(step).Inc()
	return fmt.Errorf("complete release: %s: %w", step, err)
}

func (s *releaseService) partial(span trace.Span, step, releaseID string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, step)
	observability.ReleaseCompletionFailures().WithLabelValues(step).Inc()
	s.logger.Error().Err(err).Str("release_id", releaseID).Str("step", step).Msg("release completed partially")
	return fmt.Errorf("%w: %s: %w", ErrCompletionPartial, step, err)
}
