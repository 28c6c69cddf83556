package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/observability"
	"github.com/noah-isme/gema-gate-api/internal/realtime"
	"github.com/noah-isme/gema-gate-api/internal/repository"
)

// LostFoundService runs the lost and found registry of a unit.
type LostFoundService interface {
	Add(ctx context.Context, session Session, req dto.LostFoundCreateRequest, photo *PhotoUpload) (dto.LostFoundItemResponse, error)
	Claim(ctx context.Context, session Session, id string, req dto.LostFoundClaimRequest) (dto.LostFoundItemResponse, error)
	Deliver(ctx context.Context, session Session, id string) (dto.LostFoundItemResponse, error)
	Delete(ctx context.Context, session Session, id string) error
	List(ctx context.Context, unit, status string) ([]dto.LostFoundItemResponse, error)
	Watch(ctx context.Context, unit string) <-chan []dto.LostFoundItemResponse
	Export(ctx context.Context, unit string) ([]byte, error)
}

type lostFoundService struct {
	repo      repository.LostFoundRepository
	blobs     BlobStore
	hub       *realtime.Hub
	reaper    *ExpiryReaper
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	photos    PhotoConfig
	localizer *Localizer
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewLostFoundService constructs the registry service. blobs may be nil when photo storage is not configured.
func NewLostFoundService(
	repo repository.LostFoundRepository,
	blobs BlobStore,
	hub *realtime.Hub,
	reaper *ExpiryReaper,
	validate *validator.Validate,
	photos PhotoConfig,
	localizer *Localizer,
	logger zerolog.Logger,
) LostFoundService {
	return &lostFoundService{
		repo:      repo,
		blobs:     blobs,
		hub:       hub,
		reaper:    reaper,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		photos:    photos,
		localizer: localizer,
		logger:    logger.With().Str("component", "lost_found_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-gate-api/internal/service/lost_found"),
		now:       time.Now,
	}
}

func (s *lostFoundService) Add(ctx context.Context, session Session, req dto.LostFoundCreateRequest, photo *PhotoUpload) (dto.LostFoundItemResponse, error) {
	if err := session.Validate(); err != nil {
		return dto.LostFoundItemResponse{}, err
	}

	req.Unit = session.Unit
	req.CreatedBy = session.OperatorName
	req.Description = strings.TrimSpace(s.sanitizer.Sanitize(req.Description))
	req.LocationFound = strings.TrimSpace(s.sanitizer.Sanitize(req.LocationFound))
	if err := s.validator.Struct(req); err != nil {
		return dto.LostFoundItemResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "lost_found.add", trace.WithAttributes(attribute.String("lost_found.unit", session.Unit)))
	defer span.End()

	now := s.now().UTC()
	item := models.LostFoundItem{
		Unit:          session.Unit,
		Description:   req.Description,
		LocationFound: req.LocationFound,
		Status:        models.LostItemStatusActive,
		CreatedBy:     req.CreatedBy,
		Timestamp:     now,
	}

	if photo != nil && len(photo.Data) > 0 {
		url, err := s.storePhoto(ctx, now, photo)
		if err != nil {
			span.RecordError(err)
			return dto.LostFoundItemResponse{}, err
		}
		item.PhotoURL = url
	}

	if err := s.repo.Create(ctx, &item); err != nil {
		span.RecordError(err)
		if item.PhotoURL != "" {
			if delErr := s.blobs.DeleteByURL(ctx, item.PhotoURL); delErr != nil {
				s.logger.Warn().Err(delErr).Str("photo_url", item.PhotoURL).Msg("failed to delete orphaned lost item photo")
			}
		}
		return dto.LostFoundItemResponse{}, fmt.Errorf("create lost item: %w", err)
	}

	s.changed(ctx, session.Unit, "add")
	return dto.NewLostFoundItemResponse(item), nil
}

func (s *lostFoundService) storePhoto(ctx context.Context, at time.Time, photo *PhotoUpload) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("%w: photo storage is not configured", ErrInvalidInput)
	}

	compressed, err := CompressPhoto(photo.Data, s.photos)
	if err != nil {
		return "", err
	}

	url, err := s.blobs.Upload(ctx, PhotoBlobName(at, photo.FileName), bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return url, nil
}

// Claim records the claimant on an active item. Only the read is checked: two claims racing
// on the same item both pass and the later write wins.
func (s *lostFoundService) Claim(ctx context.Context, session Session, id string, req dto.LostFoundClaimRequest) (dto.LostFoundItemResponse, error) {
	if err := session.Validate(); err != nil {
		return dto.LostFoundItemResponse{}, err
	}

	req.StudentName = strings.TrimSpace(s.sanitizer.Sanitize(req.StudentName))
	if err := s.validator.Struct(req); err != nil {
		return dto.LostFoundItemResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "lost_found.claim", trace.WithAttributes(attribute.String("lost_found.id", id)))
	defer span.End()

	item, err := s.get(ctx, session.Unit, id)
	if err != nil {
		return dto.LostFoundItemResponse{}, err
	}
	if item.Status != models.LostItemStatusActive {
		return dto.LostFoundItemResponse{}, fmt.Errorf("%w: item is %s", ErrInvalidTransition, item.Status)
	}

	claimant := models.Claimant{
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		Grade:       req.Grade,
		Class:       req.Class,
		Shift:       req.Shift,
	}
	now := s.now().UTC()
	if err := s.repo.Claim(ctx, session.Unit, id, claimant, now); err != nil {
		span.RecordError(err)
		return dto.LostFoundItemResponse{}, s.translate(err)
	}

	item.Status = models.LostItemStatusClaimed
	item.ClaimedBy = claimant
	item.ClaimedAt = &now

	s.changed(ctx, session.Unit, "claim")
	return dto.NewLostFoundItemResponse(item), nil
}

func (s *lostFoundService) Deliver(ctx context.Context, session Session, id string) (dto.LostFoundItemResponse, error) {
	if err := session.Validate(); err != nil {
		return dto.LostFoundItemResponse{}, err
	}
	if !session.IsStaff() {
		return dto.LostFoundItemResponse{}, ErrForbidden
	}

	ctx, span := s.tracer.Start(ctx, "lost_found.deliver", trace.WithAttributes(attribute.String("lost_found.id", id)))
	defer span.End()

	item, err := s.get(ctx, session.Unit, id)
	if err != nil {
		return dto.LostFoundItemResponse{}, err
	}
	if item.Status != models.LostItemStatusClaimed {
		return dto.LostFoundItemResponse{}, fmt.Errorf("%w: item is %s", ErrInvalidTransition, item.Status)
	}

	now := s.now().UTC()
	if err := s.repo.Deliver(ctx, session.Unit, id, now); err != nil {
		span.RecordError(err)
		return dto.LostFoundItemResponse{}, s.translate(err)
	}

	item.Status = models.LostItemStatusDelivered
	item.DeliveredAt = &now

	s.changed(ctx, session.Unit, "deliver")
	return dto.NewLostFoundItemResponse(item), nil
}

// Delete removes the photo, best effort, and then the item. Deleting a missing item is a no-op.
func (s *lostFoundService) Delete(ctx context.Context, session Session, id string) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if !session.IsStaff() {
		return ErrForbidden
	}

	ctx, span := s.tracer.Start(ctx, "lost_found.delete", trace.WithAttributes(attribute.String("lost_found.id", id)))
	defer span.End()

	item, err := s.repo.GetByID(ctx, session.Unit, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("load lost item: %w", err)
	}

	if item.PhotoURL != "" && s.blobs != nil {
		if err := s.blobs.DeleteByURL(ctx, item.PhotoURL); err != nil {
			s.logger.Warn().Err(err).Str("item_id", id).Msg("failed to delete lost item photo")
		}
	}

	if err := s.repo.Delete(ctx, session.Unit, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("delete lost item: %w", err)
	}

	s.changed(ctx, session.Unit, "delete")
	return nil
}

// List returns the unit's items, newest first, optionally narrowed by status. Every listing
// also gives the reaper a chance to purge expired deliveries.
func (s *lostFoundService) List(ctx context.Context, unit, status string) ([]dto.LostFoundItemResponse, error) {
	if unit == "" {
		return nil, ErrSessionRequired
	}

	filter := repository.LostFoundFilter{Unit: unit}
	if status != "" {
		parsed, err := parseLostItemStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = parsed
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if s.reaper != nil {
		s.reaper.Observe(unit, items)
	}
	return dto.NewLostFoundItemResponseSlice(items), nil
}

// Watch streams snapshots of the unit's registry; each snapshot is also handed to the reaper.
func (s *lostFoundService) Watch(ctx context.Context, unit string) <-chan []dto.LostFoundItemResponse {
	return realtime.Watch[dto.LostFoundItemResponse](ctx, s.hub, realtime.LostFoundTopic(unit), func(ctx context.Context) ([]dto.LostFoundItemResponse, error) {
		return s.List(ctx, unit, "")
	}, s.logger)
}

func (s *lostFoundService) get(ctx context.Context, unit, id string) (models.LostFoundItem, error) {
	item, err := s.repo.GetByID(ctx, unit, id)
	if err != nil {
		return models.LostFoundItem{}, s.translate(err)
	}
	return item, nil
}

func (s *lostFoundService) translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrLostItemNotFound
	}
	return err
}

func (s *lostFoundService) changed(ctx context.Context, unit, operation string) {
	observability.LostFoundTransitions().WithLabelValues(operation).Inc()
	if err := s.hub.Publish(ctx, realtime.LostFoundTopic(unit), nil); err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("failed to publish lost and found change")
	}
}

func parseLostItemStatus(raw string) (models.LostItemStatus, error) {
	status := models.LostItemStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case models.LostItemStatusActive, models.LostItemStatusClaimed, models.LostItemStatusDelivered:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
}
