package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/repository"
)

// IdentityResolver maps a scanned or typed token to a student of one unit.
type IdentityResolver interface {
	Resolve(ctx context.Context, token, unit string) (models.Student, error)
}

type identityResolver struct {
	repo     repository.StudentRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewIdentityResolver constructs a resolver. A nil cache disables caching.
func NewIdentityResolver(repo repository.StudentRepository, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) IdentityResolver {
	return &identityResolver{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "identity_resolver").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-gate-api/internal/service/identity"),
	}
}

// Resolve tries the token as a student id, then as an enrolment code within the unit.
// A student of another unit is never returned, even when the token is its id.
func (r *identityResolver) Resolve(ctx context.Context, token, unit string) (models.Student, error) {
	code := strings.TrimSpace(token)
	if code == "" || strings.TrimSpace(unit) == "" {
		return models.Student{}, ErrStudentNotFound
	}

	ctx, span := r.tracer.Start(ctx, "identity.resolve", trace.WithAttributes(attribute.String("identity.unit", unit)))
	defer span.End()

	if student, ok := r.cached(ctx, unit, token); ok {
		return student, nil
	}

	student, err := r.repo.GetByID(ctx, token)
	switch {
	case err == nil && student.BelongsTo(unit):
		r.store(ctx, unit, token, student)
		return student, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		span.RecordError(err)
		return models.Student{}, fmt.Errorf("lookup student by id: %w", err)
	}

	student, err = r.repo.FindByUnitAndCode(ctx, unit, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return models.Student{}, fmt.Errorf("lookup student by code: %w", err)
	}

	r.store(ctx, unit, token, student)
	return student, nil
}

func cacheKey(unit, token string) string {
	return "identity:" + unit + ":" + token
}

func (r *identityResolver) cached(ctx context.Context, unit, token string) (models.Student, bool) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return models.Student{}, false
	}

	raw, err := r.cache.Get(ctx, cacheKey(unit, token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn().Err(err).Msg("identity cache read failed")
		}
		return models.Student{}, false
	}

	var student models.Student
	if err := json.Unmarshal(raw, &student); err != nil {
		r.logger.Warn().Err(err).Msg("identity cache entry corrupt")
		return models.Student{}, false
	}
	if !student.BelongsTo(unit) {
		return models.Student{}, false
	}
	return student, true
}

func (r *identityResolver) store(ctx context.Context, unit, token string, student models.Student) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(student)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(unit, token), payload, r.cacheTTL).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("identity cache write failed")
	}
}
