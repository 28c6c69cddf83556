package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/observability"
	"github.com/noah-isme/gema-gate-api/internal/realtime"
	"github.com/noah-isme/gema-gate-api/internal/repository"
)

// DefaultLostFoundRetention is how long a delivered item stays listed.
const DefaultLostFoundRetention = 48 * time.Hour

// SweepResult summarises one reaper pass.
type SweepResult struct {
	Purged int
	Failed int
}

// ExpiryReaper purges delivered items older than the retention window. It has no schedule of its
// own: it runs whenever a registry snapshot is observed, so several nodes may purge the same item.
type ExpiryReaper struct {
	repo      repository.LostFoundRepository
	blobs     BlobStore
	hub       *realtime.Hub
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewExpiryReaper constructs a reaper. blobs and hub may be nil.
func NewExpiryReaper(repo repository.LostFoundRepository, blobs BlobStore, hub *realtime.Hub, retention time.Duration, logger zerolog.Logger) *ExpiryReaper {
	if retention <= 0 {
		retention = DefaultLostFoundRetention
	}
	return &ExpiryReaper{
		repo:      repo,
		blobs:     blobs,
		hub:       hub,
		retention: retention,
		logger:    logger.With().Str("component", "expiry_reaper").Logger(),
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

// Expired filters the items the reaper would purge at the current time.
func (r *ExpiryReaper) Expired(items []models.LostFoundItem) []models.LostFoundItem {
	now := r.now()
	var expired []models.LostFoundItem
	for _, item := range items {
		if item.ExpiredAt(now, r.retention) {
			expired = append(expired, item)
		}
	}
	return expired
}

// Observe schedules a background sweep of the snapshot. At most one sweep per unit runs at a time;
// snapshots observed meanwhile are skipped since the running sweep publishes a fresh one.
func (r *ExpiryReaper) Observe(unit string, items []models.LostFoundItem) {
	expired := r.Expired(items)
	if len(expired) == 0 {
		return
	}

	r.mu.Lock()
	if _, running := r.inflight[unit]; running {
		r.mu.Unlock()
		return
	}
	r.inflight[unit] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.inflight, unit)
			r.mu.Unlock()
		}()
		r.purge(context.Background(), unit, expired)
	}()
}

// Wait blocks until background sweeps finish.
func (r *ExpiryReaper) Wait() {
	r.wg.Wait()
}

// Sweep purges the expired items of the snapshot synchronously.
func (r *ExpiryReaper) Sweep(ctx context.Context, unit string, items []models.LostFoundItem) SweepResult {
	return r.purge(ctx, unit, r.Expired(items))
}

func (r *ExpiryReaper) purge(ctx context.Context, unit string, expired []models.LostFoundItem) SweepResult {
	var result SweepResult
	for _, item := range expired {
		if item.PhotoURL != "" && r.blobs != nil {
			if err := r.blobs.DeleteByURL(ctx, item.PhotoURL); err != nil {
				observability.ReaperErrors().Inc()
				r.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to delete expired item photo")
			}
		}

		if err := r.repo.Delete(ctx, unit, item.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			result.Failed++
			observability.ReaperErrors().Inc()
			r.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to purge expired item")
			continue
		}
		result.Purged++
	}

	if result.Purged > 0 {
		observability.ReaperPurged().Add(float64(result.Purged))
		r.logger.Info().Str("unit", unit).Int("purged", result.Purged).Msg("expired lost and found items purged")
		if r.hub != nil {
			if err := r.hub.Publish(ctx, realtime.LostFoundTopic(unit), nil); err != nil {
				r.logger.Warn().Err(err).Msg("failed to publish reaper change")
			}
		}
	}
	return result
}
