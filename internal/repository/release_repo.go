package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// ReleaseRepository persists authorized releases. Every query is narrowed to one unit.
type ReleaseRepository interface {
	Create(ctx context.Context, release *models.AuthorizedRelease) error
	GetByID(ctx context.Context, unit, id string) (models.AuthorizedRelease, error)
	ListPending(ctx context.Context, unit string) ([]models.AuthorizedRelease, error)
	MarkReleased(ctx context.Context, unit, id string, releasedAt time.Time, gatekeeper string) error
}

type releaseRepository struct {
	db *gorm.DB
}

// NewReleaseRepository constructs a release repository backed by GORM.
func NewReleaseRepository(db *gorm.DB) ReleaseRepository {
	return &releaseRepository{db: db}
}

func (r *releaseRepository) Create(ctx context.Context, release *models.AuthorizedRelease) error {
	return r.db.WithContext(ctx).Create(release).Error
}

func (r *releaseRepository) GetByID(ctx context.Context, unit, id string) (models.AuthorizedRelease, error) {
	var release models.AuthorizedRelease
	if err := r.db.WithContext(ctx).
		Where("id = ? AND unit = ?", id, unit).
		First(&release).Error; err != nil {
		return models.AuthorizedRelease{}, err
	}
	return release, nil
}

func (r *releaseRepository) ListPending(ctx context.Context, unit string) ([]models.AuthorizedRelease, error) {
	var releases []models.AuthorizedRelease
	if err := r.db.WithContext(ctx).
		Where("unit = ? AND status = ?", unit, models.ReleaseStatusPending).
		Order("timestamp ASC").
		Find(&releases).Error; err != nil {
		return nil, err
	}
	return releases, nil
}

// MarkReleased flips a pending release to released. It returns gorm.ErrRecordNotFound when no
// pending release with that id exists in the unit, which covers an already released id.
func (r *releaseRepository) MarkReleased(ctx context.Context, unit, id string, releasedAt time.Time, gatekeeper string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AuthorizedRelease{}).
		Where("id = ? AND unit = ? AND status = ?", id, unit, models.ReleaseStatusPending).
		Updates(map[string]interface{}{
			"status":          models.ReleaseStatusReleased,
			"released_at":     releasedAt,
			"gatekeeper_name": gatekeeper,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
