package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// AccessRecordRepository patches attendance access records owned by another system. Lookups are
// narrowed to the unit of the release that links them.
type AccessRecordRepository interface {
	Create(ctx context.Context, record *models.AccessRecord) error
	GetByID(ctx context.Context, unit, id string) (models.AccessRecord, error)
	PatchExit(ctx context.Context, unit, id string, exitTime time.Time, gatekeeper string) error
}

type accessRecordRepository struct {
	db *gorm.DB
}

// NewAccessRecordRepository constructs an access record repository.
func NewAccessRecordRepository(db *gorm.DB) AccessRecordRepository {
	return &accessRecordRepository{db: db}
}

func (r *accessRecordRepository) Create(ctx context.Context, record *models.AccessRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *accessRecordRepository) GetByID(ctx context.Context, unit, id string) (models.AccessRecord, error) {
	var record models.AccessRecord
	if err := r.db.WithContext(ctx).Where("unit = ? AND id = ?", unit, id).First(&record).Error; err != nil {
		return models.AccessRecord{}, err
	}
	return record, nil
}

func (r *accessRecordRepository) PatchExit(ctx context.Context, unit, id string, exitTime time.Time, gatekeeper string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccessRecord{}).
		Where("unit = ? AND id = ?", unit, id).
		Updates(map[string]interface{}{
			"exit_time":       exitTime,
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
