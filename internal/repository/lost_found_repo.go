package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// LostFoundFilter narrows registry listings.
type LostFoundFilter struct {
	Unit   string
	Status models.LostItemStatus
}

// LostFoundRepository manages lost & found items. Writes are plain field updates; there is no
// status precondition, so concurrent writers resolve last-write-wins.
type LostFoundRepository interface {
	Create(ctx context.Context, item *models.LostFoundItem) error
	GetByID(ctx context.Context, unit, id string) (models.LostFoundItem, error)
	List(ctx context.Context, filter LostFoundFilter) ([]models.LostFoundItem, error)
	Claim(ctx context.Context, unit, id string, claimant models.Claimant, claimedAt time.Time) error
	Deliver(ctx context.Context, unit, id string, deliveredAt time.Time) error
	Delete(ctx context.Context, unit, id string) error
}

type lostFoundRepository struct {
	db *gorm.DB
}

// NewLostFoundRepository constructs a lost & found repository.
func NewLostFoundRepository(db *gorm.DB) LostFoundRepository {
	return &lostFoundRepository{db: db}
}

func (r *lostFoundRepository) Create(ctx context.Context, item *models.LostFoundItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *lostFoundRepository) GetByID(ctx context.Context, unit, id string) (models.LostFoundItem, error) {
	var item models.LostFoundItem
	if err := r.db.WithContext(ctx).Where("id = ? AND unit = ?", id, unit).First(&item).Error; err != nil {
		return models.LostFoundItem{}, err
	}
	return item, nil
}

func (r *lostFoundRepository) List(ctx context.Context, filter LostFoundFilter) ([]models.LostFoundItem, error) {
	query := r.db.WithContext(ctx).Where("unit = ?", filter.Unit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var items []models.LostFoundItem
	if err := query.Order("timestamp DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *lostFoundRepository) Claim(ctx context.Context, unit, id string, claimant models.Claimant, claimedAt time.Time) error {
	return r.update(ctx, unit, id, map[string]interface{}{
		"status":                  models.LostItemStatusClaimed,
		"claimed_by_student_id":   claimant.StudentID,
		"claimed_by_student_name": claimant.StudentName,
		"claimed_by_grade":        claimant.Grade,
		"claimed_by_class":        claimant.Class,
		"claimed_by_shift":        claimant.Shift,
		"claimed_at":              claimedAt,
	})
}

func (r *lostFoundRepository) Deliver(ctx context.Context, unit, id string, deliveredAt time.Time) error {
	return r.update(ctx, unit, id, map[string]interface{}{
		"status":       models.LostItemStatusDelivered,
		"delivered_at": deliveredAt,
	})
}

// Delete removes an item. It returns gorm.ErrRecordNotFound when nothing was deleted.
func (r *lostFoundRepository) Delete(ctx context.Context, unit, id string) error {
	result := r.db.WithContext(ctx).Where("id = ? AND unit = ?", id, unit).Delete(&models.LostFoundItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *lostFoundRepository) update(ctx context.Context, unit, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.LostFoundItem{}).
		Where("id = ? AND unit = ?", id, unit).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
