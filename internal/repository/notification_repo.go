package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// NotificationRepository handles persistence for student notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, studentID string) (models.Notification, error)
	FindByID(ctx context.Context, id string) (models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("timestamp DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, studentID string) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND student_id = ?", id, studentID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.Read {
		return notification, nil
	}

	if err := r.db.WithContext(ctx).
		Model(&notification).
		Update("read", true).Error; err != nil {
		return models.Notification{}, err
	}

	notification.Read = true
	return notification, nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id string) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}
