package dto

import (
	"time"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// NotificationCreateRequest describes the payload to append a notification.
type NotificationCreateRequest struct {
	StudentID string                 `json:"student_id" validate:"required,max=64"`
	Title     string                 `json:"title" validate:"required,max=255"`
	Message   string                 `json:"message" validate:"required,min=1,max=2000"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        string                 `json:"id"`
	StudentID string                 `json:"student_id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Read      bool                   `json:"read"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		StudentID: model.StudentID,
		Title:     model.Title,
		Message:   model.Message,
		Read:      model.Read,
		Data:      map[string]interface{}(model.Data),
		Timestamp: model.Timestamp,
	}
}

// NewNotificationResponseSlice converts notifications into DTOs.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		out = append(out, NewNotificationResponse(notification))
	}
	return out
}
