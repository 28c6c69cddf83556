package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is a message appended to a student's feed.
type Notification struct {
	ID        string            `gorm:"primaryKey;size:64" json:"id"`
	StudentID string            `gorm:"size:64;not null;index" json:"student_id"`
	Title     string            `gorm:"size:255;not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	Data      datatypes.JSONMap `gorm:"type:json" json:"data"`
	Timestamp time.Time         `gorm:"not null;index" json:"timestamp"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BeforeCreate assigns an identifier and timestamp when missing.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	return nil
}
