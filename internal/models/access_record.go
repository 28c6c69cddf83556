package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessRecord is the entry/exit log kept by the attendance system. The gate only stamps the exit.
type AccessRecord struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	StudentID      string     `gorm:"size:64;not null;index" json:"student_id"`
	Unit           string     `gorm:"column:unit;size:64;index" json:"unit"`
	EntryTime      time.Time  `json:"entry_time"`
	ExitTime       *time.Time `json:"exit_time"`
	GatekeeperName string     `gorm:"size:255" json:"gatekeeper_name"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeCreate assigns an identifier when missing.
func (a *AccessRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
