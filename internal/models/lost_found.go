package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LostItemStatus tracks a found object through handover.
type LostItemStatus string

const (
	// LostItemStatusActive marks an item waiting for its owner.
	LostItemStatusActive LostItemStatus = "active"
	// LostItemStatusClaimed marks an item a student has claimed.
	LostItemStatusClaimed LostItemStatus = "claimed"
	// LostItemStatusDelivered marks an item handed over by staff.
	LostItemStatusDelivered LostItemStatus = "delivered"
)

// Claimant identifies the student who claimed an item.
type Claimant struct {
	StudentID   string `gorm:"size:64" json:"student_id"`
	StudentName string `gorm:"size:255" json:"student_name"`
	Grade       string `gorm:"size:64" json:"grade"`
	Class       string `gorm:"size:64" json:"class"`
	Shift       string `gorm:"size:32" json:"shift"`
}

// IsZero reports whether no claim has been recorded.
func (c Claimant) IsZero() bool {
	return c == Claimant{}
}

// LostFoundItem is a found object registered at a unit.
type LostFoundItem struct {
	ID            string         `gorm:"primaryKey;size:64" json:"id"`
	Unit          string         `gorm:"column:unit;size:64;not null;index:idx_lost_found_unit_status,priority:1" json:"unit"`
	Description   string         `gorm:"type:text;not null" json:"description"`
	LocationFound string         `gorm:"size:255;not null" json:"location_found"`
	PhotoURL      string         `gorm:"size:512" json:"photo_url"`
	Status        LostItemStatus `gorm:"size:16;not null;index:idx_lost_found_unit_status,priority:2" json:"status"`
	CreatedBy     string         `gorm:"size:255;not null" json:"created_by"`
	Timestamp     time.Time      `gorm:"not null" json:"timestamp"`
	ClaimedBy     Claimant       `gorm:"embedded;embeddedPrefix:claimed_by_" json:"claimed_by"`
	ClaimedAt     *time.Time     `json:"claimed_at"`
	DeliveredAt   *time.Time     `gorm:"index" json:"delivered_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName pins the table name.
func (LostFoundItem) TableName() string {
	return "lost_found_items"
}

// BeforeCreate assigns an identifier when missing.
func (i *LostFoundItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// ExpiredAt reports whether a delivered item has outlived the retention window at now.
func (i LostFoundItem) ExpiredAt(now time.Time, retention time.Duration) bool {
	if i.Status != LostItemStatusDelivered || i.DeliveredAt == nil {
		return false
	}
	return now.Sub(*i.DeliveredAt) > retention
}
