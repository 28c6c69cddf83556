package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReleaseStatus tracks the lifecycle of an authorized release.
type ReleaseStatus string

const (
	// ReleaseStatusPending marks a release waiting for gate confirmation.
	ReleaseStatusPending ReleaseStatus = "pending"
	// ReleaseStatusReleased marks a release confirmed at the gate. Terminal.
	ReleaseStatusReleased ReleaseStatus = "released"
	// ReleaseStatusExpired is reserved; nothing in the gate service produces it.
	ReleaseStatusExpired ReleaseStatus = "expired"
)

// AuthorizedRelease is a coordinator-issued permission for a student to leave campus.
type AuthorizedRelease struct {
	ID                   string        `gorm:"primaryKey;size:64" json:"id"`
	StudentID            string        `gorm:"size:64;not null;index" json:"student_id"`
	Unit                 string        `gorm:"column:unit;size:64;not null;index:idx_releases_unit_status,priority:1" json:"unit"`
	Status               ReleaseStatus `gorm:"size:16;not null;index:idx_releases_unit_status,priority:2" json:"status"`
	AuthorizedBy         string        `gorm:"size:255" json:"authorized_by"`
	Reason               string        `gorm:"type:text" json:"reason"`
	Timestamp            time.Time     `gorm:"not null" json:"timestamp"`
	ReleasedAt           *time.Time    `json:"released_at"`
	GatekeeperName       string        `gorm:"size:255" json:"gatekeeper_name"`
	LinkedAccessRecordID *string       `gorm:"size:64" json:"linked_access_record_id"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// TableName pins the table name.
func (AuthorizedRelease) TableName() string {
	return "authorized_releases"
}

// BeforeCreate assigns an identifier and defaults for releases created without one.
func (r *AuthorizedRelease) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReleaseStatusPending
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return nil
}

// IsPending reports whether the release still awaits confirmation.
func (r AuthorizedRelease) IsPending() bool {
	return r.Status == ReleaseStatusPending
}

// HasLinkedAccessRecord reports whether completion must also patch an access record.
func (r AuthorizedRelease) HasLinkedAccessRecord() bool {
	return r.LinkedAccessRecordID != nil && *r.LinkedAccessRecordID != ""
}
