package dto

import (
	"time"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// StudentResponse is the public view of a resolved student.
type StudentResponse struct {
	ID          string `json:"id"`
	Unit        string `json:"unit"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	GradeLevel  string `json:"grade_level,omitempty"`
	SchoolClass string `json:"school_class,omitempty"`
	Shift       string `json:"shift,omitempty"`
}

// NewStudentResponse converts a student model to DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:          model.ID,
		Unit:        model.Unit,
		Code:        model.Code,
		Name:        model.Name,
		PhotoURL:    model.PhotoURL,
		GradeLevel:  model.GradeLevel,
		SchoolClass: model.SchoolClass,
		Shift:       model.Shift,
	}
}

// ReleaseResponse represents an authorized release.
type ReleaseResponse struct {
	ID                   string     `json:"id"`
	StudentID            string     `json:"student_id"`
	Unit                 string     `json:"unit"`
	Status               string     `json:"status"`
	AuthorizedBy         string     `json:"authorized_by,omitempty"`
	Reason               string     `json:"reason,omitempty"`
	Timestamp            time.Time  `json:"timestamp"`
	ReleasedAt           *time.Time `json:"released_at,omitempty"`
	GatekeeperName       string     `json:"gatekeeper_name,omitempty"`
	LinkedAccessRecordID *string    `json:"linked_access_record_id,omitempty"`
}

// NewReleaseResponse converts a release model to DTO.
func NewReleaseResponse(model models.AuthorizedRelease) ReleaseResponse {
	return ReleaseResponse{
		ID:                   model.ID,
		StudentID:            model.StudentID,
		Unit:                 model.Unit,
		Status:               string(model.Status),
		AuthorizedBy:         model.AuthorizedBy,
		Reason:               model.Reason,
		Timestamp:            model.Timestamp,
		ReleasedAt:           model.ReleasedAt,
		GatekeeperName:       model.GatekeeperName,
		LinkedAccessRecordID: model.LinkedAccessRecordID,
	}
}

// NewReleaseResponseSlice converts releases into DTOs.
func NewReleaseResponseSlice(releases []models.AuthorizedRelease) []ReleaseResponse {
	out := make([]ReleaseResponse, 0, len(releases))
	for _, release := range releases {
		out = append(out, NewReleaseResponse(release))
	}
	return out
}

// ReleaseCompletionResponse reports what a completion committed.
type ReleaseCompletionResponse struct {
	Release             ReleaseResponse `json:"release"`
	AccessRecordPatched bool            `json:"access_record_patched"`
	NotificationID      string          `json:"notification_id,omitempty"`
	CompletedAt         time.Time       `json:"completed_at"`
}
