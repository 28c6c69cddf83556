package dto

import (
	"time"

	"github.com/noah-isme/gema-gate-api/internal/models"
)

// LostFoundCreateRequest registers a found object. Unit and CreatedBy come from the operator session.
type LostFoundCreateRequest struct {
	Description   string `json:"description" form:"description" validate:"required,min=2,max=1000"`
	LocationFound string `json:"location_found" form:"location_found" validate:"required,max=255"`
	CreatedBy     string `json:"created_by" validate:"required,max=255"`
	Unit          string `json:"unit" validate:"required,max=64"`
}

// LostFoundClaimRequest identifies the claiming student.
type LostFoundClaimRequest struct {
	StudentID   string `json:"student_id" validate:"required,max=64"`
	StudentName string `json:"student_name" validate:"required,max=255"`
	Grade       string `json:"grade" validate:"omitempty,max=64"`
	Class       string `json:"class" validate:"omitempty,max=64"`
	Shift       string `json:"shift" validate:"omitempty,max=32"`
}

// ClaimantResponse is the claimed_by block of an item.
type ClaimantResponse struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Grade       string `json:"grade,omitempty"`
	Class       string `json:"class,omitempty"`
	Shift       string `json:"shift,omitempty"`
}

// LostFoundItemResponse represents a registry entry.
type LostFoundItemResponse struct {
	ID            string            `json:"id"`
	Unit          string            `json:"unit"`
	Description   string            `json:"description"`
	LocationFound string            `json:"location_found"`
	PhotoURL      string            `json:"photo_url,omitempty"`
	Status        string            `json:"status"`
	CreatedBy     string            `json:"created_by"`
	Timestamp     time.Time         `json:"timestamp"`
	ClaimedBy     *ClaimantResponse `json:"claimed_by,omitempty"`
	ClaimedAt     *time.Time        `json:"claimed_at,omitempty"`
	DeliveredAt   *time.Time        `json:"delivered_at,omitempty"`
}

// NewLostFoundItemResponse converts a registry model to DTO.
func NewLostFoundItemResponse(model models.LostFoundItem) LostFoundItemResponse {
	response := LostFoundItemResponse{
		ID:            model.ID,
		Unit:          model.Unit,
		Description:   model.Description,
		LocationFound: model.LocationFound,
		PhotoURL:      model.PhotoURL,
		Status:        string(model.Status),
		CreatedBy:     model.CreatedBy,
		Timestamp:     model.Timestamp,
		ClaimedAt:     model.ClaimedAt,
		DeliveredAt:   model.DeliveredAt,
	}
	if !model.ClaimedBy.IsZero() {
		response.ClaimedBy = &ClaimantResponse{
			StudentID:   model.ClaimedBy.StudentID,
			StudentName: model.ClaimedBy.StudentName,
			Grade:       model.ClaimedBy.Grade,
			Class:       model.ClaimedBy.Class,
			Shift:       model.ClaimedBy.Shift,
		}
	}
	return response
}

// NewLostFoundItemResponseSlice converts registry models into DTOs.
func NewLostFoundItemResponseSlice(items []models.LostFoundItem) []LostFoundItemResponse {
	out := make([]LostFoundItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewLostFoundItemResponse(item))
	}
	return out
}
