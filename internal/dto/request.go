package dto

import (
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
)

// CreateRequestRequest payload for a school raising a request against an
// agency. The school is taken from the caller's claims.
type CreateRequestRequest struct {
	AgencyID        string                 `json:"agencyId" validate:"required"`
	Topic           string                 `json:"topic" validate:"required"`
	Audience        []string               `json:"audience" validate:"required,min=1"`
	Participants    int                    `json:"participants" validate:"required,gt=0"`
	Location        string                 `json:"location" validate:"required"`
	DurationMinutes int                    `json:"durationMinutes" validate:"required,gt=0"`
	PreferredSlots  []models.PreferredSlot `json:"preferredSlots" validate:"required,min=1,dive"`
	Notes           string                 `json:"notes"`
}

// TransitionRequest invokes one workflow trigger with its optional fields.
type TransitionRequest struct {
	Transition      string `json:"transition" validate:"required"`
	AssignedTeam    string `json:"assignedTeam"`
	RejectionReason string `json:"rejectionReason"`
	ResponseNotes   string `json:"responseNotes"`
}

// OverrideStatusRequest forces a status outside the workflow table. Admin
// escape hatch, always audited.
type OverrideStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	SchoolID string
	AgencyID string
	Status   []workflow.Status
	Limit    int
	Offset   int
}

// LetterLinkResponse returns a signed download link for a dispatch letter.
type LetterLinkResponse struct {
	RequestID string `json:"requestId"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}
