package dto

import "github.com/noah-isme/eco-coord-api/internal/models"

// CreateSubmissionRequest payload for a school entering a challenge.
type CreateSubmissionRequest struct {
	CategoryID   string `json:"categoryId" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	Participants int    `json:"participants" validate:"required,gt=0"`
}

// ReviewSubmissionRequest captures the admin decision and optional note.
type ReviewSubmissionRequest struct {
	Status models.SubmissionStatus `json:"status"`
	Note   string                  `json:"note"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	SchoolID string
	Status   []models.SubmissionStatus
	Limit    int
	Offset   int
}
