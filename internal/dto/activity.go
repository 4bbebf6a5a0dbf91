package dto

import "github.com/noah-isme/eco-coord-api/internal/models"

// CreateActivityRequest payload for planning an internal school activity.
type CreateActivityRequest struct {
	Title      string `json:"title" validate:"required"`
	CategoryID string `json:"categoryId" validate:"required"`
	Date       string `json:"date" validate:"required"`
	Location   string `json:"location"`
}

// DocumentActivityRequest records the outcome of a held activity; the
// participant count feeds point aggregation.
type DocumentActivityRequest struct {
	Participants int `json:"participants" validate:"required,gt=0"`
}

// ActivityQuery mirrors supported listing filters.
type ActivityQuery struct {
	SchoolID string
	Status   []models.ActivityStatus
	Limit    int
	Offset   int
}
