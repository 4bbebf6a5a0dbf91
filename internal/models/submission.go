package models

import "time"

// SubmissionStatus tracks the review state of a challenge submission.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionApproved  SubmissionStatus = "APPROVED"
	SubmissionRejected  SubmissionStatus = "REJECTED"
)

// Submission is a school's entry against a point-bearing challenge,
// reviewed centrally. Only APPROVED submissions contribute points.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	SchoolID     string           `db:"school_id" json:"school_id"`
	CategoryID   string           `db:"category_id" json:"category_id"`
	Title        string           `db:"title" json:"title"`
	Description  string           `db:"description" json:"description"`
	Participants int              `db:"participants" json:"participants"`
	Status       SubmissionStatus `db:"status" json:"status"`
	SubmittedBy  string           `db:"submitted_by" json:"submitted_by"`
	ReviewedBy   *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNote   *string          `db:"review_note" json:"review_note,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	SchoolID string
	Status   []SubmissionStatus
	Limit    int
	Offset   int
}
