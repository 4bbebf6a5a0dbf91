package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/eco-coord-api/internal/workflow"
)

// RequestHandling records which party holds dispatch authority after the
// administrator's decision.
type RequestHandling string

const (
	HandlingCentral   RequestHandling = "CENTRAL"
	HandlingDelegated RequestHandling = "DELEGATED"
)

// PreferredSlot is one candidate schedule entry for the requested activity.
type PreferredSlot struct {
	Date  string `json:"date" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// Request is an activity request a school raises against a partner agency.
// SchoolID and AgencyID are fixed at creation; Status only moves through
// the workflow transition table (or an audited admin override).
type Request struct {
	ID        string `db:"id" json:"id"`
	SchoolID  string `db:"school_id" json:"school_id"`
	AgencyID  string `db:"agency_id" json:"agency_id"`
	CreatedBy string `db:"created_by" json:"created_by"`

	Topic           string         `db:"topic" json:"topic"`
	Audience        types.JSONText `db:"audience" json:"audience"`
	Participants    int            `db:"participants" json:"participants"`
	Location        string         `db:"location" json:"location"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	PreferredSlots  types.JSONText `db:"preferred_slots" json:"preferred_slots"`
	Notes           string         `db:"notes" json:"notes"`

	Status       workflow.Status  `db:"status" json:"status"`
	Handling     *RequestHandling `db:"handling" json:"handling,omitempty"`
	DispatchedAt *time.Time       `db:"dispatched_at" json:"dispatched_at,omitempty"`
	LetterPath   *string          `db:"letter_path" json:"letter_path,omitempty"`

	AssignedTeam        *string    `db:"assigned_team" json:"assigned_team,omitempty"`
	EntityResponseNotes *string    `db:"entity_response_notes" json:"entity_response_notes,omitempty"`
	EntityResponseDate  *time.Time `db:"entity_response_date" json:"entity_response_date,omitempty"`
	RejectionReason     *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	SchoolID string
	AgencyID string
	Status   []workflow.Status
	Limit    int
	Offset   int
}
