package models

import "time"

// ActivityStatus captures the single-party lifecycle of internal school
// activities. Deliberately a distinct type from workflow.Status: the two
// lifecycles share some words but never a transition table.
type ActivityStatus string

const (
	ActivityPlanned    ActivityStatus = "PLANNED"
	ActivityHeld       ActivityStatus = "HELD"
	ActivityDocumented ActivityStatus = "DOCUMENTED"
	ActivityCancelled  ActivityStatus = "CANCELLED"
)

// Activity is an internal school event tracked without agency involvement.
// Only DOCUMENTED activities contribute points.
type Activity struct {
	ID           string         `db:"id" json:"id"`
	SchoolID     string         `db:"school_id" json:"school_id"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	Title        string         `db:"title" json:"title"`
	CategoryID   string         `db:"category_id" json:"category_id"`
	Date         time.Time      `db:"date" json:"date"`
	Location     string         `db:"location" json:"location"`
	Participants int            `db:"participants" json:"participants"`
	Status       ActivityStatus `db:"status" json:"status"`
	DocumentedAt *time.Time     `db:"documented_at" json:"documented_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ActivityFilter constrains listing queries.
type ActivityFilter struct {
	SchoolID string
	Status   []ActivityStatus
	Limit    int
	Offset   int
}

// PointCategory carries the multiplier applied when aggregating points
// for submissions and documented activities.
type PointCategory struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Multiplier float64   `db:"multiplier" json:"multiplier"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
