package models

import "time"

// NotificationType tags the workflow event that produced a notification.
type NotificationType string

const (
	NotificationDelegationGranted NotificationType = "DELEGATION_GRANTED"
	NotificationRequestRejected   NotificationType = "REQUEST_REJECTED"
	NotificationNewRequest        NotificationType = "NEW_REQUEST"
	NotificationEntityApproved    NotificationType = "ENTITY_APPROVED"
	NotificationEntityRejected    NotificationType = "ENTITY_REJECTED"
	NotificationRequestCancelled  NotificationType = "REQUEST_CANCELLED"
)

// AgencyInboxPrefix builds synthetic recipient identities shared by every
// user tied to one agency.
const AgencyInboxPrefix = "AGENCY_"

// AgencyInbox returns the synthetic recipient id for an agency.
func AgencyInbox(agencyID string) string {
	return AgencyInboxPrefix + agencyID
}

// Notification is an append-only message created as a workflow side effect.
// It is never mutated except to flip Read, and may be deleted by its
// recipient without touching request state.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Body        string           `db:"body" json:"body"`
	RequestID   *string          `db:"request_id" json:"request_id,omitempty"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains listing queries.
type NotificationFilter struct {
	RecipientIDs []string
	UnreadOnly   bool
	Limit        int
	Offset       int
}
