package workflow

import (
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

// Notification type tags emitted by the engine. Values match
// models.NotificationType so the dispatcher converts by string.
const (
	NotifyDelegationGranted = "DELEGATION_GRANTED"
	NotifyRequestRejected   = "REQUEST_REJECTED"
	NotifyNewRequest        = "NEW_REQUEST"
	NotifyEntityApproved    = "ENTITY_APPROVED"
	NotifyEntityRejected    = "ENTITY_REJECTED"
	NotifyRequestCancelled  = "REQUEST_CANCELLED"
)

const agencyInboxPrefix = "AGENCY_"

// Payload carries the optional fields a transition may require.
type Payload struct {
	AssignedTeam    string
	RejectionReason string
	ResponseNotes   string
}

// PendingNotification is a side effect the caller must deliver after the
// state write succeeds. The engine never performs I/O.
type PendingNotification struct {
	RecipientID string
	Type        string
	Title       string
	Body        string
	RequestID   string
}

// Outcome is the full effect of a legal transition: the status move, the
// field updates to persist alongside it, and the notifications to enqueue.
type Outcome struct {
	From    Status
	To      Status
	Trigger Trigger

	Handling           string
	AssignedTeam       string
	RejectionReason    string
	ResponseNotes      string
	RecordResponseDate bool
	MarkDispatched     bool

	Notifications []PendingNotification
}

// Apply evaluates a requested transition against the actor's authority, the
// transition table, and the payload requirements, in that order. It is pure:
// on success the returned Outcome describes everything the caller must
// persist and deliver; on failure nothing may be written.
func Apply(req RequestView, trig Trigger, actor Actor, payload Payload) (*Outcome, error) {
	if err := Authorize(actor, req, trig); err != nil {
		return nil, err
	}

	r, ok := transitions[trig]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown transition: %s", trig))
	}
	if !r.allowsSource(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot %s a request in status %s", strings.ToLower(string(trig)), req.Status))
	}

	if err := validatePayload(trig, payload); err != nil {
		return nil, err
	}

	out := &Outcome{From: req.Status, To: r.target, Trigger: trig}

	switch trig {
	case TriggerApproveCentral:
		out.Handling = "CENTRAL"

	case TriggerApproveDelegate:
		out.Handling = "DELEGATED"
		out.Notifications = append(out.Notifications, PendingNotification{
			RecipientID: req.CreatedBy,
			Type:        NotifyDelegationGranted,
			Title:       "Dispatch authority delegated",
			Body:        fmt.Sprintf("Your school may now send the official letter for %q directly to the agency.", req.Topic),
			RequestID:   req.ID,
		})

	case TriggerReject:
		out.RejectionReason = payload.RejectionReason
		out.Notifications = append(out.Notifications, PendingNotification{
			RecipientID: req.CreatedBy,
			Type:        NotifyRequestRejected,
			Title:       "Request rejected",
			Body:        fmt.Sprintf("The administration rejected your request %q.", req.Topic),
			RequestID:   req.ID,
		})

	case TriggerDispatch:
		out.MarkDispatched = true
		out.Notifications = append(out.Notifications, PendingNotification{
			RecipientID: agencyInboxPrefix + req.AgencyID,
			Type:        NotifyNewRequest,
			Title:       "New activity request",
			Body:        fmt.Sprintf("A school requests support for %q.", req.Topic),
			RequestID:   req.ID,
		})

	case TriggerEntityApprove:
		out.AssignedTeam = payload.AssignedTeam
		out.ResponseNotes = payload.ResponseNotes
		out.RecordResponseDate = true
		out.Notifications = append(out.Notifications, PendingNotification{
			RecipientID: req.CreatedBy,
			Type:        NotifyEntityApproved,
			Title:       "Request approved by agency",
			Body:        fmt.Sprintf("The agency accepted %q and assigned %s.", req.Topic, payload.AssignedTeam),
			RequestID:   req.ID,
		})

	case TriggerEntityReject:
		out.RejectionReason = payload.RejectionReason
		out.ResponseNotes = payload.ResponseNotes
		out.RecordResponseDate = true
		out.Notifications = append(out.Notifications, PendingNotification{
			RecipientID: req.CreatedBy,
			Type:        NotifyEntityRejected,
			Title:       "Request declined by agency",
			Body:        fmt.Sprintf("The agency declined %q: %s", req.Topic, payload.RejectionReason),
			RequestID:   req.ID,
		})

	case TriggerCancel:
		if req.Dispatched {
			out.Notifications = append(out.Notifications, PendingNotification{
				RecipientID: agencyInboxPrefix + req.AgencyID,
				Type:        NotifyRequestCancelled,
				Title:       "Request cancelled",
				Body:        fmt.Sprintf("The school withdrew its request %q.", req.Topic),
				RequestID:   req.ID,
			})
		}
	}

	return out, nil
}

// validatePayload enforces per-trigger required fields before any write.
func validatePayload(trig Trigger, payload Payload) error {
	switch trig {
	case TriggerEntityApprove:
		if strings.TrimSpace(payload.AssignedTeam) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "assigned_team is required to approve a request")
		}
	case TriggerEntityReject:
		if strings.TrimSpace(payload.RejectionReason) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "rejection_reason is required to decline a request")
		}
	}
	return nil
}
