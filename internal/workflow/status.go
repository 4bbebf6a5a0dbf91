package workflow

// Status enumerates the request coordination lifecycle. A request is
// persisted in SENT (DRAFT only exists for forms never finalized, the
// DRAFT->SENT edge is the sole entry point and happens at creation).
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPending           Status = "PENDING"
	StatusApproved          Status = "APPROVED"
	StatusDelegatedToSchool Status = "DELEGATED_TO_SCHOOL"
	StatusSent              Status = "SENT"
	StatusInProgress        Status = "IN_PROGRESS"
	StatusEntityApproved    Status = "ENTITY_APPROVED"
	StatusEntityRejected    Status = "ENTITY_REJECTED"
	StatusRejected          Status = "REJECTED"
	StatusCancelled         Status = "CANCELLED"
	StatusCompleted         Status = "COMPLETED"
)

// InitialStatus is the status assigned when a request is created.
const InitialStatus = StatusSent

var allStatuses = map[Status]struct{}{
	StatusDraft:             {},
	StatusPending:           {},
	StatusApproved:          {},
	StatusDelegatedToSchool: {},
	StatusSent:              {},
	StatusInProgress:        {},
	StatusEntityApproved:    {},
	StatusEntityRejected:    {},
	StatusRejected:          {},
	StatusCancelled:         {},
	StatusCompleted:         {},
}

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	_, ok := allStatuses[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusEntityApproved:
		// ENTITY_APPROVED still allows COMPLETE.
		return false
	case StatusEntityRejected, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// Statuses returns every defined status, useful for validation messages.
func Statuses() []Status {
	out := make([]Status, 0, len(allStatuses))
	for s := range allStatuses {
		out = append(out, s)
	}
	return out
}
