package workflow

import (
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

// Role mirrors the portal RBAC roles for authority decisions. Values match
// models.UserRole so the service layer converts by string.
type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleSchool     Role = "SCHOOL"
	RoleAgency     Role = "AGENCY"
)

// Actor identifies who is invoking a transition.
type Actor struct {
	ID       string
	Role     Role
	SchoolID string
	AgencyID string
}

// RequestView is the slice of request state the workflow core needs. The
// service layer builds it from the stored request.
type RequestView struct {
	ID         string
	SchoolID   string
	AgencyID   string
	CreatedBy  string
	Status     Status
	Delegated  bool
	Dispatched bool
	Topic      string
}

// Authorize decides whether the actor's role may invoke the trigger on the
// request, independent of current status. Callers must evaluate this before
// status legality so an unauthorized call fails for the authorization
// reason even when the transition would otherwise be state-valid.
func Authorize(actor Actor, req RequestView, trig Trigger) error {
	switch trig {
	case TriggerApproveCentral, TriggerApproveDelegate, TriggerReject:
		if !isAdmin(actor.Role) {
			return appErrors.Clone(appErrors.ErrForbidden, "only administrators may review requests")
		}
		return nil

	case TriggerDispatch:
		if isAdmin(actor.Role) {
			return nil
		}
		if actor.Role == RoleSchool {
			if !req.Delegated {
				return appErrors.Clone(appErrors.ErrForbidden, "dispatch authority was not delegated to the school")
			}
			if actor.SchoolID != req.SchoolID || actor.ID != req.CreatedBy {
				return appErrors.Clone(appErrors.ErrForbidden, "only the requesting coordinator may dispatch")
			}
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "role may not dispatch requests")

	case TriggerEntityApprove, TriggerEntityReject:
		if actor.Role != RoleAgency {
			return appErrors.Clone(appErrors.ErrForbidden, "only agency managers may respond to requests")
		}
		if actor.AgencyID == "" || actor.AgencyID != req.AgencyID {
			return appErrors.Clone(appErrors.ErrForbidden, "request belongs to a different agency")
		}
		return nil

	case TriggerComplete:
		if isAdmin(actor.Role) {
			return nil
		}
		if actor.Role == RoleSchool && actor.SchoolID == req.SchoolID {
			return nil
		}
		if actor.Role == RoleAgency && actor.AgencyID == req.AgencyID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "actor is not a party to this request")

	case TriggerCancel:
		if actor.Role != RoleSchool {
			return appErrors.Clone(appErrors.ErrForbidden, "only the school may cancel its request")
		}
		if actor.SchoolID != req.SchoolID {
			return appErrors.Clone(appErrors.ErrForbidden, "request belongs to a different school")
		}
		return nil
	}

	return appErrors.Clone(appErrors.ErrForbidden, "unknown transition")
}

func isAdmin(role Role) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
