package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthorizeAdminTriggers(t *testing.T) {
	req := baseRequest(StatusSent)

	for _, trig := range []Trigger{TriggerApproveCentral, TriggerApproveDelegate, TriggerReject} {
		require.NoError(t, Authorize(admin(), req, trig))
		require.NoError(t, Authorize(Actor{ID: "root", Role: RoleSuperAdmin}, req, trig))
		require.Error(t, Authorize(schoolCoordinator(), req, trig))
		require.Error(t, Authorize(agencyManager(), req, trig))
	}
}

func TestAuthorizeAgencyScope(t *testing.T) {
	req := baseRequest(StatusSent)

	require.NoError(t, Authorize(agencyManager(), req, TriggerEntityApprove))

	other := Actor{ID: "agent-2", Role: RoleAgency, AgencyID: "agency-2"}
	require.Error(t, Authorize(other, req, TriggerEntityApprove))
	require.Error(t, Authorize(other, req, TriggerEntityReject))

	unscoped := Actor{ID: "agent-3", Role: RoleAgency}
	require.Error(t, Authorize(unscoped, req, TriggerEntityApprove))
}

func TestAuthorizeCancelIsSchoolOnly(t *testing.T) {
	req := baseRequest(StatusSent)

	require.NoError(t, Authorize(schoolCoordinator(), req, TriggerCancel))
	require.Error(t, Authorize(admin(), req, TriggerCancel))
	require.Error(t, Authorize(agencyManager(), req, TriggerCancel))

	otherSchool := Actor{ID: "coord-9", Role: RoleSchool, SchoolID: "school-9"}
	require.Error(t, Authorize(otherSchool, req, TriggerCancel))
}

func TestAuthorizeDispatchDelegation(t *testing.T) {
	req := baseRequest(StatusDelegatedToSchool)

	// Not yet delegated: school denied, admin allowed.
	require.Error(t, Authorize(schoolCoordinator(), req, TriggerDispatch))
	require.NoError(t, Authorize(admin(), req, TriggerDispatch))

	req.Delegated = true
	require.NoError(t, Authorize(schoolCoordinator(), req, TriggerDispatch))

	// Delegation binds the creating coordinator, not any school user.
	colleague := Actor{ID: "coord-2", Role: RoleSchool, SchoolID: "school-1"}
	require.Error(t, Authorize(colleague, req, TriggerDispatch))
}

func TestAuthorizeCompleteAnyParty(t *testing.T) {
	req := baseRequest(StatusEntityApproved)

	require.NoError(t, Authorize(admin(), req, TriggerComplete))
	require.NoError(t, Authorize(schoolCoordinator(), req, TriggerComplete))
	require.NoError(t, Authorize(agencyManager(), req, TriggerComplete))

	stranger := Actor{ID: "coord-9", Role: RoleSchool, SchoolID: "school-9"}
	require.Error(t, Authorize(stranger, req, TriggerComplete))
}
