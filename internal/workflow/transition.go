package workflow

import "fmt"

// Trigger names a workflow transition an actor can invoke.
type Trigger string

const (
	TriggerApproveCentral  Trigger = "APPROVE_CENTRAL"
	TriggerApproveDelegate Trigger = "APPROVE_DELEGATE"
	TriggerReject          Trigger = "REJECT"
	TriggerDispatch        Trigger = "DISPATCH"
	TriggerEntityApprove   Trigger = "ENTITY_APPROVE"
	TriggerEntityReject    Trigger = "ENTITY_REJECT"
	TriggerComplete        Trigger = "COMPLETE"
	TriggerCancel          Trigger = "CANCEL"
)

// rule is one row of the transition table.
type rule struct {
	sources []Status
	target  Status
}

// transitions is the single authoritative (status, trigger) mapping.
// Central approval does not auto-send: APPROVED requires an explicit
// DISPATCH to reach SENT, same as the delegated path.
var transitions = mustTable(map[Trigger]rule{
	TriggerApproveCentral:  {sources: []Status{StatusSent, StatusPending}, target: StatusApproved},
	TriggerApproveDelegate: {sources: []Status{StatusSent, StatusPending}, target: StatusDelegatedToSchool},
	TriggerReject:          {sources: []Status{StatusSent, StatusPending}, target: StatusRejected},
	TriggerDispatch:        {sources: []Status{StatusApproved, StatusDelegatedToSchool}, target: StatusSent},
	TriggerEntityApprove:   {sources: []Status{StatusSent, StatusInProgress}, target: StatusEntityApproved},
	TriggerEntityReject:    {sources: []Status{StatusSent, StatusInProgress}, target: StatusEntityRejected},
	TriggerComplete:        {sources: []Status{StatusEntityApproved}, target: StatusCompleted},
	TriggerCancel:          {sources: []Status{StatusSent, StatusPending, StatusApproved}, target: StatusCancelled},
})

// mustTable rejects a table referencing undefined statuses at package
// initialisation, before any transition can be evaluated.
func mustTable(table map[Trigger]rule) map[Trigger]rule {
	for trig, r := range table {
		if !r.target.Valid() {
			panic(fmt.Sprintf("workflow: trigger %s targets undefined status %q", trig, r.target))
		}
		if len(r.sources) == 0 {
			panic(fmt.Sprintf("workflow: trigger %s has no source statuses", trig))
		}
		for _, src := range r.sources {
			if !src.Valid() {
				panic(fmt.Sprintf("workflow: trigger %s references undefined source status %q", trig, src))
			}
			if src.Terminal() {
				panic(fmt.Sprintf("workflow: trigger %s sources terminal status %q", trig, src))
			}
		}
	}
	return table
}

// ParseTrigger validates a raw trigger name.
func ParseTrigger(raw string) (Trigger, bool) {
	trig := Trigger(raw)
	_, ok := transitions[trig]
	return trig, ok
}

func (r rule) allowsSource(s Status) bool {
	for _, src := range r.sources {
		if src == s {
			return true
		}
	}
	return false
}
