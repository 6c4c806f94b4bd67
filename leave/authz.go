/*
authz.go - Capability checks for workflow actions

PURPOSE:
  One place that answers "may this actor perform this action on this
  request/step". Role facts come from outside; the core only enforces the
  assigned-approver and requester rules uniformly, instead of each entry
  point re-checking role strings ad hoc.

SEE ALSO:
  - workflow.go: Consults the policy before every transition
  - request.go: Consults the policy on submit/cancel
*/
package leave

// Action names a capability the core guards.
type Action string

const (
	ActionDecideStep    Action = "decide_step"
	ActionCancelRequest Action = "cancel_request"
	ActionSubmitRequest Action = "submit_request"
	ActionAdjustBalance Action = "adjust_balance"
)

// AccessPolicy answers capability questions, resolved once per action.
// Implementations may consult external role/assignment facts; the default
// policy enforces only what the core itself knows.
type AccessPolicy interface {
	Can(actor ActorID, action Action, req *LeaveRequest, step *ApprovalStep) bool
}

// DefaultAccessPolicy enforces the core's invariants:
//   - a step is decidable only by its assigned approver
//   - a request is submittable/cancellable only by its requester
//   - balance adjustments require membership in the admin set
type DefaultAccessPolicy struct {
	// Admins may perform manual balance adjustments.
	Admins map[ActorID]bool
}

func NewDefaultAccessPolicy(admins ...ActorID) *DefaultAccessPolicy {
	p := &DefaultAccessPolicy{Admins: make(map[ActorID]bool, len(admins))}
	for _, a := range admins {
		p.Admins[a] = true
	}
	return p
}

func (p *DefaultAccessPolicy) Can(actor ActorID, action Action, req *LeaveRequest, step *ApprovalStep) bool {
	switch action {
	case ActionDecideStep:
		return step != nil && step.Approver == actor
	case ActionCancelRequest, ActionSubmitRequest:
		return req != nil && ActorID(req.EmployeeID) == actor
	case ActionAdjustBalance:
		return p.Admins[actor]
	default:
		return false
	}
}

var _ AccessPolicy = (*DefaultAccessPolicy)(nil)
