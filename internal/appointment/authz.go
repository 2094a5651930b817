package appointment

type Action string

const (
	ActionBook         Action = "book"
	ActionView         Action = "view"
	ActionChangeStatus Action = "change_status"
	ActionQuery        Action = "query"
)

// Scope narrows queries to what an actor is allowed to see.
type Scope struct {
	PhysicianRef string
	PatientRef   string
}

// ScopeFor pins patients and physicians to their own records. Secretaries keep
// whatever narrowing they asked for.
func ScopeFor(actor Actor, requested Scope) Scope {
	switch actor.Role {
	case RolePatient:
		return Scope{PatientRef: actor.Ref, PhysicianRef: requested.PhysicianRef}
	case RolePhysician:
		return Scope{PhysicianRef: actor.Ref, PatientRef: requested.PatientRef}
	}
	return requested
}

func (s Scope) apply(f Filter) Filter {
	if s.PhysicianRef != "" {
		f.PhysicianRef = s.PhysicianRef
	}
	if s.PatientRef != "" {
		f.PatientRef = s.PatientRef
	}
	return f
}

// Authorize is the one role gate in front of booking, viewing and status
// changes. appt is nil for ActionBook and ActionQuery; target is only used for
// ActionChangeStatus.
func Authorize(actor Actor, action Action, appt *Appointment, target Status) error {
	deny := func(reason string) error {
		return &ForbiddenError{Role: actor.Role, Action: action, Reason: reason}
	}

	switch actor.Role {
	case RoleSecretary:
		return nil
	case RolePatient, RolePhysician:
		if actor.Ref == "" {
			return deny("actor has no identity reference")
		}
	default:
		return deny("unknown role")
	}

	if action == ActionBook || action == ActionQuery {
		return nil
	}
	if appt == nil {
		return deny("appointment required")
	}

	if actor.Role == RolePhysician {
		if appt.PhysicianRef != actor.Ref {
			return deny("appointment belongs to another physician")
		}
		return nil
	}

	if appt.PatientRef != actor.Ref {
		return deny("appointment belongs to another patient")
	}
	if action == ActionChangeStatus {
		if target != StatusCancelled {
			return deny("patients may only cancel")
		}
		if appt.Status != StatusPending && appt.Status != StatusConfirmed {
			return deny("only pending or confirmed appointments can be cancelled by the patient")
		}
	}
	return nil
}
