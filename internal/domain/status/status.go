// internal/domain/status/status.go

// Package status defines the student daily-lifecycle status and its legal
// transitions. The table is the single source of truth for ordinary
// transitions; the force-close override (any non-terminal state may be moved
// to PICKUP_COMPLETED by staff) lives in the lifecycle service, not here.
package status

// Status is a student's position in the daily pickup lifecycle.
type Status string

const (
	// NotArrived is the start-of-day status every student is reset to.
	NotArrived Status = "NOT_ARRIVED"
	// Arrived means the student has checked in at the institution.
	Arrived Status = "ARRIVED"
	// ReadyForPickup means the student finished the day's work.
	ReadyForPickup Status = "READY_FOR_PICKUP"
	// HomeworkPending means the student needs more time before pickup.
	HomeworkPending Status = "HOMEWORK_PENDING"
	// ParentEnRoute is entered only through pickup initiation, never through
	// the generic status-update operation.
	ParentEnRoute Status = "PARENT_EN_ROUTE"
	// PickupCompleted is terminal until the daily reset.
	PickupCompleted Status = "PICKUP_COMPLETED"
)

// transitions maps each status to its legal targets.
var transitions = map[Status][]Status{
	NotArrived:      {Arrived},
	Arrived:         {ReadyForPickup, HomeworkPending, PickupCompleted},
	HomeworkPending: {ReadyForPickup},
	ReadyForPickup:  {PickupCompleted},
	ParentEnRoute:   {PickupCompleted},
	PickupCompleted: {},
}

// All lists every status, in lifecycle order.
func All() []Status {
	return []Status{NotArrived, Arrived, ReadyForPickup, HomeworkPending, ParentEnRoute, PickupCompleted}
}

// IsValid reports whether s is one of the defined statuses.
func IsValid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from → to is listed in the transition table.
// It is total over status pairs: unknown statuses simply have no targets.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s admits no further table transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0 && IsValid(s)
}

// PickupEligible reports whether a guardian may initiate a pickup while the
// student holds s.
func PickupEligible(s Status) bool {
	switch s {
	case Arrived, ReadyForPickup, HomeworkPending:
		return true
	}
	return false
}
