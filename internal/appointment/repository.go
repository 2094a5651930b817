package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrConflict          = errors.New("slot no longer available")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("action not permitted")
	ErrSlotBeingBooked   = fmt.Errorf("%w: slot is currently being booked, please retry", ErrConflict)
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError means another active appointment holds the slot. Callers
// should refresh availability before resubmitting.
type ConflictError struct {
	PhysicianRef string
	Date         time.Time
	Slot         Slot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s on %s for physician %s is no longer available",
		e.Slot, e.Date.Format(DateLayout), e.PhysicianRef)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type TransitionError struct {
	ID   uuid.UUID
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("appointment %s cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type ForbiddenError struct {
	Role   Role
	Action Action
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s may not %s: %s", e.Role, e.Action, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// StatusGuard is evaluated against the current record inside the store's
// critical section, before the transition is checked.
type StatusGuard func(current Appointment) error

// Store is the authoritative appointment ledger. Create and UpdateStatus must
// each run their check and write as one atomic unit.
type Store interface {
	// Create inserts the candidate as pending unless an active appointment
	// already holds (physician, date, slot); then it returns *ConflictError.
	Create(ctx context.Context, c Candidate) (Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (Appointment, error)
	// UpdateStatus applies guard, validates the edge with CheckTransition and
	// writes the new status.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, guard StatusGuard) (Appointment, error)
	// Query returns matches ordered by date, then slot, then insertion.
	Query(ctx context.Context, f Filter) ([]Appointment, error)
}
