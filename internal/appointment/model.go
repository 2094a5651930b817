package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	SlotLayout = "15:04"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// ParseStatus accepts only the canonical status names.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

type Role string

const (
	RolePatient   Role = "patient"
	RolePhysician Role = "physician"
	RoleSecretary Role = "secretary"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RolePhysician, RoleSecretary:
		return r, nil
	}
	return "", &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", s)}
}

// Actor is the already-authenticated caller. Ref is the patientRef for patients
// and the physicianRef for physicians; secretaries may leave it empty.
type Actor struct {
	Role Role
	Ref  string
}

type Appointment struct {
	ID           uuid.UUID
	PatientRef   string
	PhysicianRef string
	Date         time.Time
	Slot         Slot
	Reason       string
	Notes        string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DateKey returns the ISO date the appointment is booked for.
func (a Appointment) DateKey() string {
	return a.Date.Format(DateLayout)
}

// Active reports whether the appointment still occupies its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Candidate is what the store receives for insertion.
type Candidate struct {
	PatientRef   string
	PhysicianRef string
	Date         time.Time
	Slot         Slot
	Reason       string
	Notes        string
}

// Filter is a conjunction; zero-valued fields are unconstrained.
type Filter struct {
	PhysicianRef string
	PatientRef   string
	Date         *time.Time
	From         *time.Time
	To           *time.Time
}

func (f Filter) matches(a *Appointment) bool {
	if f.PhysicianRef != "" && a.PhysicianRef != f.PhysicianRef {
		return false
	}
	if f.PatientRef != "" && a.PatientRef != f.PatientRef {
		return false
	}
	if f.Date != nil && !a.Date.Equal(*f.Date) {
		return false
	}
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && a.Date.After(*f.To) {
		return false
	}
	return true
}

// ParseDate parses an ISO date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return d, nil
}

// CivilDate drops the time of day of t as observed in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type AppointmentDetail struct {
	Appointment
	PatientName   string
	PhysicianName string
}
