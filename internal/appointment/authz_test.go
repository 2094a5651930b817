package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	pending := &Appointment{PatientRef: "X", PhysicianRef: "1", Status: StatusPending}
	inProgress := &Appointment{PatientRef: "X", PhysicianRef: "1", Status: StatusInProgress}

	cases := []struct {
		name    string
		actor   Actor
		action  Action
		appt    *Appointment
		target  Status
		allowed bool
	}{
		{"secretary anything", secretary, ActionChangeStatus, inProgress, StatusCompleted, true},
		{"patient books", patientX, ActionBook, nil, "", true},
		{"patient without ref", Actor{Role: RolePatient}, ActionBook, nil, "", false},
		{"unknown role", Actor{Role: "admin", Ref: "1"}, ActionQuery, nil, "", false},
		{"patient views own", patientX, ActionView, pending, "", true},
		{"patient views other", patientY, ActionView, pending, "", false},
		{"patient cancels pending", patientX, ActionChangeStatus, pending, StatusCancelled, true},
		{"patient confirms", patientX, ActionChangeStatus, pending, StatusConfirmed, false},
		{"patient cancels in progress", patientX, ActionChangeStatus, inProgress, StatusCancelled, false},
		{"physician own", doctor1, ActionChangeStatus, inProgress, StatusCompleted, true},
		{"physician other", doctor2, ActionView, pending, "", false},
		{"view without appointment", patientX, ActionView, nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.action, tc.appt, tc.target)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestScopeFor(t *testing.T) {
	req := Scope{PhysicianRef: "9", PatientRef: "Q"}

	assert.Equal(t, req, ScopeFor(secretary, req))
	assert.Equal(t, Scope{PhysicianRef: "9", PatientRef: "X"}, ScopeFor(patientX, req))
	assert.Equal(t, Scope{PhysicianRef: "1", PatientRef: "Q"}, ScopeFor(doctor1, req))
}
