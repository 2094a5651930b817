package appointment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

func TestCanTransitionTable(t *testing.T) {
	legal := map[Status]map[Status]bool{
		StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:  {StatusInProgress: true, StatusCancelled: true, StatusNoShow: true},
		StatusInProgress: {StatusCompleted: true, StatusCancelled: true},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
		assert.Equal(t, want, IsTerminal(s), s)
		if want {
			assert.Empty(t, NextStatuses(s))
		}
	}
	assert.False(t, IsTerminal("bogus"))
}

func TestCheckTransitionError(t *testing.T) {
	a := Appointment{ID: uuid.New(), Status: StatusPending}

	err := CheckTransition(a, StatusInProgress)
	var te *TransitionError
	if assert.True(t, errors.As(err, &te)) {
		assert.Equal(t, StatusPending, te.From)
		assert.Equal(t, StatusInProgress, te.To)
	}
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, CheckTransition(a, StatusConfirmed))
}

func TestParseStatus(t *testing.T) {
	for _, s := range allStatuses {
		got, err := ParseStatus(string(s))
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, bad := range []string{"", "pendiente", "PENDING", "expired"} {
		_, err := ParseStatus(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestNextStatusesIsCopy(t *testing.T) {
	next := NextStatuses(StatusPending)
	next[0] = StatusCompleted
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
}
