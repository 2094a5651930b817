package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func candidate(physician, patient, date string, slot Slot) Candidate {
	return Candidate{PhysicianRef: physician, PatientRef: patient, Date: day(date), Slot: slot}
}

func TestMemoryStoreCreateAndConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := store.Create(ctx, candidate("1", "X", "2025-03-10", "08:00"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = store.Create(ctx, candidate("1", "Y", "2025-03-10", "08:00"))
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, Slot("08:00"), ce.Slot)
	assert.ErrorIs(t, err, ErrConflict)

	// Different physician, date or slot is fine.
	_, err = store.Create(ctx, candidate("2", "Y", "2025-03-10", "08:00"))
	require.NoError(t, err)
	_, err = store.Create(ctx, candidate("1", "Y", "2025-03-11", "08:00"))
	require.NoError(t, err)
	_, err = store.Create(ctx, candidate("1", "Y", "2025-03-10", "08:30"))
	require.NoError(t, err)
}

func TestMemoryStoreCancelReleasesSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := store.Create(ctx, candidate("1", "X", "2025-03-10", "08:00"))
	require.NoError(t, err)

	cancelled, err := store.UpdateStatus(ctx, a.ID, StatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	b, err := store.Create(ctx, candidate("1", "Y", "2025-03-10", "08:00"))
	require.NoError(t, err)

	// History is kept: both records remain queryable.
	d := day("2025-03-10")
	all, err := store.Query(ctx, Filter{PhysicianRef: "1", Date: &d})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID, "insertion order breaks ties")
	assert.Equal(t, b.ID, all[1].ID)
}

func TestMemoryStoreCompletedKeepsSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := store.Create(ctx, candidate("1", "X", "2025-03-10", "08:00"))
	require.NoError(t, err)
	for _, s := range []Status{StatusConfirmed, StatusInProgress, StatusCompleted} {
		_, err = store.UpdateStatus(ctx, a.ID, s, nil)
		require.NoError(t, err)
	}

	_, err = store.Create(ctx, candidate("1", "Y", "2025-03-10", "08:00"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreUpdateStatusErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.UpdateStatus(ctx, uuid.New(), StatusConfirmed, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := store.Create(ctx, candidate("1", "X", "2025-03-10", "08:00"))
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, a.ID, StatusCompleted, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	denied := errors.New("denied")
	_, err = store.UpdateStatus(ctx, a.ID, StatusConfirmed, func(Appointment) error { return denied })
	assert.ErrorIs(t, err, denied)

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status, "failed updates leave state unchanged")
}

func TestMemoryStoreQueryFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	mustCreate := func(c Candidate) Appointment {
		a, err := store.Create(ctx, c)
		require.NoError(t, err)
		return a
	}
	late := mustCreate(candidate("1", "X", "2025-03-12", "09:00"))
	early := mustCreate(candidate("1", "Y", "2025-03-10", "10:00"))
	earlier := mustCreate(candidate("1", "X", "2025-03-10", "08:30"))
	other := mustCreate(candidate("2", "X", "2025-03-11", "08:00"))

	all, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{earlier.ID, early.ID, other.ID, late.ID}, ids(all))

	byPatient, err := store.Query(ctx, Filter{PatientRef: "X"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{earlier.ID, other.ID, late.ID}, ids(byPatient))

	from, to := day("2025-03-11"), day("2025-03-12")
	ranged, err := store.Query(ctx, Filter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{other.ID, late.ID}, ids(ranged))

	combo, err := store.Query(ctx, Filter{PhysicianRef: "1", PatientRef: "X", To: &from})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{earlier.ID}, ids(combo))

	none, err := store.Query(ctx, Filter{PhysicianRef: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := store.Create(ctx, candidate("1", "X", "2025-03-10", "08:00"))
	require.NoError(t, err)

	list, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	list[0].Status = StatusCompleted

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestMemoryStoreConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const attempts = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Create(ctx, candidate("1", uuid.NewString(), "2025-03-10", "08:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}

func ids(list []Appointment) []uuid.UUID {
	out := make([]uuid.UUID, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
