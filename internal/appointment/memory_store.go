package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotKey struct {
	physicianRef string
	date         string
	slot         Slot
}

type dayKey struct {
	physicianRef string
	date         string
}

type record struct {
	appt Appointment
	seq  uint64
}

// MemoryStore is an in-process ledger guarded by a single RWMutex. Records are
// never removed; cancellation only releases the slot in the active index.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*record
	active  map[slotKey]uuid.UUID  // occupied slot -> appointment id
	byDay   map[dayKey][]uuid.UUID // physician+date -> ids in insertion order
	seq     uint64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*record),
		active:  make(map[slotKey]uuid.UUID),
		byDay:   make(map[dayKey][]uuid.UUID),
		now:     time.Now,
	}
}

func keyOf(physicianRef string, date time.Time, slot Slot) slotKey {
	return slotKey{physicianRef: physicianRef, date: date.Format(DateLayout), slot: slot}
}

func (m *MemoryStore) Create(_ context.Context, c Candidate) (Appointment, error) {
	key := keyOf(c.PhysicianRef, c.Date, c.Slot)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.active[key]; taken {
		return Appointment{}, &ConflictError{PhysicianRef: c.PhysicianRef, Date: c.Date, Slot: c.Slot}
	}

	now := m.now().UTC()
	m.seq++
	rec := &record{
		seq: m.seq,
		appt: Appointment{
			ID:           uuid.New(),
			PatientRef:   c.PatientRef,
			PhysicianRef: c.PhysicianRef,
			Date:         c.Date,
			Slot:         c.Slot,
			Reason:       c.Reason,
			Notes:        c.Notes,
			Status:       StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}

	m.records[rec.appt.ID] = rec
	m.active[key] = rec.appt.ID
	day := dayKey{physicianRef: key.physicianRef, date: key.date}
	m.byDay[day] = append(m.byDay[day], rec.appt.ID)

	return rec.appt, nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return rec.appt, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, to Status, guard StatusGuard) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if guard != nil {
		if err := guard(rec.appt); err != nil {
			return Appointment{}, err
		}
	}
	if err := CheckTransition(rec.appt, to); err != nil {
		return Appointment{}, err
	}

	rec.appt.Status = to
	rec.appt.UpdatedAt = m.now().UTC()
	if to == StatusCancelled {
		key := keyOf(rec.appt.PhysicianRef, rec.appt.Date, rec.appt.Slot)
		if m.active[key] == id {
			delete(m.active, key)
		}
	}
	return rec.appt, nil
}

func (m *MemoryStore) Query(_ context.Context, f Filter) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*record
	if f.PhysicianRef != "" && f.Date != nil {
		// Day lookups stay proportional to that physician's day.
		for _, id := range m.byDay[dayKey{physicianRef: f.PhysicianRef, date: f.Date.Format(DateLayout)}] {
			if rec := m.records[id]; f.matches(&rec.appt) {
				matched = append(matched, rec)
			}
		}
	} else {
		for _, rec := range m.records {
			if f.matches(&rec.appt) {
				matched = append(matched, rec)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.appt.Date.Equal(b.appt.Date) {
			return a.appt.Date.Before(b.appt.Date)
		}
		if a.appt.Slot != b.appt.Slot {
			return a.appt.Slot < b.appt.Slot
		}
		return a.seq < b.seq
	})

	out := make([]Appointment, len(matched))
	for i, rec := range matched {
		out[i] = rec.appt
	}
	return out, nil
}
