package appointment

import (
	"context"
	"time"
)

type SlotAvailability struct {
	Slot Slot
	Free bool
}

// DayAvailability lists every catalog slot for the physician's day with its
// free flag. It is advisory: Book re-checks inside the store. Past days are
// rejected the same way Book rejects them.
func (s *Service) DayAvailability(ctx context.Context, physicianRef string, date time.Time) ([]SlotAvailability, error) {
	if physicianRef == "" {
		return nil, &ValidationError{Field: "physician_ref", Reason: "required"}
	}
	if date.IsZero() {
		return nil, &ValidationError{Field: "date", Reason: "required"}
	}

	day := CivilDate(date, nil)
	if err := s.checkNotPast(day); err != nil {
		return nil, err
	}
	booked, err := s.store.Query(ctx, Filter{PhysicianRef: physicianRef, Date: &day})
	if err != nil {
		return nil, err
	}

	taken := make(map[Slot]struct{}, len(booked))
	for _, a := range booked {
		if a.Active() {
			taken[a.Slot] = struct{}{}
		}
	}

	view := make([]SlotAvailability, 0, s.catalog.Len())
	for _, slot := range s.catalog.slots {
		_, occupied := taken[slot]
		view = append(view, SlotAvailability{Slot: slot, Free: !occupied})
	}
	return view, nil
}

// AvailableSlots returns only the free slots, in catalog order.
func (s *Service) AvailableSlots(ctx context.Context, physicianRef string, date time.Time) ([]Slot, error) {
	view, err := s.DayAvailability(ctx, physicianRef, date)
	if err != nil {
		return nil, err
	}
	free := make([]Slot, 0, len(view))
	for _, v := range view {
		if v.Free {
			free = append(free, v.Slot)
		}
	}
	return free, nil
}
