package appointment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// CalendarIndex maps every ISO date of a month to its appointments in date,
// slot, insertion order. Days without appointments map to an empty slice.
type CalendarIndex struct {
	Year  int
	Month time.Month
	Days  map[string][]Appointment
}

// Dates returns the month's ISO dates in calendar order.
func (c CalendarIndex) Dates() []string {
	first := time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, 0, 31)
	for d := first; d.Month() == c.Month; d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}

// Count is the total number of appointments in the index.
func (c CalendarIndex) Count() int {
	n := 0
	for _, day := range c.Days {
		n += len(day)
	}
	return n
}

// MonthBounds returns the first and last day of the month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// MonthView builds the calendar for one month with a single range query.
func (s *Service) MonthView(ctx context.Context, actor Actor, year int, month time.Month, requested Scope) (CalendarIndex, error) {
	ctx, span := tracer.Start(ctx, "appointment.month_view")
	defer span.End()
	span.SetAttributes(
		attribute.Int("turnos.year", year),
		attribute.Int("turnos.month", int(month)),
		attribute.String("turnos.actor_role", string(actor.Role)),
	)

	if month < time.January || month > time.December {
		return CalendarIndex{}, &ValidationError{Field: "month", Reason: fmt.Sprintf("%d is not between 1 and 12", month)}
	}
	if year < 1 || year > 9999 {
		return CalendarIndex{}, &ValidationError{Field: "year", Reason: fmt.Sprintf("%d is out of range", year)}
	}

	first, last := MonthBounds(year, month)
	appts, err := s.Query(ctx, actor, Filter{
		PhysicianRef: requested.PhysicianRef,
		PatientRef:   requested.PatientRef,
		From:         &first,
		To:           &last,
	})
	if err != nil {
		span.RecordError(err)
		return CalendarIndex{}, err
	}

	idx := CalendarIndex{Year: year, Month: month, Days: make(map[string][]Appointment, last.Day())}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		idx.Days[d.Format(DateLayout)] = []Appointment{}
	}
	for _, a := range appts {
		key := a.DateKey()
		idx.Days[key] = append(idx.Days[key], a)
	}
	return idx, nil
}
