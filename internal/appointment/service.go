package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/hackgods/turnos-scheduling/internal/events"
	"github.com/hackgods/turnos-scheduling/internal/metrics"
	redisclient "github.com/hackgods/turnos-scheduling/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

var tracer = otel.Tracer("turnos.internal.appointment")

// ProfileLookup resolves display names for the detail view.
type ProfileLookup interface {
	PatientName(ctx context.Context, ref string) (string, error)
	PhysicianName(ctx context.Context, ref string) (string, error)
}

// Deps wires a Service. Only Store and Catalog are required.
type Deps struct {
	Store    Store
	Catalog  *SlotCatalog
	Locker   redisclient.Locker
	Events   events.Publisher
	Profiles ProfileLookup
	Metrics  *metrics.SchedulingMetrics
	Logger   *zap.Logger
	// Location decides what "today" means for past-date checks.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	store    Store
	catalog  *SlotCatalog
	locker   redisclient.Locker
	events   events.Publisher
	profiles ProfileLookup
	metrics  *metrics.SchedulingMetrics
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(d Deps) *Service {
	if d.Store == nil || d.Catalog == nil {
		panic("appointment: store and catalog required")
	}
	s := &Service{
		store:    d.Store,
		catalog:  d.Catalog,
		locker:   d.Locker,
		events:   d.Events,
		profiles: d.Profiles,
		metrics:  d.Metrics,
		log:      d.Logger,
		loc:      d.Location,
		now:      d.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Catalog() *SlotCatalog {
	return s.catalog
}

type BookingRequest struct {
	PatientRef   string
	PhysicianRef string
	Date         time.Time
	Slot         Slot
	Reason       string
	Notes        string
}

// Book admits a booking or returns exactly one typed failure. The store's
// atomic create is the only source of truth for conflicts; availability
// reads done by the caller beforehand are advisory.
func (s *Service) Book(ctx context.Context, req BookingRequest, actor Actor) (Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.book")
	defer span.End()

	start := time.Now()
	appt, err := s.book(ctx, req, actor)
	s.metrics.ObserveBooking(outcome(err), time.Since(start).Seconds())

	span.SetAttributes(
		attribute.String("turnos.physician_ref", req.PhysicianRef),
		attribute.String("turnos.slot", string(req.Slot)),
		attribute.String("turnos.actor_role", string(actor.Role)),
	)
	if err != nil {
		span.RecordError(err)
		s.log.Info("booking rejected",
			zap.String("physician_ref", req.PhysicianRef),
			zap.String("date", req.Date.Format(DateLayout)),
			zap.String("slot", string(req.Slot)),
			zap.String("actor_role", string(actor.Role)),
			zap.Error(err),
		)
		return Appointment{}, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("physician_ref", appt.PhysicianRef),
		zap.String("patient_ref", appt.PatientRef),
		zap.String("date", appt.DateKey()),
		zap.String("slot", string(appt.Slot)),
	)
	s.publish(ctx, EventAppointmentCreated, appt, map[string]any{
		"patient_ref":   appt.PatientRef,
		"physician_ref": appt.PhysicianRef,
		"date":          appt.DateKey(),
		"slot":          appt.Slot,
		"status":        appt.Status,
	})
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest, actor Actor) (Appointment, error) {
	// Patients always book for themselves.
	if actor.Role == RolePatient {
		req.PatientRef = actor.Ref
	}
	if err := Authorize(actor, ActionBook, nil, ""); err != nil {
		return Appointment{}, err
	}

	switch {
	case req.PhysicianRef == "":
		return Appointment{}, &ValidationError{Field: "physician_ref", Reason: "required"}
	case req.PatientRef == "":
		return Appointment{}, &ValidationError{Field: "patient_ref", Reason: "required"}
	case req.Date.IsZero():
		return Appointment{}, &ValidationError{Field: "date", Reason: "required"}
	case req.Slot == "":
		return Appointment{}, &ValidationError{Field: "slot", Reason: "required"}
	}

	date := CivilDate(req.Date, nil)
	if err := s.checkNotPast(date); err != nil {
		return Appointment{}, err
	}
	if !s.catalog.Contains(req.Slot) {
		return Appointment{}, &ValidationError{Field: "slot", Reason: fmt.Sprintf("%s is not offered", req.Slot)}
	}

	candidate := Candidate{
		PatientRef:   req.PatientRef,
		PhysicianRef: req.PhysicianRef,
		Date:         date,
		Slot:         req.Slot,
		Reason:       req.Reason,
		Notes:        req.Notes,
	}

	var (
		created Appointment
		ran     bool
	)
	key := LockKey(candidate.PhysicianRef, date, candidate.Slot)
	err := s.withSlotLock(ctx, key, func(lockCtx context.Context) error {
		ran = true
		appt, err := s.store.Create(lockCtx, candidate)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return Appointment{}, ErrSlotBeingBooked
	case ran:
		return Appointment{}, err
	}

	// The lock backend failed before the critical section ran. The store's
	// own check still rejects double bookings, so carry on without the lock.
	s.log.Warn("slot lock unavailable, booking without it",
		zap.String("lock_key", key),
		zap.Error(err),
	)
	return s.store.Create(ctx, candidate)
}

// LockKey identifies the (physician, date, slot) triple across instances.
func LockKey(physicianRef string, date time.Time, slot Slot) string {
	return fmt.Sprintf("%s:%s:%s", physicianRef, date.Format(DateLayout), slot)
}

func (s *Service) withSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithSlotLock(ctx, key, fn)
}

// ChangeStatus moves an appointment along the lifecycle on behalf of actor.
// Role checks run against the record as locked by the store, so they cannot
// race with a concurrent transition.
func (s *Service) ChangeStatus(ctx context.Context, actor Actor, id uuid.UUID, target Status) (Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.change_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("turnos.appointment_id", id.String()),
		attribute.String("turnos.target_status", string(target)),
		attribute.String("turnos.actor_role", string(actor.Role)),
	)

	if _, err := ParseStatus(string(target)); err != nil {
		span.RecordError(err)
		return Appointment{}, err
	}

	var from Status
	guard := func(current Appointment) error {
		from = current.Status
		return Authorize(actor, ActionChangeStatus, &current, target)
	}

	updated, err := s.store.UpdateStatus(ctx, id, target, guard)
	s.metrics.ObserveStatusChange(string(from), string(target), outcome(err))
	if err != nil {
		span.RecordError(err)
		s.log.Info("status change rejected",
			zap.String("appointment_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.String("actor_role", string(actor.Role)),
			zap.Error(err),
		)
		return Appointment{}, err
	}

	s.log.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
	)
	s.publish(ctx, EventAppointmentStatusChanged, updated, map[string]any{
		"from":       from,
		"to":         updated.Status,
		"actor_role": actor.Role,
	})
	return updated, nil
}

// Get returns a single appointment the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := Authorize(actor, ActionView, &appt, ""); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

// Detail is Get joined with profile names when a lookup is configured. Lookup
// failures leave the names empty.
func (s *Service) Detail(ctx context.Context, actor Actor, id uuid.UUID) (AppointmentDetail, error) {
	appt, err := s.Get(ctx, actor, id)
	if err != nil {
		return AppointmentDetail{}, err
	}
	detail := AppointmentDetail{Appointment: appt}
	if s.profiles == nil {
		return detail, nil
	}
	if name, err := s.profiles.PatientName(ctx, appt.PatientRef); err == nil {
		detail.PatientName = name
	} else {
		s.log.Warn("patient lookup failed", zap.String("patient_ref", appt.PatientRef), zap.Error(err))
	}
	if name, err := s.profiles.PhysicianName(ctx, appt.PhysicianRef); err == nil {
		detail.PhysicianName = name
	} else {
		s.log.Warn("physician lookup failed", zap.String("physician_ref", appt.PhysicianRef), zap.Error(err))
	}
	return detail, nil
}

// Query runs f narrowed to the actor's scope.
func (s *Service) Query(ctx context.Context, actor Actor, f Filter) ([]Appointment, error) {
	if err := Authorize(actor, ActionQuery, nil, ""); err != nil {
		return nil, err
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, &ValidationError{Field: "from", Reason: "must not be after to"}
	}
	f = ScopeFor(actor, Scope{PhysicianRef: f.PhysicianRef, PatientRef: f.PatientRef}).apply(f)
	return s.store.Query(ctx, f)
}

func (s *Service) checkNotPast(date time.Time) error {
	if today := s.today(); date.Before(today) {
		return &ValidationError{
			Field:  "date",
			Reason: fmt.Sprintf("%s is before %s", date.Format(DateLayout), today.Format(DateLayout)),
		}
	}
	return nil
}

func (s *Service) today() time.Time {
	return CivilDate(s.now(), s.loc)
}

func (s *Service) publish(ctx context.Context, eventType string, appt Appointment, payload map[string]any) {
	if s.events == nil {
		return
	}
	ev := events.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		Payload:       payload,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish appointment event",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
