package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/turnos-scheduling/internal/appointment"
)

func catalogHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots := svc.Catalog().Slots()
		out := make([]string, len(slots))
		for i, s := range slots {
			out[i] = string(s)
		}
		writeJSON(w, http.StatusOK, CatalogEnvelope{Success: true, Slots: out})
	}
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianRef := chi.URLParam(r, "physicianRef")
		date, err := appointment.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		view, err := svc.DayAvailability(r.Context(), physicianRef, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		slots := make([]SlotResponse, 0, len(view))
		for _, v := range view {
			slots = append(slots, SlotResponse{Slot: string(v.Slot), Free: v.Free})
		}
		writeJSON(w, http.StatusOK, AvailabilityEnvelope{
			Success:      true,
			PhysicianRef: physicianRef,
			Date:         date.Format(appointment.DateLayout),
			Slots:        slots,
		})
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}

		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		slot, err := appointment.ParseSlot(req.Slot)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookingRequest{
			PatientRef:   req.PatientRef,
			PhysicianRef: req.PhysicianRef,
			Date:         date,
			Slot:         slot,
			Reason:       req.Reason,
			Notes:        req.Notes,
		}, actorFrom(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, AppointmentEnvelope{Success: true, Appointment: toResponse(appt)})
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := appointment.Filter{
			PhysicianRef: q.Get("physician"),
			PatientRef:   q.Get("patient"),
		}

		var err error
		if f.Date, err = optionalDate(q.Get("date")); err != nil {
			writeServiceError(w, err)
			return
		}
		if f.From, err = optionalDate(q.Get("from")); err != nil {
			writeServiceError(w, err)
			return
		}
		if f.To, err = optionalDate(q.Get("to")); err != nil {
			writeServiceError(w, err)
			return
		}

		list, err := svc.Query(r.Context(), actorFrom(r.Context()), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListEnvelope{
			Success:      true,
			Count:        len(list),
			Appointments: toResponses(list),
		})
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.Detail(r.Context(), actorFrom(r.Context()), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := toResponse(detail.Appointment)
		resp.PatientName = detail.PatientName
		resp.PhysicianName = detail.PhysicianName
		writeJSON(w, http.StatusOK, AppointmentEnvelope{Success: true, Appointment: resp})
	}
}

func changeStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ChangeStatusRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), actorFrom(r.Context()), id, appointment.Status(req.Status))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentEnvelope{Success: true, Appointment: toResponse(appt)})
	}
}

func calendarHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := strconv.Atoi(chi.URLParam(r, "year"))
		if err != nil {
			writeServiceError(w, &appointment.ValidationError{Field: "year", Reason: "must be a number"})
			return
		}
		month, err := strconv.Atoi(chi.URLParam(r, "month"))
		if err != nil {
			writeServiceError(w, &appointment.ValidationError{Field: "month", Reason: "must be a number"})
			return
		}

		q := r.URL.Query()
		idx, err := svc.MonthView(r.Context(), actorFrom(r.Context()), year, time.Month(month), appointment.Scope{
			PhysicianRef: q.Get("physician"),
			PatientRef:   q.Get("patient"),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		days := make(map[string][]AppointmentResponse, len(idx.Days))
		for date, list := range idx.Days {
			days[date] = toResponses(list)
		}
		writeJSON(w, http.StatusOK, CalendarEnvelope{
			Success: true,
			Year:    idx.Year,
			Month:   int(idx.Month),
			Count:   idx.Count(),
			Days:    days,
		})
	}
}

func optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := appointment.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// writeServiceError maps the appointment error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, reason string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: code, Reason: reason})
}
