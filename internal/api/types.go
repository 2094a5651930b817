package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/turnos-scheduling/internal/appointment"
)

type BookAppointmentRequest struct {
	PhysicianRef string `json:"physician_ref" validate:"required,max=64"`
	PatientRef   string `json:"patient_ref" validate:"omitempty,max=64"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Slot         string `json:"slot" validate:"required,datetime=15:04"`
	Reason       string `json:"reason" validate:"max=500"`
	Notes        string `json:"notes" validate:"max=2000"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed in_progress completed cancelled no_show"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientRef    string    `json:"patient_ref"`
	PhysicianRef  string    `json:"physician_ref"`
	Date          string    `json:"date"`
	Slot          string    `json:"slot"`
	Reason        string    `json:"reason,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	PatientName   string    `json:"patient_name,omitempty"`
	PhysicianName string    `json:"physician_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AppointmentEnvelope struct {
	Success     bool                `json:"success"`
	Appointment AppointmentResponse `json:"appointment"`
}

type AppointmentListEnvelope struct {
	Success      bool                  `json:"success"`
	Count        int                   `json:"count"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type SlotResponse struct {
	Slot string `json:"slot"`
	Free bool   `json:"free"`
}

type AvailabilityEnvelope struct {
	Success      bool           `json:"success"`
	PhysicianRef string         `json:"physician_ref"`
	Date         string         `json:"date"`
	Slots        []SlotResponse `json:"slots"`
}

type CatalogEnvelope struct {
	Success bool     `json:"success"`
	Slots   []string `json:"slots"`
}

type CalendarEnvelope struct {
	Success bool                             `json:"success"`
	Year    int                              `json:"year"`
	Month   int                              `json:"month"`
	Count   int                              `json:"count"`
	Days    map[string][]AppointmentResponse `json:"days"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
}

func toResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientRef:   a.PatientRef,
		PhysicianRef: a.PhysicianRef,
		Date:         a.DateKey(),
		Slot:         string(a.Slot),
		Reason:       a.Reason,
		Notes:        a.Notes,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toResponses(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	return out
}
