package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
	"github.com/dentalink/clinic-scheduler/internal/clinic"
	"github.com/dentalink/clinic-scheduler/internal/report"
)

type CreateAppointmentRequest struct {
	// PatientID is only honored for staff callers booking on a patient's
	// behalf; patients always book for themselves.
	PatientID string  `json:"patient_id,omitempty" validate:"omitempty,uuid4"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string  `json:"time" validate:"required"`
	Clinic    string  `json:"clinic" validate:"required"`
	Reason    string  `json:"reason" validate:"required"`
	Notes     *string `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	Date        *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time        *string `json:"time,omitempty"`
	Clinic      *string `json:"clinic,omitempty"`
	Reason      *string `json:"reason,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	DoctorNotes *string `json:"doctor_notes,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled completed cancelled missed"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	PatientName    string     `json:"patient_name"`
	Date           string     `json:"date"`
	Time           string     `json:"time"`
	Clinic         string     `json:"clinic"`
	Reason         string     `json:"reason"`
	Notes          *string    `json:"notes,omitempty"`
	DoctorNotes    *string    `json:"doctor_notes,omitempty"`
	Status         string     `json:"status"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	CreatedByStaff bool       `json:"created_by_staff,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment, staffView bool) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		PatientName:    a.PatientName,
		Date:           a.Date.UTC().Format(clinic.DateLayout),
		Time:           a.Time,
		Clinic:         a.Clinic,
		Reason:         a.Reason,
		Notes:          a.Notes,
		Status:         string(a.Status),
		CreatedBy:      a.CreatedBy,
		CreatedByStaff: a.CreatedByStaff,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if staffView {
		resp.DoctorNotes = a.DoctorNotes
	}
	return resp
}

type AvailabilityResponse struct {
	Date   string   `json:"date"`
	Clinic string   `json:"clinic"`
	Slots  []string `json:"slots"`
	// Degraded is set when availability could not be read and the full slot
	// list was returned as a fallback.
	Degraded bool `json:"degraded,omitempty"`
}

type ReportResponse struct {
	Summary report.Summary        `json:"summary"`
	Items   []AppointmentResponse `json:"items"`
}

type ErrorResponse struct {
	Error      string            `json:"error"`
	Details    string            `json:"details,omitempty"`
	Violations map[string]string `json:"violations,omitempty"`
}
