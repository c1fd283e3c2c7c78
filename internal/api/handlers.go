package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
	"github.com/dentalink/clinic-scheduler/internal/clinic"
	redisclient "github.com/dentalink/clinic-scheduler/internal/redis"
	"github.com/dentalink/clinic-scheduler/internal/report"
)

type Handlers struct {
	store    appointment.Store
	svc      *appointment.Service
	booking  *appointment.BookingValidator
	locker   redisclient.Locker
	validate *validator.Validate
}

func NewHandlers(store appointment.Store, svc *appointment.Service, booking *appointment.BookingValidator, locker redisclient.Locker) *Handlers {
	return &Handlers{
		store:    store,
		svc:      svc,
		booking:  booking,
		locker:   locker,
		validate: validator.New(),
	}
}

func (h *Handlers) listAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clinicID := q.Get("clinic")

	var date time.Time
	if raw := q.Get("date"); raw != "" {
		parsed, err := time.Parse(clinic.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	slots, err := appointment.ResolveAvailableSlots(r.Context(), h.store, date, clinicID, q.Get("keep_time"))

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Date:     q.Get("date"),
		Clinic:   clinicID,
		Slots:    slots,
		Degraded: err != nil,
	})
}

func (h *Handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "login required")
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	patientID := actor.ID
	var actingStaffID *uuid.UUID
	if actor.Staff {
		if req.PatientID == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_id", "staff bookings must name the patient")
			return
		}
		parsed, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		patientID = parsed
		staffID := actor.ID
		actingStaffID = &staffID
	}

	date, err := time.Parse(clinic.DateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	in := appointment.BookingInput{
		PatientID: patientID,
		Date:      date,
		Time:      req.Time,
		Clinic:    req.Clinic,
		Reason:    req.Reason,
		Mode:      appointment.ModeCreate,
	}

	var (
		created    *appointment.Appointment
		violations appointment.Violations
	)
	err = h.locker.WithSlotLock(r.Context(), date, req.Time, req.Clinic, func(ctx context.Context) error {
		v, err := h.booking.Validate(ctx, in)
		if err != nil {
			return err
		}
		if len(v) > 0 {
			violations = v
			return v
		}

		created, err = h.svc.Create(ctx, patientID, appointment.CreateInput{
			Date:   date,
			Time:   req.Time,
			Clinic: req.Clinic,
			Reason: req.Reason,
			Notes:  req.Notes,
		}, actingStaffID)
		return err
	})
	if err != nil {
		if len(violations) > 0 {
			writeViolations(w, violations)
			return
		}
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(created, actor.Staff))
}

func (h *Handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "login required")
		return
	}

	q := r.URL.Query()
	var f appointment.Filter

	// Patients only ever see their own appointments.
	if actor.Staff {
		if raw := q.Get("patient_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			f.PatientID = &id
		}
	} else {
		id := actor.ID
		f.PatientID = &id
	}

	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse(clinic.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		f.Date = &d
	}
	if raw := q.Get("clinic"); raw != "" {
		f.Clinic = &raw
	}
	if raw := q.Get("status"); raw != "" {
		st := appointment.Status(raw)
		if !appointment.ValidStatus(st) {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
			return
		}
		f.Status = &st
	}

	appts, err := h.store.ListAppointments(r.Context(), f)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i], actor.Staff))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "login required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.store.GetAppointmentByID(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if !actor.Staff && appt.PatientID != actor.ID {
		writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, actor.Staff))
}

func (h *Handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "login required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	existing, err := h.store.GetAppointmentByID(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if !actor.Staff && existing.PatientID != actor.ID {
		writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
		return
	}

	ch := appointment.FieldChanges{
		Time:        req.Time,
		Clinic:      req.Clinic,
		Reason:      req.Reason,
		Notes:       req.Notes,
		DoctorNotes: req.DoctorNotes,
	}
	if req.Date != nil {
		d, err := time.Parse(clinic.DateLayout, *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		ch.Date = &d
	}
	if ch.Empty() {
		writeError(w, http.StatusBadRequest, "empty_update", "no fields to update")
		return
	}

	// The booking rules only apply when the schedule itself moves.
	reschedule := ch.Date != nil || ch.Time != nil || ch.Clinic != nil

	target := *existing
	if ch.Date != nil {
		target.Date = *ch.Date
	}
	if ch.Time != nil {
		target.Time = *ch.Time
	}
	if ch.Clinic != nil {
		target.Clinic = *ch.Clinic
	}
	reason := existing.Reason
	if ch.Reason != nil {
		reason = *ch.Reason
	}

	var (
		updated    *appointment.Appointment
		violations appointment.Violations
	)
	commit := func(ctx context.Context) error {
		if reschedule {
			v, err := h.booking.Validate(ctx, appointment.BookingInput{
				PatientID: existing.PatientID,
				Date:      target.Date,
				Time:      target.Time,
				Clinic:    target.Clinic,
				Reason:    reason,
				Mode:      appointment.ModeEdit,
				ExcludeID: &existing.ID,
				KeepTime:  existing.Time,
			})
			if err != nil {
				return err
			}
			if len(v) > 0 {
				violations = v
				return v
			}
		}
		var err error
		updated, err = h.svc.Update(ctx, id, ch, actor)
		return err
	}

	if reschedule {
		err = h.locker.WithSlotLock(r.Context(), target.Date, target.Time, target.Clinic, commit)
	} else {
		err = commit(r.Context())
	}
	if err != nil {
		if len(violations) > 0 {
			writeViolations(w, violations)
			return
		}
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(updated, actor.Staff))
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "login required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	updated, err := h.svc.SetStatus(r.Context(), id, appointment.Status(req.Status), actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(updated, actor.Staff))
}

func (h *Handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok || !actor.Staff {
		writeError(w, http.StatusForbidden, "staff_only", "only staff may delete appointments")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) reportSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok || !actor.Staff {
		writeError(w, http.StatusForbidden, "staff_only", "reports are staff-only")
		return
	}

	q := r.URL.Query()
	var f appointment.Filter

	if raw := q.Get("from"); raw != "" {
		d, err := time.Parse(clinic.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
			return
		}
		f.From = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := time.Parse(clinic.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD")
			return
		}
		f.To = &d
	}
	if raw := q.Get("clinic"); raw != "" {
		f.Clinic = &raw
	}
	if raw := q.Get("status"); raw != "" {
		st := appointment.Status(raw)
		if !appointment.ValidStatus(st) {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
			return
		}
		f.Status = &st
	}

	appts, err := h.store.ListAppointments(r.Context(), f)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	items := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, toAppointmentResponse(&appts[i], true))
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		Summary: report.Aggregate(appts),
		Items:   items,
	})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var violations appointment.Violations
	switch {
	case errors.As(err, &violations):
		writeViolations(w, violations)
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", "patient not found")
	case errors.Is(err, appointment.ErrNotOwner):
		writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
	case errors.Is(err, appointment.ErrNotEditable):
		writeError(w, http.StatusConflict, "not_editable", "only scheduled appointments can be edited")
	case errors.Is(err, appointment.ErrPatientForbidden):
		writeError(w, http.StatusForbidden, "forbidden_transition", "patients may only cancel their own scheduled appointments")
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
	}
}
