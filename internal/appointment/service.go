package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalink/clinic-scheduler/internal/clinic"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentMissed    = "APPOINTMENT_MISSED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
)

var (
	ErrNotOwner         = errors.New("appointment belongs to another patient")
	ErrNotEditable      = errors.New("only scheduled appointments can be edited")
	ErrPatientForbidden = errors.New("patients may only cancel their own scheduled appointments")
	ErrInvalidStatus    = errors.New("invalid appointment status")
)

// Notifier receives lifecycle events; implementations must be fire-and-forget
// and never propagate their own failures into the calling operation.
type Notifier interface {
	AppointmentChanged(ctx context.Context, a *Appointment, event string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) AppointmentChanged(context.Context, *Appointment, string) {}

// Service owns the appointment lifecycle: creation, edits, status
// transitions, and the automatic expiry sweep. Booking validation is a
// precondition enforced by the caller, not re-run here, so commit and
// validation stay independently testable.
type Service struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	grace    time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, loc *time.Location, grace time.Duration, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if grace <= 0 {
		grace = clinic.GraceWindow
	}
	return &Service{
		store:    store,
		notifier: notifier,
		loc:      loc,
		grace:    grace,
		log:      log,
		now:      time.Now,
	}
}

// CreateInput is the validated booking payload committed by Create.
type CreateInput struct {
	Date   time.Time
	Time   string
	Clinic string
	Reason string
	Notes  *string
}

// Create persists a new scheduled appointment for patientID, snapshotting
// the patient's display name at booking time. When a staff member books on
// the patient's behalf, actingStaffID stamps the provenance fields.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, in CreateInput, actingStaffID *uuid.UUID) (*Appointment, error) {
	patient, err := s.store.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	now := s.now().UTC()
	appt := &Appointment{
		PatientID:      patientID,
		PatientName:    patient.Name,
		Date:           clinic.DateOf(in.Date, time.UTC),
		Time:           in.Time,
		Clinic:         in.Clinic,
		Reason:         in.Reason,
		Notes:          in.Notes,
		Status:         StatusScheduled,
		CreatedBy:      actingStaffID,
		CreatedByStaff: actingStaffID != nil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	id, err := s.store.InsertAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	appt.ID = id

	s.notifier.AppointmentChanged(ctx, appt, EventAppointmentBooked)

	return appt, nil
}

// Update commits detail-field changes. Patients may only edit their own
// appointments and only while scheduled; staff may edit any appointment
// regardless of status. Slot and date constraints must already have been
// validated by the caller.
func (s *Service) Update(ctx context.Context, id uuid.UUID, ch FieldChanges, actor Actor) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !actor.Staff {
		if appt.PatientID != actor.ID {
			return nil, ErrNotOwner
		}
		if appt.Status != StatusScheduled {
			return nil, ErrNotEditable
		}
		// doctor notes are staff-only
		ch.DoctorNotes = nil
	}

	if ch.Date != nil {
		day := clinic.DateOf(*ch.Date, time.UTC)
		ch.Date = &day
	}

	updated, err := s.store.UpdateAppointment(ctx, id, ch, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.notifier.AppointmentChanged(ctx, updated, EventAppointmentUpdated)

	return updated, nil
}

// SetStatus transitions an appointment. Patients may only cancel their own
// scheduled appointment; staff may force any transition (administrative
// override).
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to Status, actor Actor) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, ErrInvalidStatus
	}

	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !actor.Staff {
		if appt.PatientID != actor.ID {
			return nil, ErrNotOwner
		}
		if to != StatusCancelled || appt.Status != StatusScheduled {
			return nil, ErrPatientForbidden
		}
	}

	updated, err := s.store.SetAppointmentStatus(ctx, id, to, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set appointment status: %w", err)
	}

	s.notifier.AppointmentChanged(ctx, updated, statusEvent(to))

	return updated, nil
}

// Delete removes a record entirely. Administrative escape hatch, staff-only
// at the API layer; no business rules apply.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		return err
	}
	s.notifier.AppointmentChanged(ctx, appt, EventAppointmentDeleted)
	return nil
}

// SweepFailure records one appointment the sweep could not transition.
type SweepFailure struct {
	AppointmentID uuid.UUID
	Err           error
}

// SweepResult summarizes one expiry pass.
type SweepResult struct {
	Scanned  int
	Expired  int
	Failures []SweepFailure
}

// SweepExpired transitions overdue scheduled appointments to missed. An
// appointment is overdue once now is strictly past its nominal start plus
// the grace window. The write is conditional on the record still being
// scheduled, so a concurrent cancellation or completion wins. Per-record
// failures are collected and the pass continues; re-running an up-to-date
// sweep produces no writes.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	scheduled := StatusScheduled
	latest := clinic.DateOf(now, s.loc)
	candidates, err := s.store.ListAppointments(ctx, Filter{
		Status: &scheduled,
		To:     &latest,
	})
	if err != nil {
		return res, fmt.Errorf("find sweep candidates: %w", err)
	}
	res.Scanned = len(candidates)

	for _, appt := range candidates {
		start, err := clinic.SlotTime(appt.Date, appt.Time, s.loc)
		if err != nil {
			res.Failures = append(res.Failures, SweepFailure{AppointmentID: appt.ID, Err: err})
			continue
		}
		if !now.After(start.Add(s.grace)) {
			continue
		}

		updated, err := s.store.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusMissed, now.UTC())
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Already moved out of scheduled by someone else.
				continue
			}
			s.log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("sweep transition failed")
			res.Failures = append(res.Failures, SweepFailure{AppointmentID: appt.ID, Err: err})
			continue
		}

		res.Expired++
		s.notifier.AppointmentChanged(ctx, updated, EventAppointmentMissed)
	}

	return res, nil
}

func statusEvent(to Status) string {
	switch to {
	case StatusCancelled:
		return EventAppointmentCancelled
	case StatusCompleted:
		return EventAppointmentCompleted
	case StatusMissed:
		return EventAppointmentMissed
	default:
		return EventAppointmentUpdated
	}
}
