package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Store contains all storage interactions needed by the scheduling core.
type Store interface {
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	InsertAppointment(ctx context.Context, a *Appointment) (uuid.UUID, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, ch FieldChanges, updatedAt time.Time) (*Appointment, error)

	// SetAppointmentStatus writes status unconditionally (staff override path).
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, to Status, updatedAt time.Time) (*Appointment, error)

	// UpdateAppointmentStatus only writes when the record still holds the
	// expected status; the sweep relies on this so it cannot resurrect a
	// cancelled or completed appointment as missed.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) (*Appointment, error)

	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	InsertNotification(ctx context.Context, n Notification) error
}
