package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusMissed    Status = "missed"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusMissed:
		return true
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	// PatientName is snapshotted at booking time and intentionally not kept
	// in sync with later profile edits.
	PatientName    string
	Date           time.Time // calendar date, midnight UTC
	Time           string    // slot label, e.g. "14:00"
	Clinic         string
	Reason         string
	Notes          *string
	DoctorNotes    *string
	Status         Status
	CreatedBy      *uuid.UUID // staff member who booked on the patient's behalf
	CreatedByStaff bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Message   string
	Type      string
	Link      string
	Read      bool
	CreatedAt time.Time
}

// Filter narrows an appointment query. Nil fields are not applied; Date
// matches one calendar day, From/To bound an inclusive date range.
type Filter struct {
	PatientID *uuid.UUID
	Date      *time.Time
	From      *time.Time
	To        *time.Time
	Clinic    *string
	Status    *Status
}

// FieldChanges is a partial update; nil fields are left untouched.
type FieldChanges struct {
	Date        *time.Time
	Time        *string
	Clinic      *string
	Reason      *string
	Notes       *string
	DoctorNotes *string
}

func (c FieldChanges) Empty() bool {
	return c.Date == nil && c.Time == nil && c.Clinic == nil &&
		c.Reason == nil && c.Notes == nil && c.DoctorNotes == nil
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Staff bool
}
