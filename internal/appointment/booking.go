package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentalink/clinic-scheduler/internal/clinic"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// maxScheduledPerPatient caps how many scheduled appointments a patient may
// hold at once, across all dates and clinics.
const maxScheduledPerPatient = 2

// Violations maps a field name to a human-readable reason the booking was
// rejected. An empty map means the booking passed.
type Violations map[string]string

func (v Violations) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "booking rejected: " + strings.Join(parts, "; ")
}

// BookingInput carries everything the validator needs to judge a create or
// edit attempt.
type BookingInput struct {
	PatientID uuid.UUID
	Date      time.Time
	Time      string
	Clinic    string
	Reason    string
	Mode      Mode
	// ExcludeID is the appointment being edited; its own row is ignored by
	// the per-date exclusivity check.
	ExcludeID *uuid.UUID
	// KeepTime is the slot the edited appointment currently holds.
	KeepTime string
}

// BookingValidator is the authoritative gate in front of the lifecycle
// manager. UI slot pre-filtering is advisory only; every submission passes
// through here again.
type BookingValidator struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

func NewBookingValidator(store Store, loc *time.Location) *BookingValidator {
	return &BookingValidator{
		store: store,
		loc:   loc,
		now:   time.Now,
	}
}

// Validate checks a booking attempt and returns the violations found, if
// any. Local checks (presence, date sanity) are reported together; the
// storage-backed checks run sequentially and stop at the first failure to
// avoid redundant reads. A non-nil error means a check could not be run at
// all (storage failure), not that the booking is invalid.
func (bv *BookingValidator) Validate(ctx context.Context, in BookingInput) (Violations, error) {
	v := Violations{}

	if strings.TrimSpace(in.Reason) == "" {
		v["reason"] = "reason is required"
	}
	if in.Clinic == "" {
		v["clinic"] = "clinic is required"
	} else if !clinic.ValidClinic(in.Clinic) {
		v["clinic"] = "unknown clinic"
	}
	if in.Date.IsZero() {
		v["date"] = "date is required"
	}
	if in.Time == "" {
		v["time"] = "time is required"
	} else if !clinic.ValidSlot(in.Time) {
		v["time"] = "unknown time slot"
	}
	if len(v) > 0 {
		return v, nil
	}

	now := bv.now()
	day := clinic.DateOf(in.Date, time.UTC)
	today := clinic.DateOf(now, bv.loc)
	switch {
	case day.Before(today):
		v["date"] = "date cannot be in the past"
	case day.Equal(today):
		v["date"] = "appointments must be booked at least one day in advance"
	case day.Weekday() == time.Sunday:
		v["date"] = "the clinic is closed on Sundays"
	}
	if len(v) > 0 {
		return v, nil
	}

	scheduled := StatusScheduled

	if in.Mode == ModeCreate {
		existing, err := bv.store.ListAppointments(ctx, Filter{
			PatientID: &in.PatientID,
			Status:    &scheduled,
		})
		if err != nil {
			return nil, fmt.Errorf("count scheduled appointments: %w", err)
		}
		if len(existing) >= maxScheduledPerPatient {
			v["patient"] = fmt.Sprintf("you already have %d scheduled appointments", maxScheduledPerPatient)
			return v, nil
		}
	}

	sameDay, err := bv.store.ListAppointments(ctx, Filter{
		PatientID: &in.PatientID,
		Date:      &day,
		Status:    &scheduled,
	})
	if err != nil {
		return nil, fmt.Errorf("check same-day appointments: %w", err)
	}
	for _, a := range sameDay {
		if in.ExcludeID != nil && a.ID == *in.ExcludeID {
			continue
		}
		v["date"] = "you already have an appointment on this date"
		return v, nil
	}

	open, err := ResolveAvailableSlots(ctx, bv.store, day, in.Clinic, in.KeepTime)
	if err != nil {
		return nil, fmt.Errorf("resolve slot availability: %w", err)
	}
	available := false
	for _, label := range open {
		if label == in.Time {
			available = true
			break
		}
	}
	if !available {
		v["time"] = "this time slot is fully booked"
		return v, nil
	}

	return v, nil
}
