// Package clinic holds the static booking calendar shared by every other
// component: the fixed daily slot grid, the clinic roster, and the date
// predicate that decides whether a day can be booked at all.
package clinic

import (
	"fmt"
	"time"
)

const (
	// SlotCapacity is the number of scheduled appointments allowed at one
	// (date, time, clinic) triple.
	SlotCapacity = 2

	// GraceWindow is how long after an appointment's nominal start it stays
	// eligible to be completed before the sweep marks it missed.
	GraceWindow = 2 * time.Hour

	// DateLayout is the wire format for appointment dates.
	DateLayout = "2006-01-02"

	slotLayout = "15:04"
)

// slotLabels is ordered; availability results must come back in this order.
var slotLabels = []string{
	"08:00",
	"09:00",
	"10:00",
	"11:00",
	"13:00",
	"14:00",
	"15:00",
}

var clinicIDs = []string{
	"san-salvador",
	"santa-tecla",
	"santa-ana",
	"san-miguel",
	"sonsonate",
}

// Slots returns the fixed daily slot labels in calendar order.
func Slots() []string {
	out := make([]string, len(slotLabels))
	copy(out, slotLabels)
	return out
}

// Clinics returns the identifiers of all clinics in the network.
func Clinics() []string {
	out := make([]string, len(clinicIDs))
	copy(out, clinicIDs)
	return out
}

func ValidSlot(label string) bool {
	for _, s := range slotLabels {
		if s == label {
			return true
		}
	}
	return false
}

func ValidClinic(id string) bool {
	for _, c := range clinicIDs {
		if c == id {
			return true
		}
	}
	return false
}

// DateOf normalizes an instant to its calendar date in loc, represented as
// midnight UTC. All stored appointment dates use this representation.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBookable reports whether date may hold a new or rescheduled appointment:
// it must not be a Sunday and must fall strictly after now's calendar date in
// the clinic timezone.
func IsBookable(date, now time.Time, loc *time.Location) bool {
	d := DateOf(date, time.UTC)
	if d.Weekday() == time.Sunday {
		return false
	}
	return d.After(DateOf(now, loc))
}

// SlotTime resolves a stored date plus a slot label to the appointment's
// nominal start instant in the clinic timezone.
func SlotTime(date time.Time, label string, loc *time.Location) (time.Time, error) {
	if !ValidSlot(label) {
		return time.Time{}, fmt.Errorf("unknown slot label %q", label)
	}
	hm, err := time.Parse(slotLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot label %q: %w", label, err)
	}
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, loc), nil
}
