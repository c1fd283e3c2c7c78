package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/dentalink/clinic-scheduler/internal/clinic"
)

// ResolveAvailableSlots computes which of the fixed daily slots still have
// open capacity for (date, clinicID). keepTime, when non-empty, is the slot
// held by an appointment being rescheduled and stays offered even if full.
//
// On an invalid date or clinic the full slot list is returned with a nil
// error; on a storage read failure the full list is returned together with
// the error, so callers can stay usable while surfacing the failure. The
// booking validator re-checks at submission time either way.
func ResolveAvailableSlots(ctx context.Context, store Store, date time.Time, clinicID, keepTime string) ([]string, error) {
	all := clinic.Slots()

	if date.IsZero() || !clinic.ValidClinic(clinicID) {
		return all, nil
	}

	scheduled := StatusScheduled
	day := clinic.DateOf(date, time.UTC)
	appts, err := store.ListAppointments(ctx, Filter{
		Date:   &day,
		Clinic: &clinicID,
		Status: &scheduled,
	})
	if err != nil {
		return all, fmt.Errorf("list appointments for availability: %w", err)
	}

	counts := make(map[string]int, len(all))
	for _, a := range appts {
		counts[a.Time]++
	}

	open := make([]string, 0, len(all))
	for _, label := range all {
		if counts[label] < clinic.SlotCapacity || label == keepTime {
			open = append(open, label)
		}
	}

	return open, nil
}
