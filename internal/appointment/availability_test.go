package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/clinic-scheduler/internal/clinic"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveAvailableSlots_FiltersFullSlots(t *testing.T) {
	store := newMemStore()
	target := day(2025, time.March, 10)

	// 14:00 full, 09:00 half full, everything else empty.
	for i := 0; i < 2; i++ {
		store.addAppointment(Appointment{
			PatientID: uuid.New(), Date: target, Time: "14:00", Clinic: "santa-tecla",
		})
	}
	store.addAppointment(Appointment{
		PatientID: uuid.New(), Date: target, Time: "09:00", Clinic: "santa-tecla",
	})

	got, err := ResolveAvailableSlots(context.Background(), store, target, "santa-tecla", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00", "10:00", "11:00", "13:00", "15:00"}, got)
}

func TestResolveAvailableSlots_IgnoresOtherClinicsDatesAndStatuses(t *testing.T) {
	store := newMemStore()
	target := day(2025, time.March, 10)

	// Full slot at another clinic, another date, and two non-scheduled
	// records in the target slot. None of these consume capacity.
	for i := 0; i < 2; i++ {
		store.addAppointment(Appointment{PatientID: uuid.New(), Date: target, Time: "14:00", Clinic: "santa-ana"})
		store.addAppointment(Appointment{PatientID: uuid.New(), Date: day(2025, time.March, 11), Time: "14:00", Clinic: "santa-tecla"})
	}
	store.addAppointment(Appointment{PatientID: uuid.New(), Date: target, Time: "14:00", Clinic: "santa-tecla", Status: StatusCancelled})
	store.addAppointment(Appointment{PatientID: uuid.New(), Date: target, Time: "14:00", Clinic: "santa-tecla", Status: StatusMissed})

	got, err := ResolveAvailableSlots(context.Background(), store, target, "santa-tecla", "")
	require.NoError(t, err)
	assert.Equal(t, clinic.Slots(), got)
}

func TestResolveAvailableSlots_KeepTimeStaysOfferedWhenFull(t *testing.T) {
	store := newMemStore()
	target := day(2025, time.March, 10)

	for i := 0; i < 2; i++ {
		store.addAppointment(Appointment{
			PatientID: uuid.New(), Date: target, Time: "14:00", Clinic: "santa-tecla",
		})
	}

	got, err := ResolveAvailableSlots(context.Background(), store, target, "santa-tecla", "14:00")
	require.NoError(t, err)
	assert.Contains(t, got, "14:00")
	// Fixed calendar order is preserved with the kept slot in place.
	assert.Equal(t, clinic.Slots(), got)
}

func TestResolveAvailableSlots_InvalidInputReturnsFullList(t *testing.T) {
	store := newMemStore()

	got, err := ResolveAvailableSlots(context.Background(), store, time.Time{}, "santa-tecla", "")
	require.NoError(t, err)
	assert.Equal(t, clinic.Slots(), got)

	got, err = ResolveAvailableSlots(context.Background(), store, day(2025, time.March, 10), "nowhere", "")
	require.NoError(t, err)
	assert.Equal(t, clinic.Slots(), got)
}

func TestResolveAvailableSlots_ReadFailureDegradesToFullList(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("backend down")

	got, err := ResolveAvailableSlots(context.Background(), store, day(2025, time.March, 10), "santa-tecla", "")
	assert.Error(t, err)
	assert.Equal(t, clinic.Slots(), got)
}
