package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/clinic-scheduler/internal/clinic"
)

func newTestService(store Store) *Service {
	svc := NewService(store, nil, time.UTC, clinic.GraceWindow, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCreate_SnapshotsPatientName(t *testing.T) {
	store := newMemStore()
	patient := store.addPatient("Ana Martínez")
	svc := newTestService(store)

	appt, err := svc.Create(context.Background(), patient.ID, CreateInput{
		Date:   day(2025, time.March, 10),
		Time:   "10:00",
		Clinic: "santa-tecla",
		Reason: "Routine checkup",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, "Ana Martínez", appt.PatientName)
	assert.Equal(t, testNow.UTC(), appt.CreatedAt)
	assert.Equal(t, appt.CreatedAt, appt.UpdatedAt)
	assert.False(t, appt.CreatedByStaff)

	// Renaming the patient afterwards does not rewrite the snapshot; the
	// denormalized name is deliberately frozen at booking time.
	store.mu.Lock()
	p := store.patients[patient.ID]
	p.Name = "Ana López"
	store.patients[patient.ID] = p
	store.mu.Unlock()

	stored, err := store.GetAppointmentByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Martínez", stored.PatientName)
}

func TestCreate_StampsStaffProvenance(t *testing.T) {
	store := newMemStore()
	patient := store.addPatient("Carlos Pineda")
	staffID := uuid.New()

	appt, err := newTestService(store).Create(context.Background(), patient.ID, CreateInput{
		Date:   day(2025, time.March, 10),
		Time:   "10:00",
		Clinic: "santa-tecla",
		Reason: "Filling",
	}, &staffID)
	require.NoError(t, err)

	assert.True(t, appt.CreatedByStaff)
	require.NotNil(t, appt.CreatedBy)
	assert.Equal(t, staffID, *appt.CreatedBy)
}

func TestCreate_UnknownPatient(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Date: day(2025, time.March, 10), Time: "10:00", Clinic: "santa-tecla", Reason: "x",
	}, nil)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestUpdate_PatientRules(t *testing.T) {
	store := newMemStore()
	patient := store.addPatient("Marta Rivas")
	other := store.addPatient("Luis Gómez")
	svc := newTestService(store)

	appt := store.addAppointment(Appointment{PatientID: patient.ID, Date: day(2025, time.March, 10), Time: "10:00", Clinic: "santa-tecla"})
	done := store.addAppointment(Appointment{PatientID: patient.ID, Date: day(2025, time.February, 3), Time: "10:00", Clinic: "santa-tecla", Status: StatusCompleted})

	notes := "running late"
	_, err := svc.Update(context.Background(), appt.ID, FieldChanges{Notes: &notes}, Actor{ID: other.ID})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.Update(context.Background(), done.ID, FieldChanges{Notes: &notes}, Actor{ID: patient.ID})
	assert.ErrorIs(t, err, ErrNotEditable)

	// Staff may edit regardless of status, including doctor notes.
	dn := "follow-up in 6 months"
	updated, err := svc.Update(context.Background(), done.ID, FieldChanges{DoctorNotes: &dn}, Actor{ID: uuid.New(), Staff: true})
	require.NoError(t, err)
	require.NotNil(t, updated.DoctorNotes)
	assert.Equal(t, dn, *updated.DoctorNotes)

	// Patients cannot write doctor notes; the field is silently dropped.
	updated, err = svc.Update(context.Background(), appt.ID, FieldChanges{Notes: &notes, DoctorNotes: &dn}, Actor{ID: patient.ID})
	require.NoError(t, err)
	assert.Nil(t, updated.DoctorNotes)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	assert.Equal(t, testNow.UTC(), updated.UpdatedAt)
}

func TestSetStatus_PatientMayOnlyCancelOwnScheduled(t *testing.T) {
	store := newMemStore()
	patient := store.addPatient("Ana Martínez")
	svc := newTestService(store)

	appt := store.addAppointment(Appointment{PatientID: patient.ID, Date: day(2025, time.March, 10), Time: "10:00", Clinic: "santa-tecla"})

	_, err := svc.SetStatus(context.Background(), appt.ID, StatusCompleted, Actor{ID: patient.ID})
	assert.ErrorIs(t, err, ErrPatientForbidden)

	_, err = svc.SetStatus(context.Background(), appt.ID, StatusCancelled, Actor{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotOwner)

	updated, err := svc.SetStatus(context.Background(), appt.ID, StatusCancelled, Actor{ID: patient.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)

	// Once cancelled the patient cannot touch it again, but staff can
	// force any transition.
	_, err = svc.SetStatus(context.Background(), appt.ID, StatusCancelled, Actor{ID: patient.ID})
	assert.ErrorIs(t, err, ErrPatientForbidden)

	updated, err = svc.SetStatus(context.Background(), appt.ID, StatusCompleted, Actor{ID: uuid.New(), Staff: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
}

func TestSetStatus_RejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.SetStatus(context.Background(), uuid.New(), Status("archived"), Actor{Staff: true})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// Sweep: an appointment at 14:00 with a 2h grace expires strictly after
// 16:00 clinic time.
func sweepFixture(t *testing.T) (*memStore, *Service, Appointment) {
	t.Helper()
	store := newMemStore()
	svc := newTestService(store)
	appt := store.addAppointment(Appointment{
		PatientID: uuid.New(),
		Date:      day(2025, time.March, 10),
		Time:      "14:00",
		Clinic:    "santa-tecla",
	})
	return store, svc, appt
}

func TestSweepExpired_StrictBoundary(t *testing.T) {
	deadline := time.Date(2025, time.March, 10, 16, 0, 0, 0, time.UTC)

	t.Run("one second before the boundary", func(t *testing.T) {
		store, svc, appt := sweepFixture(t)
		res, err := svc.SweepExpired(context.Background(), deadline.Add(-time.Second))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Expired)
		got, _ := store.GetAppointmentByID(context.Background(), appt.ID)
		assert.Equal(t, StatusScheduled, got.Status)
	})

	t.Run("exactly at the boundary", func(t *testing.T) {
		store, svc, appt := sweepFixture(t)
		res, err := svc.SweepExpired(context.Background(), deadline)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Expired)
		got, _ := store.GetAppointmentByID(context.Background(), appt.ID)
		assert.Equal(t, StatusScheduled, got.Status)
	})

	t.Run("past the boundary", func(t *testing.T) {
		store, svc, appt := sweepFixture(t)
		res, err := svc.SweepExpired(context.Background(), deadline.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Expired)
		got, _ := store.GetAppointmentByID(context.Background(), appt.ID)
		assert.Equal(t, StatusMissed, got.Status)
	})
}

func TestSweepExpired_IsIdempotent(t *testing.T) {
	_, svc, _ := sweepFixture(t)
	now := time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)

	res, err := svc.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)

	res, err = svc.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
	assert.Equal(t, 0, res.Expired)
	assert.Empty(t, res.Failures)
}

func TestSweepExpired_LeavesFutureAndNonScheduledAlone(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	future := store.addAppointment(Appointment{PatientID: uuid.New(), Date: day(2025, time.March, 12), Time: "08:00", Clinic: "santa-tecla"})
	today := store.addAppointment(Appointment{PatientID: uuid.New(), Date: day(2025, time.March, 10), Time: "15:00", Clinic: "santa-tecla"})
	cancelled := store.addAppointment(Appointment{PatientID: uuid.New(), Date: day(2025, time.March, 10), Time: "08:00", Clinic: "santa-tecla", Status: StatusCancelled})

	// 16:30: the 15:00 slot is still inside its grace window.
	now := time.Date(2025, time.March, 10, 16, 30, 0, 0, time.UTC)
	res, err := svc.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Expired)

	for _, id := range []uuid.UUID{future.ID, today.ID} {
		got, _ := store.GetAppointmentByID(context.Background(), id)
		assert.Equal(t, StatusScheduled, got.Status)
	}
	got, _ := store.GetAppointmentByID(context.Background(), cancelled.ID)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestSweepExpired_DoesNotResurrectConcurrentlyCancelled(t *testing.T) {
	store, svc, appt := sweepFixture(t)

	// Simulate the record being cancelled between the sweep's scan and its
	// write: the snapshot still says scheduled, the store says cancelled.
	stale := appt
	store.mu.Lock()
	live := store.appts[appt.ID]
	live.Status = StatusCancelled
	store.appts[appt.ID] = live
	store.listOverride = []Appointment{stale}
	store.mu.Unlock()

	res, err := svc.SweepExpired(context.Background(), time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Expired)
	assert.Empty(t, res.Failures)

	got, _ := store.GetAppointmentByID(context.Background(), appt.ID)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestSweepExpired_CollectsPerRecordFailuresAndContinues(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	now := time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)

	bad := store.addAppointment(Appointment{PatientID: uuid.New(), Date: day(2025, time.March, 10), Time: "08:00", Clinic: "santa-tecla"})
	good := store.addAppointment(Appointment{PatientID: uuid.New(), Date: day(2025, time.March, 10), Time: "09:00", Clinic: "santa-ana"})
	store.statusErrByID[bad.ID] = errors.New("write timeout")

	res, err := svc.SweepExpired(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Expired)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bad.ID, res.Failures[0].AppointmentID)

	got, _ := store.GetAppointmentByID(context.Background(), good.ID)
	assert.Equal(t, StatusMissed, got.Status)
}

func TestLifecycleEmitsNotifications(t *testing.T) {
	store := newMemStore()
	patient := store.addPatient("Ana Martínez")

	var events []string
	svc := NewService(store, notifierFunc(func(_ context.Context, _ *Appointment, event string) {
		events = append(events, event)
	}), time.UTC, clinic.GraceWindow, zerolog.Nop())
	svc.now = func() time.Time { return testNow }

	appt, err := svc.Create(context.Background(), patient.ID, CreateInput{
		Date: day(2025, time.March, 10), Time: "10:00", Clinic: "santa-tecla", Reason: "Cleaning",
	}, nil)
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), appt.ID, StatusCancelled, Actor{ID: patient.ID})
	require.NoError(t, err)

	assert.Equal(t, []string{EventAppointmentBooked, EventAppointmentCancelled}, events)
}

type notifierFunc func(ctx context.Context, a *Appointment, event string)

func (f notifierFunc) AppointmentChanged(ctx context.Context, a *Appointment, event string) {
	f(ctx, a, event)
}
