package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store used by the package tests. Errors can be
// injected per operation to exercise failure paths.
type memStore struct {
	mu            sync.Mutex
	appts         map[uuid.UUID]Appointment
	patients      map[uuid.UUID]Patient
	notifications []Notification

	listErr       error
	insertErr     error
	updateErr     error
	statusErrByID map[uuid.UUID]error
	listOverride  []Appointment // returned verbatim when set (stale-snapshot tests)
}

func newMemStore() *memStore {
	return &memStore{
		appts:         map[uuid.UUID]Appointment{},
		patients:      map[uuid.UUID]Patient{},
		statusErrByID: map[uuid.UUID]error{},
	}
}

func (m *memStore) addPatient(name string) Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Patient{ID: uuid.New(), Name: name}
	m.patients[p.ID] = p
	return p
}

func (m *memStore) addAppointment(a Appointment) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	m.appts[a.ID] = a
	return a
}

func (m *memStore) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listOverride != nil {
		return m.listOverride, nil
	}

	var out []Appointment
	for _, a := range m.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Date != nil && !a.Date.Equal(*f.Date) {
			continue
		}
		if f.From != nil && a.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && a.Date.After(*f.To) {
			continue
		}
		if f.Clinic != nil && a.Clinic != *f.Clinic {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memStore) InsertAppointment(_ context.Context, a *Appointment) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return uuid.Nil, m.insertErr
	}
	id := uuid.New()
	stored := *a
	stored.ID = id
	m.appts[id] = stored
	return id, nil
}

func (m *memStore) UpdateAppointment(_ context.Context, id uuid.UUID, ch FieldChanges, updatedAt time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if ch.Date != nil {
		a.Date = *ch.Date
	}
	if ch.Time != nil {
		a.Time = *ch.Time
	}
	if ch.Clinic != nil {
		a.Clinic = *ch.Clinic
	}
	if ch.Reason != nil {
		a.Reason = *ch.Reason
	}
	if ch.Notes != nil {
		a.Notes = ch.Notes
	}
	if ch.DoctorNotes != nil {
		a.DoctorNotes = ch.DoctorNotes
	}
	a.UpdatedAt = updatedAt
	m.appts[id] = a
	return &a, nil
}

func (m *memStore) SetAppointmentStatus(_ context.Context, id uuid.UUID, to Status, updatedAt time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = updatedAt
	m.appts[id] = a
	return &a, nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.statusErrByID[id]; err != nil {
		return nil, err
	}
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = updatedAt
	m.appts[id] = a
	return &a, nil
}

func (m *memStore) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *memStore) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memStore) InsertNotification(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}
