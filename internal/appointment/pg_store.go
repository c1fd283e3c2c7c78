package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const appointmentColumns = `id, patient_id, patient_name, date, time_slot, clinic, reason,
	notes, doctor_notes, status, created_by, created_by_staff, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var notes, doctorNotes *string
	var createdBy *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.Date,
		&a.Time,
		&a.Clinic,
		&a.Reason,
		&notes,
		&doctorNotes,
		&a.Status,
		&createdBy,
		&a.CreatedByStaff,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Notes = notes
	a.DoctorNotes = doctorNotes
	a.CreatedBy = createdBy
	a.Date = a.Date.UTC()
	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

// Interface methods

func (s *PgStore) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.Date != nil {
		add("date = $%d", *f.Date)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	if f.Clinic != nil {
		add("clinic = $%d", *f.Clinic)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}

	q := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date, time_slot, created_at"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) InsertAppointment(ctx context.Context, a *Appointment) (uuid.UUID, error) {
	id := uuid.New()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, patient_name, date, time_slot, clinic, reason,
			 notes, doctor_notes, status, created_by, created_by_staff, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, id, a.PatientID, a.PatientName, a.Date, a.Time, a.Clinic, a.Reason,
		a.Notes, a.DoctorNotes, a.Status, a.CreatedBy, a.CreatedByStaff,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert appointment: %w", err)
	}

	return id, nil
}

func (s *PgStore) UpdateAppointment(ctx context.Context, id uuid.UUID, ch FieldChanges, updatedAt time.Time) (*Appointment, error) {
	sets := []string{}
	args := []any{id}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if ch.Date != nil {
		set("date", *ch.Date)
	}
	if ch.Time != nil {
		set("time_slot", *ch.Time)
	}
	if ch.Clinic != nil {
		set("clinic", *ch.Clinic)
	}
	if ch.Reason != nil {
		set("reason", *ch.Reason)
	}
	if ch.Notes != nil {
		set("notes", *ch.Notes)
	}
	if ch.DoctorNotes != nil {
		set("doctor_notes", *ch.DoctorNotes)
	}
	set("updated_at", updatedAt)

	q := fmt.Sprintf(`
		UPDATE appointments
		SET %s
		WHERE id = $1
		RETURNING %s
	`, strings.Join(sets, ", "), appointmentColumns)

	return scanAppointment(s.pool.QueryRow(ctx, q, args...))
}

func (s *PgStore) SetAppointmentStatus(ctx context.Context, id uuid.UUID, to Status, updatedAt time.Time) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, to, updatedAt)
	return scanAppointment(row)
}

func (s *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $4
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, updatedAt)
	return scanAppointment(row)
}

func (s *PgStore) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *PgStore) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) InsertNotification(ctx context.Context, n Notification) error {
	id := n.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
	`, id, n.UserID, n.Title, n.Message, n.Type, n.Link, n.Read, nullableTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
