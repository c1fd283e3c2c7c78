package main

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
	"github.com/dentalink/clinic-scheduler/internal/clinic"
	"github.com/dentalink/clinic-scheduler/internal/db"
	"github.com/dentalink/clinic-scheduler/internal/logging"
)

var reasons = []string{
	"Routine checkup",
	"Teeth cleaning",
	"Toothache",
	"Filling",
	"Root canal",
	"Extraction",
	"Orthodontic consultation",
	"Whitening",
}

func main() {
	log := logging.New("seed", "dev")
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	patients, err := seedPatients(context.Background(), pool, 200)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	log.Info().Int("count", len(patients)).Msg("seeded patients")

	n, err := seedAppointments(context.Background(), pool, patients)
	if err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}
	log.Info().Int("count", n).Msg("seeded appointments")

	log.Info().Msg("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]appointment.Patient, error) {
	out := make([]appointment.Patient, 0, count)

	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		p := appointment.Patient{
			ID:    uuid.New(),
			Name:  gofakeit.Name(),
			Email: &email,
		}

		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, p.ID, p.Name, p.Email)
		if err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, nil
}

// seedAppointments spreads a mix of historical (completed, cancelled, missed)
// and upcoming (scheduled) appointments, honoring the slot capacity and the
// one-per-day rule well enough for demo data.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, patients []appointment.Patient) (int, error) {
	slots := clinic.Slots()
	clinics := clinic.Clinics()

	type slotKey struct {
		date   time.Time
		slot   string
		clinic string
	}
	occupancy := map[slotKey]int{}

	inserted := 0
	for _, p := range patients {
		n := rand.Intn(4) // 0..3 appointments per patient
		usedDates := map[time.Time]bool{}
		scheduledHeld := 0

		for i := 0; i < n; i++ {
			offset := rand.Intn(60) - 30 // +/- 30 days
			date := clinic.DateOf(time.Now().AddDate(0, 0, offset), time.UTC)
			if date.Weekday() == time.Sunday || usedDates[date] {
				continue
			}

			slot := slots[rand.Intn(len(slots))]
			clinicID := clinics[rand.Intn(len(clinics))]

			status := appointment.StatusScheduled
			if offset < 0 {
				switch rand.Intn(3) {
				case 0:
					status = appointment.StatusCompleted
				case 1:
					status = appointment.StatusCancelled
				default:
					status = appointment.StatusMissed
				}
			}

			key := slotKey{date, slot, clinicID}
			if status == appointment.StatusScheduled &&
				(occupancy[key] >= clinic.SlotCapacity || scheduledHeld >= 2) {
				continue
			}

			_, err := pool.Exec(ctx, `
				INSERT INTO appointments
					(id, patient_id, patient_name, date, time_slot, clinic, reason,
					 status, created_by_staff, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now(), now())
			`, uuid.New(), p.ID, p.Name, date, slot, clinicID,
				reasons[rand.Intn(len(reasons))], status)
			if err != nil {
				return inserted, err
			}

			if status == appointment.StatusScheduled {
				occupancy[key]++
				scheduledHeld++
			}
			usedDates[date] = true
			inserted++
		}
	}

	return inserted, nil
}
