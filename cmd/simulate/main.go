// simulate hammers one (date, time, clinic) slot with concurrent bookings
// from distinct patients, to observe the capacity gate under racing
// submissions: exactly SlotCapacity creates should succeed, the rest should
// come back as conflicts or capacity violations.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalink/clinic-scheduler/internal/clinic"
	"github.com/dentalink/clinic-scheduler/internal/config"
	"github.com/dentalink/clinic-scheduler/internal/db"
	"github.com/dentalink/clinic-scheduler/internal/logging"
)

func main() {
	log := logging.New("simulate", "dev")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:" + cfg.HTTPPort
	}

	workers := 25

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	patients, err := loadPatients(ctx, pool, workers)
	if err != nil {
		log.Fatal().Err(err).Msg("load patients")
	}
	if len(patients) < workers {
		log.Fatal().Int("have", len(patients)).Msg("not enough seeded patients, run cmd/seed first")
	}

	// Next bookable Monday, one fixed slot for everyone.
	date := clinic.DateOf(time.Now(), time.UTC)
	for {
		date = date.AddDate(0, 0, 1)
		if date.Weekday() == time.Monday {
			break
		}
	}
	slot := "14:00"
	clinicID := "santa-tecla"

	log.Info().
		Str("date", date.Format(clinic.DateLayout)).
		Str("slot", slot).
		Str("clinic", clinicID).
		Int("workers", workers).
		Msg("starting booking race")

	var created, conflicted, rejected, failed atomic.Int64
	httpClient := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		patientID := patients[i]
		wg.Add(1)
		go func() {
			defer wg.Done()

			token, err := mintToken(cfg.JWTSecret, patientID)
			if err != nil {
				failed.Add(1)
				return
			}

			body, _ := json.Marshal(map[string]any{
				"date":   date.Format(clinic.DateLayout),
				"time":   slot,
				"clinic": clinicID,
				"reason": "Routine checkup",
			})

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
			if err != nil {
				failed.Add(1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := httpClient.Do(req)
			if err != nil {
				failed.Add(1)
				return
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicted.Add(1)
			case http.StatusUnprocessableEntity:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	log.Info().
		Int64("created", created.Load()).
		Int64("lock_conflicts", conflicted.Load()).
		Int64("capacity_rejections", rejected.Load()).
		Int64("failed", failed.Load()).
		Msg("booking race finished")

	if created.Load() > clinic.SlotCapacity {
		log.Error().Msg("slot capacity was exceeded")
		os.Exit(1)
	}
	log.Info().Msg("slot capacity held")
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func mintToken(secret string, patientID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub":  patientID.String(),
		"role": "patient",
		"name": "Simulated Patient",
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
