// fitsched-seed bulk-imports appointment records through the HTTP API. It
// registers every user and trainer the records refer to, then books each
// appointment with its original id so re-runs are idempotent.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"
)

type seedRecord struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"started_at"`
	EndTime   time.Time `json:"ended_at"`
	UserID    int64     `json:"user_id"`
	TrainerID int64     `json:"trainer_id"`
}

type identityPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type appointmentPayload struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	UserID    int64     `json:"user_id"`
	TrainerID int64     `json:"trainer_id"`
}

func main() {
	dataPath := flag.String("data", "data/appointments.json", "path to the appointment records file")
	baseURL := flag.String("base-url", "http://localhost:8080", "scheduling API base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("service", "fitsched-seed"),
	)

	records, err := loadRecords(*dataPath)
	if err != nil {
		log.Error("loading records failed", slog.Any("err", err), slog.String("path", *dataPath))
		os.Exit(1)
	}
	log.Info("records loaded", slog.Int("count", len(records)), slog.String("path", *dataPath))

	client := &http.Client{Timeout: *timeout}
	seeder := &seeder{client: client, baseURL: *baseURL, log: log}

	failed := 0
	for _, id := range collectIDs(records, func(r seedRecord) int64 { return r.UserID }) {
		if err := seeder.post("/users", identityPayload{
			ID:    id,
			Name:  fmt.Sprintf("User %d", id),
			Email: fmt.Sprintf("user_%d@email.com", id),
		}); err != nil {
			log.Warn("user registration failed", slog.Int64("user_id", id), slog.Any("err", err))
			failed++
		}
	}
	for _, id := range collectIDs(records, func(r seedRecord) int64 { return r.TrainerID }) {
		if err := seeder.post("/trainers", identityPayload{
			ID:    id,
			Name:  fmt.Sprintf("Trainer %d", id),
			Email: fmt.Sprintf("trainer_%d@email.com", id),
		}); err != nil {
			log.Warn("trainer registration failed", slog.Int64("trainer_id", id), slog.Any("err", err))
			failed++
		}
	}

	for _, rec := range records {
		if err := seeder.post("/appointments", appointmentPayload{
			ID:        rec.ID,
			StartTime: rec.StartTime,
			EndTime:   rec.EndTime,
			UserID:    rec.UserID,
			TrainerID: rec.TrainerID,
		}); err != nil {
			log.Warn("booking failed", slog.Int64("appointment_id", rec.ID), slog.Any("err", err))
			failed++
		}
	}

	if failed > 0 {
		log.Error("seeding finished with failures", slog.Int("failed", failed))
		os.Exit(1)
	}
	log.Info("seeding finished")
}

func loadRecords(path string) ([]seedRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []seedRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// collectIDs returns the distinct ids a field refers to, in ascending order.
func collectIDs(records []seedRecord, field func(seedRecord) int64) []int64 {
	seen := make(map[int64]struct{}, len(records))
	var ids []int64
	for _, rec := range records {
		id := field(rec)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type seeder struct {
	client  *http.Client
	baseURL string
	log     *slog.Logger
}

// post sends a JSON payload and treats 200 and 201 as success; a re-run that
// hits already-registered rows is not an error.
func (s *seeder) post(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, apiErr.Error)
	}
	return nil
}
