package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chikitsa360/telehealth-booking/internal/db"
)

// simulate hammers a running api-server with concurrent booking attempts
// against a shared set of open slots. The interesting number at the end is
// how many conflicts the server returned: with N workers racing per slot,
// exactly one booking per slot should ever succeed.

type counters struct {
	booked    atomic.Int64
	conflicts atomic.Int64
	errors    atomic.Int64
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "api-server base URL")
		dsn      = flag.String("dsn", "", "Postgres DSN for loading slot and patient IDs (defaults to POSTGRES_DSN)")
		workers  = flag.Int("workers", 20, "concurrent booking workers")
		duration = flag.Duration("duration", 30*time.Second, "how long to run")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	slots, patients, err := loadIDs(ctx, *dsn)
	if err != nil {
		log.Fatalf("load ids: %v", err)
	}
	if len(slots) == 0 || len(patients) == 0 {
		log.Fatal("no open slots or patients found; run the seed command first")
	}
	log.Printf("loaded %d open slots, %d patients", len(slots), len(patients))

	client := &http.Client{Timeout: 10 * time.Second}
	var c counters
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				slot := slots[rng.Intn(len(slots))]
				patient := patients[rng.Intn(len(patients))]
				bookOnce(ctx, client, *baseURL, slot, patient, &c)
			}
		}(time.Now().UnixNano() + int64(i))
	}
	wg.Wait()

	elapsed := time.Since(start)
	total := c.booked.Load() + c.conflicts.Load() + c.errors.Load()
	log.Printf("done in %s: %d attempts, %d booked, %d conflicts, %d errors (%.0f req/s)",
		elapsed.Round(time.Millisecond), total,
		c.booked.Load(), c.conflicts.Load(), c.errors.Load(),
		float64(total)/elapsed.Seconds())

	if c.booked.Load() > int64(len(slots)) {
		log.Printf("WARNING: more bookings than slots, the claim path is broken")
	}
}

func bookOnce(ctx context.Context, client *http.Client, baseURL string, slotID, patientID uuid.UUID, c *counters) {
	body, _ := json.Marshal(map[string]string{
		"availability_id": slotID.String(),
		"reason":          "load test consultation",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		c.errors.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", patientID.String())
	req.Header.Set("X-Actor-Role", "patient")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.errors.Add(1)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		c.booked.Add(1)
	case http.StatusConflict:
		c.conflicts.Add(1)
	default:
		c.errors.Add(1)
	}
}

func loadIDs(ctx context.Context, dsn string) (slots, patients []uuid.UUID, err error) {
	if dsn == "" {
		dsn = os.Getenv("POSTGRES_DSN")
	}
	if dsn == "" {
		return nil, nil, fmt.Errorf("no Postgres DSN provided")
	}

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	slots, err = queryIDs(ctx, pool, `
		SELECT id FROM availabilities
		WHERE is_booked = FALSE AND date >= CURRENT_DATE
		LIMIT 500
	`)
	if err != nil {
		return nil, nil, err
	}

	patients, err = queryIDs(ctx, pool, `SELECT id FROM patients LIMIT 1000`)
	if err != nil {
		return nil, nil, err
	}
	return slots, patients, nil
}

func queryIDs(ctx context.Context, pool *pgxpool.Pool, sql string) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
