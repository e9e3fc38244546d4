package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendly/booking-engine/internal/db"
)

// simulate drives concurrent booking traffic against a running api-server,
// deliberately contesting a share of slots so that the no-overlap guarantee
// is exercised: for any contested slot exactly one creator must win and the
// rest must see slot_conflict.

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	ContendedRatio float64
	ConfirmRatio   float64
	PostgresDSN    string
}

type DataPool struct {
	TenantID  uuid.UUID
	Staff     []uuid.UUID
	Services  []uuid.UUID
	Customers []uuid.UUID

	mu       sync.RWMutex
	pending  []pendingBooking
	hotSlots []time.Time
}

type pendingBooking struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (dp *DataPool) AddPending(id, tenantID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, pendingBooking{ID: id, TenantID: tenantID})
}

func (dp *DataPool) TakePending(rng *rand.Rand) (pendingBooking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return pendingBooking{}, false
	}
	idx := rng.Intn(len(dp.pending))
	pb := dp.pending[idx]
	dp.pending = append(dp.pending[:idx], dp.pending[idx+1:]...)
	return pb, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentile(p int) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.Latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(om.Latencies))
	copy(sorted, om.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Simulator struct {
	cfg     SimConfig
	pool    *DataPool
	client  *http.Client
	create  OperationMetrics
	confirm OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadConfig()
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 10)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(context.Background(), pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded tenant=%s staff=%d services=%d customers=%d",
		pool.TenantID, len(pool.Staff), len(pool.Services), len(pool.Customers))

	sim := &Simulator{
		cfg:    cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:     getEnv("SIM_API_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 20),
		ContendedRatio: getFloat("SIM_CONTENDED_RATIO", 0.5),
		ConfirmRatio:   getFloat("SIM_CONFIRM_RATIO", 0.3),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
	}
}

func loadDataPool(ctx context.Context, pg *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	if err := pg.QueryRow(ctx, `SELECT id FROM tenants ORDER BY created_at LIMIT 1`).Scan(&dp.TenantID); err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	load := func(query string, dst *[]uuid.UUID) error {
		rows, err := pg.Query(ctx, query, dp.TenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			*dst = append(*dst, id)
		}
		return rows.Err()
	}

	if err := load(`SELECT id FROM staff WHERE tenant_id = $1 AND active`, &dp.Staff); err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if err := load(`SELECT id FROM services WHERE tenant_id = $1`, &dp.Services); err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	if err := load(`SELECT id FROM customers WHERE tenant_id = $1`, &dp.Customers); err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}

	if len(dp.Staff) == 0 || len(dp.Services) == 0 || len(dp.Customers) == 0 {
		return nil, fmt.Errorf("run cmd/seed first: staff=%d services=%d customers=%d",
			len(dp.Staff), len(dp.Services), len(dp.Customers))
	}

	// A small set of slots all workers fight over.
	base := time.Now().UTC().AddDate(0, 0, 7).Truncate(time.Hour)
	for i := 0; i < 8; i++ {
		dp.hotSlots = append(dp.hotSlots, base.Add(time.Duration(i)*2*time.Hour))
	}

	return dp, nil
}

func (s *Simulator) Run() {
	log.Printf("running simulation for %s with %d workers", s.cfg.Duration, s.cfg.Workers)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if rng.Float64() < s.cfg.ConfirmRatio {
			s.doConfirm(ctx, rng)
		} else {
			s.doCreate(ctx, rng)
		}

		time.Sleep(time.Duration(rng.Intn(50)) * time.Millisecond)
	}
}

func (s *Simulator) doCreate(ctx context.Context, rng *rand.Rand) {
	var start time.Time
	staffID := s.pool.Staff[0]
	if rng.Float64() < s.cfg.ContendedRatio {
		start = s.pool.hotSlots[rng.Intn(len(s.pool.hotSlots))]
	} else {
		// Uncontested: spread over the next 60 days at hour granularity.
		start = time.Now().UTC().AddDate(0, 0, 14+rng.Intn(60)).Truncate(24 * time.Hour).
			Add(time.Duration(9+rng.Intn(8)) * time.Hour)
		staffID = s.pool.Staff[rng.Intn(len(s.pool.Staff))]
	}

	customerID := s.pool.Customers[rng.Intn(len(s.pool.Customers))].String()
	body, _ := json.Marshal(map[string]any{
		"tenant_id":   s.pool.TenantID.String(),
		"staff_id":    staffID.String(),
		"service_id":  s.pool.Services[rng.Intn(len(s.pool.Services))].String(),
		"customer_id": customerID,
		"start":       start.Format(time.RFC3339),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+"/bookings", bytes.NewReader(body))
	if err != nil {
		s.create.Record(0, false, false)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)
	if err != nil {
		s.create.Record(latency, false, false)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.Status == "pending_payment" {
			s.pool.AddPending(created.ID, s.pool.TenantID)
		}
		s.create.Record(latency, true, false)
	case http.StatusConflict:
		s.create.Record(latency, false, true)
	default:
		s.create.Record(latency, false, false)
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	pb, ok := s.pool.TakePending(rng)
	if !ok {
		return
	}

	url := fmt.Sprintf("%s/bookings/%s/confirm?tenant_id=%s", s.cfg.APIBaseURL, pb.ID, pb.TenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		s.confirm.Record(0, false, false)
		return
	}

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)
	if err != nil {
		s.confirm.Record(latency, false, false)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		s.confirm.Record(latency, true, false)
	case http.StatusConflict:
		// Expired before we confirmed; expected under long sim runs.
		s.confirm.Record(latency, false, true)
	default:
		s.confirm.Record(latency, false, false)
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	printOperationReport("CREATE", &s.create)
	printOperationReport("CONFIRM", &s.confirm)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		fmt.Printf("%-8s no operations\n", name)
		return
	}
	fmt.Printf("%-8s total=%d success=%d conflict=%d error=%d p50=%s p95=%s\n",
		name, total,
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
		om.Percentile(50), om.Percentile(95),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
