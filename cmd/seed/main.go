package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendly/booking-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 10)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()
	tenantID, err := seedTenant(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed tenant: %v", err)
	}

	staffIDs, err := seedStaff(seedCtx, pool, tenantID, 5)
	if err != nil {
		log.Fatalf("seed staff: %v", err)
	}

	serviceIDs, err := seedServices(seedCtx, pool, tenantID)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}

	customerIDs, err := seedCustomers(seedCtx, pool, tenantID, 200)
	if err != nil {
		log.Fatalf("seed customers: %v", err)
	}

	if err := seedWorkingHours(seedCtx, pool, tenantID, staffIDs); err != nil {
		log.Fatalf("seed working hours: %v", err)
	}

	if err := seedRecurringRules(seedCtx, pool, tenantID, staffIDs, serviceIDs, customerIDs); err != nil {
		log.Fatalf("seed recurring rules: %v", err)
	}

	log.Println("seed complete")
}

func seedTenant(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, error) {
	id := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO tenants (id, name, timezone, prepayment_required, created_at, updated_at)
		VALUES ($1, $2, 'America/Sao_Paulo', true, now(), now())
	`, id, gofakeit.Company())
	if err != nil {
		return uuid.Nil, err
	}
	log.Printf("tenant seeded: %s", id)
	return id, nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d staff", count)

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO staff (id, tenant_id, name, active, created_at, updated_at)
			VALUES ($1, $2, $3, true, now(), now())
		`, id, tenantID, gofakeit.Name())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) ([]uuid.UUID, error) {
	services := []struct {
		name     string
		duration int
		price    int64
	}{
		{"Corte de cabelo", 30, 5000},
		{"Barba", 20, 3000},
		{"Corte + barba", 45, 7500},
		{"Coloração", 90, 15000},
		{"Hidratação", 60, 9000},
	}

	ids := make([]uuid.UUID, 0, len(services))
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, tenant_id, name, duration_minutes, price_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, tenantID, s.name, s.duration, s.price)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d customers", count)

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO customers (id, tenant_id, name, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, tenantID, gofakeit.Name(), gofakeit.Phone())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedWorkingHours(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, staffIDs []uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Tuesday through Saturday, 09:00-18:00.
	for _, staffID := range staffIDs {
		for weekday := 2; weekday <= 6; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO staff_working_hours (id, tenant_id, staff_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4, 540, 1080)
			`, uuid.New(), tenantID, staffID, weekday)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func seedRecurringRules(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, staffIDs, serviceIDs, customerIDs []uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < 10 && i < len(customerIDs); i++ {
		staffID := staffIDs[gofakeit.Number(0, len(staffIDs)-1)]
		serviceID := serviceIDs[gofakeit.Number(0, len(serviceIDs)-1)]
		weekday := gofakeit.Number(2, 6)
		startMinute := 540 + 30*gofakeit.Number(0, 16)

		_, err := tx.Exec(ctx, `
			INSERT INTO recurring_client_rules (id, tenant_id, customer_id, staff_id, service_id, weekday, start_minute, active, start_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true, now() - interval '30 days', now(), now())
		`, uuid.New(), tenantID, customerIDs[i], staffID, serviceID, weekday, startMinute)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
