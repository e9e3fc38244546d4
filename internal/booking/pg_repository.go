package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func busyStatusStrings() []string {
	out := make([]string, len(BusyStatuses))
	for i, s := range BusyStatuses {
		out[i] = string(s)
	}
	return out
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// isSlotConflict reports whether err is the exclusion (or unique) constraint
// on the bookings interval firing.
func isSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.ExclusionViolation || pgErr.Code == pgerrcode.UniqueViolation
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var customerID *uuid.UUID

	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.StaffID,
		&b.ServiceID,
		&customerID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.CreatedVia,
		&b.ReminderSent,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.CustomerID = customerID
	return &b, nil
}

const bookingColumns = `id, tenant_id, staff_id, service_id, customer_id, start_time, end_time, status, created_via, reminder_sent, notes, created_at, updated_at`

// Lookups

func (r *PgRepository) GetTenantByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, prepayment_required, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, id)

	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Timezone, &t.PrepaymentRequired, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgRepository) GetStaffByID(ctx context.Context, tenantID, id uuid.UUID) (*Staff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, active, created_at, updated_at
		FROM staff
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)

	var s Staff
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) GetServiceByID(ctx context.Context, tenantID, id uuid.UUID) (*ServiceOffering, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, duration_minutes, price_cents, created_at, updated_at
		FROM services
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)

	var s ServiceOffering
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, tenantID, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	return scanBooking(row)
}

func (r *PgRepository) ListBookingsForStaffDay(ctx context.Context, tenantID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]Booking, error) {
	query, args, err := psql.Select(
		"id", "tenant_id", "staff_id", "service_id", "customer_id",
		"start_time", "end_time", "status", "created_via", "reminder_sent",
		"notes", "created_at", "updated_at",
	).
		From("bookings").
		Where(squirrel.Eq{"tenant_id": tenantID, "staff_id": staffID}).
		Where(squirrel.Lt{"start_time": dayEnd}).
		Where(squirrel.Gt{"end_time": dayStart}).
		OrderBy("start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// Availability inputs

func (r *PgRepository) ListWeeklyHours(ctx context.Context, tenantID, staffID uuid.UUID, weekday time.Weekday) ([]WeeklyHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, staff_id, weekday, start_minute, end_minute
		FROM staff_working_hours
		WHERE tenant_id = $1 AND staff_id = $2 AND weekday = $3
		ORDER BY start_minute
	`, tenantID, staffID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyHours
	for rows.Next() {
		var wh WeeklyHours
		var wd int
		if err := rows.Scan(&wh.ID, &wh.TenantID, &wh.StaffID, &wd, &wh.StartMinute, &wh.EndMinute); err != nil {
			return nil, err
		}
		wh.Weekday = time.Weekday(wd)
		result = append(result, wh)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetScheduleOverride(ctx context.Context, tenantID, staffID uuid.UUID, date time.Time) (*ScheduleOverride, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, staff_id, date, start_minute, end_minute, closed
		FROM staff_schedule_overrides
		WHERE tenant_id = $1 AND staff_id = $2 AND date = $3
	`, tenantID, staffID, date.Format("2006-01-02"))

	var o ScheduleOverride
	err := row.Scan(&o.ID, &o.TenantID, &o.StaffID, &o.Date, &o.StartMinute, &o.EndMinute, &o.Closed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *PgRepository) ListBusyIntervals(ctx context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE tenant_id = $1 AND staff_id = $2
		  AND status = ANY($3)
		  AND start_time < $5 AND end_time > $4
		UNION ALL
		SELECT start_time, end_time
		FROM blocks
		WHERE tenant_id = $1 AND staff_id = $2
		  AND start_time < $5 AND end_time > $4
		ORDER BY start_time
	`, tenantID, staffID, busyStatusStrings(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}
	return result, rows.Err()
}

func (r *PgRepository) HasOverlap(ctx context.Context, tenantID, staffID uuid.UUID, start, end time.Time) (bool, error) {
	sub := psql.Select("1").
		From("bookings").
		Where(squirrel.Eq{"tenant_id": tenantID, "staff_id": staffID}).
		Where(squirrel.Eq{"status": busyStatusStrings()}).
		Where(squirrel.Lt{"start_time": end}).
		Where(squirrel.Gt{"end_time": start})

	sql, args, err := sub.ToSql()
	if err != nil {
		return false, fmt.Errorf("build overlap query: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Creation and updates

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking, payment *Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (id, tenant_id, staff_id, service_id, customer_id, start_time, end_time, status, created_via, reminder_sent, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, now(), now())
		RETURNING created_at, updated_at
	`, b.ID, b.TenantID, b.StaffID, b.ServiceID, b.CustomerID, b.StartTime, b.EndTime, b.Status, b.CreatedVia, b.Notes)

	if err := row.Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		if isSlotConflict(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if payment != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO payments (id, tenant_id, booking_id, status, amount_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, payment.ID, payment.TenantID, payment.BookingID, payment.Status, payment.AmountCents)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, tenantID, id uuid.UUID, from []Status, to Status) (*Booking, error) {
	query, args, err := psql.Update("bookings").
		Set("status", string(to)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID}).
		Where(squirrel.Eq{"status": statusStrings(from)}).
		Suffix("RETURNING " + bookingColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status update query: %w", err)
	}

	return scanBooking(r.pool.QueryRow(ctx, query, args...))
}

// Expiration sweep

func (r *PgRepository) FindExpiredPending(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending_payment'
		  AND created_at <= $1
		ORDER BY created_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) ExpireBookings(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	// Status re-check in the predicate keeps a concurrent confirm from
	// being clobbered between select and update; RETURNING reports which
	// candidates were actually expired.
	rows, err := r.pool.Query(ctx, `
		UPDATE bookings
		SET status = 'expired', updated_at = now()
		WHERE id = ANY($1) AND status = 'pending_payment'
		RETURNING id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		expired = append(expired, id)
	}
	return expired, rows.Err()
}

func (r *PgRepository) ExpirePendingPayments(ctx context.Context, bookingIDs []uuid.UUID) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = 'expired', updated_at = now()
		WHERE booking_id = ANY($1) AND status = 'pending'
	`, bookingIDs)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Auto-completion sweep

func (r *PgRepository) AutoCompleteDue(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = 'completed', updated_at = now()
		WHERE status = 'confirmed' AND end_time <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Recurring materializer

func (r *PgRepository) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, timezone, prepayment_required, created_at, updated_at
		FROM tenants
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Timezone, &t.PrepaymentRequired, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListActiveRules(ctx context.Context, tenantID uuid.UUID, weekday time.Weekday, onOrBefore time.Time) ([]RecurringRule, error) {
	query, args, err := psql.Select(
		"id", "tenant_id", "customer_id", "staff_id", "service_id",
		"weekday", "start_minute", "active", "start_date", "created_at", "updated_at",
	).
		From("recurring_client_rules").
		Where(squirrel.Eq{"tenant_id": tenantID, "weekday": int(weekday), "active": true}).
		Where(squirrel.LtOrEq{"start_date": onOrBefore.Format("2006-01-02")}).
		OrderBy("start_minute").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list rules query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RecurringRule
	for rows.Next() {
		var rule RecurringRule
		var wd int
		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.CustomerID, &rule.StaffID, &rule.ServiceID,
			&wd, &rule.StartMinute, &rule.Active, &rule.StartDate, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(wd)
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *PgRepository) BookingExistsAt(ctx context.Context, tenantID, staffID uuid.UUID, start time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE tenant_id = $1 AND staff_id = $2
			  AND start_time = $3
			  AND status = ANY($4)
		)
	`, tenantID, staffID, start, busyStatusStrings()).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
