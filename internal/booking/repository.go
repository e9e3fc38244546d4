package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrStaffNotFound    = errors.New("staff not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrOverrideNotFound = errors.New("schedule override not found")

	// ErrSlotConflict is returned when an insert collides with the
	// no-overlap exclusion constraint on (tenant, staff, interval).
	ErrSlotConflict = errors.New("slot already taken")
)

// Repository contains all DB interactions needed by the service and jobs.
type Repository interface {
	GetTenantByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetStaffByID(ctx context.Context, tenantID, id uuid.UUID) (*Staff, error)
	GetServiceByID(ctx context.Context, tenantID, id uuid.UUID) (*ServiceOffering, error)
	GetBookingByID(ctx context.Context, tenantID, id uuid.UUID) (*Booking, error)
	ListBookingsForStaffDay(ctx context.Context, tenantID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]Booking, error)

	// Availability inputs.
	ListWeeklyHours(ctx context.Context, tenantID, staffID uuid.UUID, weekday time.Weekday) ([]WeeklyHours, error)
	GetScheduleOverride(ctx context.Context, tenantID, staffID uuid.UUID, date time.Time) (*ScheduleOverride, error)
	// ListBusyIntervals unions slot-blocking bookings and manual blocks
	// intersecting [from, to).
	ListBusyIntervals(ctx context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]Interval, error)
	// HasOverlap is the write-time re-check for one candidate interval.
	HasOverlap(ctx context.Context, tenantID, staffID uuid.UUID, start, end time.Time) (bool, error)

	// CreateBooking inserts the booking and, when payment is non-nil, its
	// pending payment row in the same transaction. A constraint violation
	// on the booking interval surfaces as ErrSlotConflict and nothing is
	// persisted.
	CreateBooking(ctx context.Context, b *Booking, payment *Payment) error
	// UpdateBookingStatus transitions id to the target status only if its
	// current status is one of from. Returns ErrBookingNotFound when no
	// row matched.
	UpdateBookingStatus(ctx context.Context, tenantID, id uuid.UUID, from []Status, to Status) (*Booking, error)

	// Expiration sweep. ExpireBookings returns the ids it actually
	// transitioned; a candidate confirmed between the select and the
	// update is excluded by the status re-check and must not appear.
	FindExpiredPending(ctx context.Context, cutoff time.Time) ([]Booking, error)
	ExpireBookings(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	ExpirePendingPayments(ctx context.Context, bookingIDs []uuid.UUID) (int64, error)

	// Auto-completion sweep.
	AutoCompleteDue(ctx context.Context, now time.Time) (int64, error)

	// Recurring materializer.
	ListTenants(ctx context.Context) ([]Tenant, error)
	ListActiveRules(ctx context.Context, tenantID uuid.UUID, weekday time.Weekday, onOrBefore time.Time) ([]RecurringRule, error)
	BookingExistsAt(ctx context.Context, tenantID, staffID uuid.UUID, start time.Time) (bool, error)
}
