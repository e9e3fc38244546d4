package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agendly/booking-engine/internal/config"
	redisclient "github.com/agendly/booking-engine/internal/redis"
)

var (
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStartInPast       = errors.New("booking start is in the past")
	ErrStaffInactive     = errors.New("staff member is not active")
)

type CreateRequest struct {
	TenantID   uuid.UUID
	StaffID    uuid.UUID
	ServiceID  uuid.UUID
	CustomerID *uuid.UUID
	Start      time.Time
	Via        CreatedVia
	Notes      string
}

type Service struct {
	repo   Repository
	locker redisclient.SlotLocker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.SlotLocker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// AvailableSlots computes the bookable slot starts for one staff member,
// one service and one date. The date's weekday is resolved in the tenant's
// timezone; stored times stay UTC.
func (s *Service) AvailableSlots(ctx context.Context, tenantID, staffID, serviceID uuid.UUID, date time.Time) ([]time.Time, error) {
	tenant, err := s.repo.GetTenantByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	loc, err := time.LoadLocation(tenant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load tenant timezone %q: %w", tenant.Timezone, err)
	}

	if _, err := s.repo.GetStaffByID(ctx, tenantID, staffID); err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	svc, err := s.repo.GetServiceByID(ctx, tenantID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}

	localDate := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	weekly, err := s.repo.ListWeeklyHours(ctx, tenantID, staffID, localDate.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load weekly hours: %w", err)
	}

	override, err := s.repo.GetScheduleOverride(ctx, tenantID, staffID, localDate)
	if err != nil && !errors.Is(err, ErrOverrideNotFound) {
		return nil, fmt.Errorf("load schedule override: %w", err)
	}

	open := ResolveWorkingIntervals(localDate, loc, weekly, override)
	if len(open) == 0 {
		return nil, nil
	}

	busy, err := s.repo.ListBusyIntervals(ctx, tenantID, staffID, open[0].Start, open[len(open)-1].End)
	if err != nil {
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}

	opts := SlotOptions{
		Duration:    time.Duration(svc.DurationMinutes) * time.Minute,
		Granularity: s.cfg.SlotGranularity,
		MinLeadTime: s.cfg.MinLeadTime,
	}
	now := s.now()
	if now.In(loc).Format("2006-01-02") == localDate.Format("2006-01-02") {
		opts.Now = now
	}

	return ComputeSlots(open, busy, opts), nil
}

// Create reserves a slot. The availability overlap check is re-run inside a
// per-slot lock, and the insert itself is backed by the store's exclusion
// constraint, so concurrent creators for the identical slot cannot both
// succeed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	tenant, err := s.repo.GetTenantByID(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	staff, err := s.repo.GetStaffByID(ctx, req.TenantID, req.StaffID)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if !staff.Active {
		return nil, ErrStaffInactive
	}

	svc, err := s.repo.GetServiceByID(ctx, req.TenantID, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}

	start := req.Start.UTC()
	if start.Before(s.now()) {
		return nil, ErrStartInPast
	}
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	status := StatusConfirmed
	requiresPrepayment := tenant.PrepaymentRequired && req.Via == ViaPublic
	if requiresPrepayment {
		status = StatusPendingPayment
	}

	var created *Booking

	err = s.locker.WithSlotLock(ctx, req.TenantID, req.StaffID, start, func(lockCtx context.Context) error {
		taken, err := s.repo.HasOverlap(lockCtx, req.TenantID, req.StaffID, start, end)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if taken {
			return ErrSlotConflict
		}

		b := &Booking{
			ID:         uuid.New(),
			TenantID:   req.TenantID,
			StaffID:    req.StaffID,
			ServiceID:  req.ServiceID,
			CustomerID: req.CustomerID,
			StartTime:  start,
			EndTime:    end,
			Status:     status,
			CreatedVia: req.Via,
			Notes:      req.Notes,
		}

		var payment *Payment
		if requiresPrepayment {
			payment = &Payment{
				ID:          uuid.New(),
				TenantID:    req.TenantID,
				BookingID:   b.ID,
				Status:      PaymentPending,
				AmountCents: svc.PriceCents,
			}
		}

		if err := s.repo.CreateBooking(lockCtx, b, payment); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		created = b
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Str("booking_id", created.ID.String()).
		Str("tenant_id", created.TenantID.String()).
		Str("staff_id", created.StaffID.String()).
		Time("start", created.StartTime).
		Str("status", string(created.Status)).
		Msg("booking created")

	return created, nil
}

// Confirm moves a pending_payment booking to confirmed.
func (s *Service) Confirm(ctx context.Context, tenantID, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, tenantID, id, []Status{StatusPendingPayment}, StatusConfirmed)
}

// Cancel moves a pending_payment or confirmed booking to cancelled. The
// booking row is kept; cancellation is never a delete.
func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID, actor string) (*Booking, error) {
	b, err := s.transition(ctx, tenantID, id, []Status{StatusPendingPayment, StatusConfirmed}, StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("booking_id", b.ID.String()).
		Str("actor", actor).
		Msg("booking cancelled")
	return b, nil
}

// Complete moves a confirmed booking to completed. Used by manual staff
// action and by the auto-completion sweep.
func (s *Service) Complete(ctx context.Context, tenantID, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, tenantID, id, []Status{StatusConfirmed}, StatusCompleted)
}

// MarkNoShow moves a confirmed booking to no_show. Manual only, never
// triggered by a sweep.
func (s *Service) MarkNoShow(ctx context.Context, tenantID, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, tenantID, id, []Status{StatusConfirmed}, StatusNoShow)
}

func (s *Service) transition(ctx context.Context, tenantID, id uuid.UUID, from []Status, to Status) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	allowed := false
	for _, f := range from {
		if b.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, tenantID, id, from, to)
	if err != nil {
		// Lost a race with a concurrent transition; the status filter in
		// the update predicate matched nothing.
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("transition booking to %s: %w", to, err)
	}

	return updated, nil
}

// Get returns one booking.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, tenantID, id)
}

// ListForStaffDay returns all bookings touching the staff member's local
// day, for the dashboard agenda view.
func (s *Service) ListForStaffDay(ctx context.Context, tenantID, staffID uuid.UUID, date time.Time) ([]Booking, error) {
	tenant, err := s.repo.GetTenantByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	loc, err := time.LoadLocation(tenant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load tenant timezone %q: %w", tenant.Timezone, err)
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return s.repo.ListBookingsForStaffDay(ctx, tenantID, staffID, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC())
}
