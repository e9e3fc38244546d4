package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository that mirrors the store-level
// guarantees the real schema provides, including the no-overlap exclusion
// on slot-blocking bookings.
type fakeRepo struct {
	mu sync.Mutex

	tenants  map[uuid.UUID]Tenant
	staff    map[uuid.UUID]Staff
	services map[uuid.UUID]ServiceOffering
	bookings map[uuid.UUID]*Booking
	payments map[uuid.UUID]*Payment // keyed by booking id
	weekly   []WeeklyHours
	override map[string]ScheduleOverride
	blocks   []Block
	rules    []RecurringRule

	createHook      func(b *Booking) error
	expireHook      func()
	findExpiredErr  error
	autoCompleteErr error
	listTenantsErr  error
	listRulesErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tenants:  make(map[uuid.UUID]Tenant),
		staff:    make(map[uuid.UUID]Staff),
		services: make(map[uuid.UUID]ServiceOffering),
		bookings: make(map[uuid.UUID]*Booking),
		payments: make(map[uuid.UUID]*Payment),
		override: make(map[string]ScheduleOverride),
	}
}

func overrideKey(staffID uuid.UUID, date time.Time) string {
	return staffID.String() + "|" + date.Format("2006-01-02")
}

func (f *fakeRepo) GetTenantByID(_ context.Context, id uuid.UUID) (*Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return &t, nil
}

func (f *fakeRepo) GetStaffByID(_ context.Context, tenantID, id uuid.UUID) (*Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.staff[id]
	if !ok || s.TenantID != tenantID {
		return nil, ErrStaffNotFound
	}
	return &s, nil
}

func (f *fakeRepo) GetServiceByID(_ context.Context, tenantID, id uuid.UUID) (*ServiceOffering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[id]
	if !ok || s.TenantID != tenantID {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (f *fakeRepo) GetBookingByID(_ context.Context, tenantID, id uuid.UUID) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) ListBookingsForStaffDay(_ context.Context, tenantID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Booking
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.StaffID == staffID &&
			b.StartTime.Before(dayEnd) && b.EndTime.After(dayStart) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListWeeklyHours(_ context.Context, tenantID, staffID uuid.UUID, weekday time.Weekday) ([]WeeklyHours, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []WeeklyHours
	for _, wh := range f.weekly {
		if wh.TenantID == tenantID && wh.StaffID == staffID && wh.Weekday == weekday {
			out = append(out, wh)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetScheduleOverride(_ context.Context, _, staffID uuid.UUID, date time.Time) (*ScheduleOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.override[overrideKey(staffID, date)]
	if !ok {
		return nil, ErrOverrideNotFound
	}
	return &o, nil
}

func (f *fakeRepo) ListBusyIntervals(_ context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]Interval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	window := Interval{Start: from, End: to}
	var out []Interval
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.StaffID == staffID && b.Status.BlocksSlot() &&
			window.Overlaps(Interval{Start: b.StartTime, End: b.EndTime}) {
			out = append(out, Interval{Start: b.StartTime, End: b.EndTime})
		}
	}
	for _, bl := range f.blocks {
		if bl.TenantID == tenantID && bl.StaffID == staffID &&
			window.Overlaps(Interval{Start: bl.StartTime, End: bl.EndTime}) {
			out = append(out, Interval{Start: bl.StartTime, End: bl.EndTime})
		}
	}
	return out, nil
}

func (f *fakeRepo) HasOverlap(_ context.Context, tenantID, staffID uuid.UUID, start, end time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasOverlapLocked(tenantID, staffID, start, end), nil
}

func (f *fakeRepo) hasOverlapLocked(tenantID, staffID uuid.UUID, start, end time.Time) bool {
	candidate := Interval{Start: start, End: end}
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.StaffID == staffID && b.Status.BlocksSlot() &&
			candidate.Overlaps(Interval{Start: b.StartTime, End: b.EndTime}) {
			return true
		}
	}
	return false
}

func (f *fakeRepo) CreateBooking(_ context.Context, b *Booking, payment *Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createHook != nil {
		if err := f.createHook(b); err != nil {
			return err
		}
	}

	if b.Status.BlocksSlot() && f.hasOverlapLocked(b.TenantID, b.StaffID, b.StartTime, b.EndTime) {
		return ErrSlotConflict
	}

	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	cp := *b
	f.bookings[b.ID] = &cp
	if payment != nil {
		pp := *payment
		f.payments[payment.BookingID] = &pp
	}
	return nil
}

func (f *fakeRepo) UpdateBookingStatus(_ context.Context, tenantID, id uuid.UUID, from []Status, to Status) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, ErrBookingNotFound
	}

	matched := false
	for _, fs := range from {
		if b.Status == fs {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrBookingNotFound
	}

	b.Status = to
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) FindExpiredPending(_ context.Context, cutoff time.Time) ([]Booking, error) {
	if f.findExpiredErr != nil {
		return nil, f.findExpiredErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Booking
	for _, b := range f.bookings {
		if b.Status == StatusPendingPayment && !b.CreatedAt.After(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) ExpireBookings(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if f.expireHook != nil {
		f.expireHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []uuid.UUID
	for _, id := range ids {
		if b, ok := f.bookings[id]; ok && b.Status == StatusPendingPayment {
			b.Status = StatusExpired
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (f *fakeRepo) ExpirePendingPayments(_ context.Context, bookingIDs []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range bookingIDs {
		if p, ok := f.payments[id]; ok && p.Status == PaymentPending {
			p.Status = PaymentExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) AutoCompleteDue(_ context.Context, now time.Time) (int64, error) {
	if f.autoCompleteErr != nil {
		return 0, f.autoCompleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bookings {
		if b.Status == StatusConfirmed && !b.EndTime.After(now) {
			b.Status = StatusCompleted
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ListTenants(_ context.Context) ([]Tenant, error) {
	if f.listTenantsErr != nil {
		return nil, f.listTenantsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Tenant
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepo) ListActiveRules(_ context.Context, tenantID uuid.UUID, weekday time.Weekday, onOrBefore time.Time) ([]RecurringRule, error) {
	if f.listRulesErr != nil {
		return nil, f.listRulesErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RecurringRule
	for _, r := range f.rules {
		if r.TenantID == tenantID && r.Weekday == weekday && r.Active && !r.StartDate.After(onOrBefore) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) BookingExistsAt(_ context.Context, tenantID, staffID uuid.UUID, start time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.StaffID == staffID && b.Status.BlocksSlot() && b.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

// noopLocker runs the critical section directly.
type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, _, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
