package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendly/booking-engine/internal/config"
)

type fixture struct {
	repo      *fakeRepo
	svc       *Service
	tenantID  uuid.UUID
	staffID   uuid.UUID
	serviceID uuid.UUID
	now       time.Time
}

func newFixture(t *testing.T, prepayment bool) *fixture {
	t.Helper()

	repo := newFakeRepo()
	tenantID := uuid.New()
	staffID := uuid.New()
	serviceID := uuid.New()

	repo.tenants[tenantID] = Tenant{
		ID:                 tenantID,
		Name:               "Barbearia do Zé",
		Timezone:           "UTC",
		PrepaymentRequired: prepayment,
	}
	repo.staff[staffID] = Staff{ID: staffID, TenantID: tenantID, Name: "Ana", Active: true}
	repo.services[serviceID] = ServiceOffering{
		ID:              serviceID,
		TenantID:        tenantID,
		Name:            "Corte",
		DurationMinutes: 30,
		PriceCents:      5000,
	}
	repo.weekly = []WeeklyHours{
		{TenantID: tenantID, StaffID: staffID, Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 18 * 60},
	}

	cfg := config.Config{
		SlotGranularity: 15 * time.Minute,
		PendingTimeout:  5 * time.Minute,
	}

	svc := NewService(repo, noopLocker{}, cfg, zerolog.Nop())
	now := mondayAt(8, 0)
	svc.now = func() time.Time { return now }

	return &fixture{
		repo:      repo,
		svc:       svc,
		tenantID:  tenantID,
		staffID:   staffID,
		serviceID: serviceID,
		now:       now,
	}
}

func (fx *fixture) createAt(t *testing.T, start time.Time, via CreatedVia) *Booking {
	t.Helper()
	b, err := fx.svc.Create(context.Background(), CreateRequest{
		TenantID:  fx.tenantID,
		StaffID:   fx.staffID,
		ServiceID: fx.serviceID,
		Start:     start,
		Via:       via,
	})
	require.NoError(t, err)
	return b
}

func TestCreateWithoutPrepayment(t *testing.T) {
	fx := newFixture(t, false)

	b := fx.createAt(t, mondayAt(10, 0), ViaPublic)

	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, mondayAt(10, 30), b.EndTime)
	assert.Equal(t, ViaPublic, b.CreatedVia)
	assert.Nil(t, fx.repo.payments[b.ID])
}

func TestCreateWithPrepaymentHold(t *testing.T) {
	fx := newFixture(t, true)

	b := fx.createAt(t, mondayAt(10, 0), ViaPublic)

	assert.Equal(t, StatusPendingPayment, b.Status)
	p := fx.repo.payments[b.ID]
	require.NotNil(t, p)
	assert.Equal(t, PaymentPending, p.Status)
	assert.Equal(t, int64(5000), p.AmountCents)
}

func TestCreateByAdminSkipsPrepayment(t *testing.T) {
	fx := newFixture(t, true)

	b := fx.createAt(t, mondayAt(10, 0), ViaAdmin)

	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Nil(t, fx.repo.payments[b.ID])
}

func TestCreateSlotConflict(t *testing.T) {
	fx := newFixture(t, true)
	fx.createAt(t, mondayAt(10, 0), ViaPublic)

	_, err := fx.svc.Create(context.Background(), CreateRequest{
		TenantID:  fx.tenantID,
		StaffID:   fx.staffID,
		ServiceID: fx.serviceID,
		Start:     mondayAt(10, 15), // overlaps the 10:00-10:30 hold
		Via:       ViaPublic,
	})

	assert.ErrorIs(t, err, ErrSlotConflict)
	// The conflicting attempt must not leave a payment behind.
	assert.Len(t, fx.repo.payments, 1)
}

func TestCreatePendingHoldBlocksSlot(t *testing.T) {
	fx := newFixture(t, true)
	fx.createAt(t, mondayAt(10, 0), ViaPublic)

	// A second customer cannot take the slot while the hold is unpaid.
	_, err := fx.svc.Create(context.Background(), CreateRequest{
		TenantID:  fx.tenantID,
		StaffID:   fx.staffID,
		ServiceID: fx.serviceID,
		Start:     mondayAt(10, 0),
		Via:       ViaPublic,
	})
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestCreateRejectsPastStart(t *testing.T) {
	fx := newFixture(t, false)

	_, err := fx.svc.Create(context.Background(), CreateRequest{
		TenantID:  fx.tenantID,
		StaffID:   fx.staffID,
		ServiceID: fx.serviceID,
		Start:     fx.now.Add(-time.Hour),
		Via:       ViaPublic,
	})
	assert.ErrorIs(t, err, ErrStartInPast)
}

func TestCreateRejectsInactiveStaff(t *testing.T) {
	fx := newFixture(t, false)
	s := fx.repo.staff[fx.staffID]
	s.Active = false
	fx.repo.staff[fx.staffID] = s

	_, err := fx.svc.Create(context.Background(), CreateRequest{
		TenantID:  fx.tenantID,
		StaffID:   fx.staffID,
		ServiceID: fx.serviceID,
		Start:     mondayAt(10, 0),
		Via:       ViaPublic,
	})
	assert.ErrorIs(t, err, ErrStaffInactive)
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	fx := newFixture(t, false)
	start := mondayAt(10, 0)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.Create(context.Background(), CreateRequest{
				TenantID:  fx.tenantID,
				StaffID:   fx.staffID,
				ServiceID: fx.serviceID,
				Start:     start,
				Via:       ViaPublic,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrSlotConflict)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestAvailableSlotsCreateConsistency(t *testing.T) {
	fx := newFixture(t, false)
	fx.createAt(t, mondayAt(10, 0), ViaPublic)

	slots, err := fx.svc.AvailableSlots(context.Background(), fx.tenantID, fx.staffID, fx.serviceID, mondayAt(0, 0))
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	assert.NotContains(t, slots, mondayAt(10, 0))
	assert.NotContains(t, slots, mondayAt(9, 45))

	// An offered slot is creatable, and once taken it stops being offered.
	fx.createAt(t, slots[0], ViaPublic)

	after, err := fx.svc.AvailableSlots(context.Background(), fx.tenantID, fx.staffID, fx.serviceID, mondayAt(0, 0))
	require.NoError(t, err)
	assert.NotContains(t, after, slots[0])
	require.NotEmpty(t, after)
	fx.createAt(t, after[0], ViaPublic)
}

func TestAvailableSlotsEmptyDayIsNotAnError(t *testing.T) {
	fx := newFixture(t, false)

	// Sunday has no working hours configured.
	sunday := mondayAt(0, 0).AddDate(0, 0, -1)
	slots, err := fx.svc.AvailableSlots(context.Background(), fx.tenantID, fx.staffID, fx.serviceID, sunday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		from    Status
		op      func(fx *fixture, id uuid.UUID) error
		wantTo  Status
		wantErr error
	}{
		{
			name: "confirm pending",
			from: StatusPendingPayment,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Confirm(ctx, fx.tenantID, id)
				return err
			},
			wantTo: StatusConfirmed,
		},
		{
			name: "confirm already confirmed",
			from: StatusConfirmed,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Confirm(ctx, fx.tenantID, id)
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "cancel pending",
			from: StatusPendingPayment,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Cancel(ctx, fx.tenantID, id, "customer")
				return err
			},
			wantTo: StatusCancelled,
		},
		{
			name: "cancel confirmed",
			from: StatusConfirmed,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Cancel(ctx, fx.tenantID, id, "staff")
				return err
			},
			wantTo: StatusCancelled,
		},
		{
			name: "cancel completed fails",
			from: StatusCompleted,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Cancel(ctx, fx.tenantID, id, "staff")
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "cancel expired fails",
			from: StatusExpired,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Cancel(ctx, fx.tenantID, id, "staff")
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "complete confirmed",
			from: StatusConfirmed,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Complete(ctx, fx.tenantID, id)
				return err
			},
			wantTo: StatusCompleted,
		},
		{
			name: "complete pending fails",
			from: StatusPendingPayment,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.Complete(ctx, fx.tenantID, id)
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "no-show confirmed",
			from: StatusConfirmed,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.MarkNoShow(ctx, fx.tenantID, id)
				return err
			},
			wantTo: StatusNoShow,
		},
		{
			name: "no-show cancelled fails",
			from: StatusCancelled,
			op: func(fx *fixture, id uuid.UUID) error {
				_, err := fx.svc.MarkNoShow(ctx, fx.tenantID, id)
				return err
			},
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, false)
			id := uuid.New()
			fx.repo.bookings[id] = &Booking{
				ID:        id,
				TenantID:  fx.tenantID,
				StaffID:   fx.staffID,
				ServiceID: fx.serviceID,
				StartTime: mondayAt(10, 0),
				EndTime:   mondayAt(10, 30),
				Status:    tt.from,
				CreatedAt: fx.now,
			}

			err := tt.op(fx, id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, fx.repo.bookings[id].Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTo, fx.repo.bookings[id].Status)
		})
	}
}

func TestTransitionUnknownBooking(t *testing.T) {
	fx := newFixture(t, false)

	_, err := fx.svc.Confirm(context.Background(), fx.tenantID, uuid.New())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
