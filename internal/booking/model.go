package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
	StatusNoShow         Status = "no_show"
)

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusNoShow:
		return true
	}
	return false
}

// BlocksSlot reports whether a booking in this status still occupies its
// interval. A pending_payment hold keeps the slot reserved until the
// expiration sweep releases it.
func (s Status) BlocksSlot() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// BusyStatuses are the statuses whose bookings count against availability.
// Must stay in sync with the exclusion constraint predicate in the schema.
var BusyStatuses = []Status{StatusPendingPayment, StatusConfirmed, StatusCompleted, StatusNoShow}

type CreatedVia string

const (
	ViaPublic    CreatedVia = "public"
	ViaAdmin     CreatedVia = "admin"
	ViaRecurring CreatedVia = "recurring"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
	PaymentExpired  PaymentStatus = "expired"
)

type Tenant struct {
	ID                 uuid.UUID
	Name               string
	Timezone           string // IANA zone name, e.g. America/Sao_Paulo
	PrepaymentRequired bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Staff struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceOffering is one bookable service a tenant offers, priced in the
// tenant's smallest currency unit.
type ServiceOffering struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	DurationMinutes int
	PriceCents      int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Booking struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	StaffID      uuid.UUID
	ServiceID    uuid.UUID
	CustomerID   *uuid.UUID // nil for walk-ins
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	CreatedVia   CreatedVia
	ReminderSent bool
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Block is an explicit unavailability window for a staff member.
type Block struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	StaffID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyHours is one open interval of a staff member's weekly schedule,
// expressed as minutes from local midnight.
type WeeklyHours struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	StaffID     uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// ScheduleOverride replaces the weekly hours for one specific date.
// Closed means the staff member does not work that date at all.
type ScheduleOverride struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	StaffID     uuid.UUID
	Date        time.Time // midnight, date-only significance
	StartMinute int
	EndMinute   int
	Closed      bool
}

// RecurringRule is a standing weekly appointment for a recurring client.
// The materializer back-fills a completed booking for each elapsed
// occurrence; the rule itself is never mutated by the booking lifecycle.
type RecurringRule struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	CustomerID  uuid.UUID
	StaffID     uuid.UUID
	ServiceID   uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	Active      bool
	StartDate   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Payment struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	BookingID   uuid.UUID
	Status      PaymentStatus
	AmountCents int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics: an interval ending exactly when
// another starts does not conflict.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}
