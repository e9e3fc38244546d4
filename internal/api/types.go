package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/agendly/booking-engine/internal/booking"
)

type CreateBookingRequest struct {
	TenantID   string  `json:"tenant_id"`
	StaffID    string  `json:"staff_id"`
	ServiceID  string  `json:"service_id"`
	CustomerID *string `json:"customer_id,omitempty"`
	Start      string  `json:"start"` // RFC 3339
	Via        string  `json:"via,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

type CancelBookingRequest struct {
	Actor string `json:"actor,omitempty"`
}

type BookingResponse struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	StaffID    uuid.UUID  `json:"staff_id"`
	ServiceID  uuid.UUID  `json:"service_id"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Status     string     `json:"status"`
	CreatedVia string     `json:"created_via"`
	Notes      string     `json:"notes,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:         b.ID,
		TenantID:   b.TenantID,
		StaffID:    b.StaffID,
		ServiceID:  b.ServiceID,
		CustomerID: b.CustomerID,
		Start:      b.StartTime,
		End:        b.EndTime,
		Status:     string(b.Status),
		CreatedVia: string(b.CreatedVia),
		Notes:      b.Notes,
	}
}

type AvailabilityResponse struct {
	Date  string      `json:"date"`
	Slots []time.Time `json:"slots"`
}

type SweepResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type MaterializeResponse struct {
	Success bool `json:"success"`
	Created int  `json:"created"`
	Skipped int  `json:"skipped"`
	Total   int  `json:"total"`
}

type SweepErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
