package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agendly/booking-engine/internal/booking"
)

func availabilityHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := parseUUIDParam(w, r.URL.Query().Get("tenant_id"), "tenant_id")
		if !ok {
			return
		}
		staffID, ok := parseUUIDParam(w, r.URL.Query().Get("staff_id"), "staff_id")
		if !ok {
			return
		}
		serviceID, ok := parseUUIDParam(w, r.URL.Query().Get("service_id"), "service_id")
		if !ok {
			return
		}

		dateStr := r.URL.Query().Get("date")
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), tenantID, staffID, serviceID, date)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		if slots == nil {
			slots = []time.Time{}
		}
		writeJSON(w, http.StatusOK, AvailabilityResponse{Date: dateStr, Slots: slots})
	}
}

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tenantID, ok := parseUUIDParam(w, req.TenantID, "tenant_id")
		if !ok {
			return
		}
		staffID, ok := parseUUIDParam(w, req.StaffID, "staff_id")
		if !ok {
			return
		}
		serviceID, ok := parseUUIDParam(w, req.ServiceID, "service_id")
		if !ok {
			return
		}

		var customerID *uuid.UUID
		if req.CustomerID != nil {
			id, err := uuid.Parse(*req.CustomerID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_customer_id", "customer_id must be a valid UUID")
				return
			}
			customerID = &id
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC 3339")
			return
		}

		via := booking.ViaPublic
		switch req.Via {
		case "", string(booking.ViaPublic):
		case string(booking.ViaAdmin):
			via = booking.ViaAdmin
		default:
			writeError(w, http.StatusBadRequest, "invalid_via", "via must be public or admin")
			return
		}

		b, err := svc.Create(r.Context(), booking.CreateRequest{
			TenantID:   tenantID,
			StaffID:    staffID,
			ServiceID:  serviceID,
			CustomerID: customerID,
			Start:      start,
			Via:        via,
			Notes:      req.Notes,
		})
		if err != nil {
			handleCreateError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, ok := bookingIdentity(w, r)
		if !ok {
			return
		}

		b, err := svc.Get(r.Context(), tenantID, id)
		if err != nil {
			handleLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := parseUUIDParam(w, r.URL.Query().Get("tenant_id"), "tenant_id")
		if !ok {
			return
		}
		staffID, ok := parseUUIDParam(w, r.URL.Query().Get("staff_id"), "staff_id")
		if !ok {
			return
		}
		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		bookings, err := svc.ListForStaffDay(r.Context(), tenantID, staffID, date)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func confirmBookingHandler(svc *booking.Service) http.HandlerFunc {
	return transitionHandler(svc.Confirm)
}

func completeBookingHandler(svc *booking.Service) http.HandlerFunc {
	return transitionHandler(svc.Complete)
}

func noShowBookingHandler(svc *booking.Service) http.HandlerFunc {
	return transitionHandler(svc.MarkNoShow)
}

func cancelBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, ok := bookingIdentity(w, r)
		if !ok {
			return
		}

		var req CancelBookingRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		actor := req.Actor
		if actor == "" {
			actor = "customer"
		}

		b, err := svc.Cancel(r.Context(), tenantID, id, actor)
		if err != nil {
			handleTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func transitionHandler(fn func(ctx context.Context, tenantID, id uuid.UUID) (*booking.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, ok := bookingIdentity(w, r)
		if !ok {
			return
		}

		b, err := fn(r.Context(), tenantID, id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// Sweep triggers: always 200 with a count payload unless the initial query
// itself failed.

func expireSweepHandler(sw *booking.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := sw.ExpirePending(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, SweepErrorResponse{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, SweepResponse{Success: true, Count: res.Count})
	}
}

func autoCompleteSweepHandler(sw *booking.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := sw.AutoComplete(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, SweepErrorResponse{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, SweepResponse{Success: true, Count: res.Count})
	}
}

func materializeSweepHandler(sw *booking.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := sw.MaterializeRecurring(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, SweepErrorResponse{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, MaterializeResponse{
			Success: true,
			Created: res.Created,
			Skipped: res.Skipped,
			Total:   res.Total,
		})
	}
}

// Small helpers

func parseUUIDParam(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func bookingIdentity(w http.ResponseWriter, r *http.Request) (tenantID, id uuid.UUID, ok bool) {
	tenantID, ok = parseUUIDParam(w, r.URL.Query().Get("tenant_id"), "tenant_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok = parseUUIDParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}

func handleCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, "tenant_not_found", err.Error())
	case errors.Is(err, booking.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	case errors.Is(err, booking.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, booking.ErrStaffInactive):
		writeError(w, http.StatusConflict, "staff_inactive", err.Error())
	case errors.Is(err, booking.ErrStartInPast):
		writeError(w, http.StatusBadRequest, "start_in_past", err.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "slot no longer available, please choose another time")
	case errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, "tenant_not_found", err.Error())
	case errors.Is(err, booking.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	case errors.Is(err, booking.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
