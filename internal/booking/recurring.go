package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaterializeResult summarizes one recurring-materializer run.
type MaterializeResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// MaterializeRecurring back-fills a completed booking for every recurring
// client rule whose slot for "today" has already elapsed. "Today" and the
// rule weekday are resolved per tenant in the tenant's IANA timezone; the
// inserted booking is stored in UTC. Safe to re-run: an occurrence that was
// already materialized is counted as skipped.
func (w *Sweeper) MaterializeRecurring(ctx context.Context) (MaterializeResult, error) {
	tenants, err := w.repo.ListTenants(ctx)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("list tenants: %w", err)
	}

	now := w.now()
	var res MaterializeResult

	for _, tenant := range tenants {
		loc, err := time.LoadLocation(tenant.Timezone)
		if err != nil {
			w.log.Error().Err(err).
				Str("tenant_id", tenant.ID.String()).
				Str("timezone", tenant.Timezone).
				Msg("invalid tenant timezone, skipping tenant")
			continue
		}

		localNow := now.In(loc)
		midnight := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)

		rules, err := w.repo.ListActiveRules(ctx, tenant.ID, localNow.Weekday(), midnight)
		if err != nil {
			w.log.Error().Err(err).
				Str("tenant_id", tenant.ID.String()).
				Msg("list recurring rules failed, skipping tenant")
			continue
		}

		for _, rule := range rules {
			res.Total++
			if w.materializeRule(ctx, rule, midnight, now) {
				res.Created++
			} else {
				res.Skipped++
			}
		}
	}

	w.log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("total", res.Total).
		Msg("recurring materializer run complete")

	return res, nil
}

// materializeRule records one rule's occurrence for today. Returns true
// when a booking was inserted. Failures are logged and reported as a skip
// so one bad rule never aborts the rest of the run.
func (w *Sweeper) materializeRule(ctx context.Context, rule RecurringRule, midnight, now time.Time) bool {
	svc, err := w.repo.GetServiceByID(ctx, rule.TenantID, rule.ServiceID)
	if err != nil {
		w.log.Error().Err(err).
			Str("rule_id", rule.ID.String()).
			Str("service_id", rule.ServiceID.String()).
			Msg("load service for recurring rule failed")
		return false
	}

	start := midnight.Add(time.Duration(rule.StartMinute) * time.Minute).UTC()
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	// Only past visits are recorded; future occurrences are left to the
	// normal booking flow.
	if end.After(now) {
		return false
	}

	exists, err := w.repo.BookingExistsAt(ctx, rule.TenantID, rule.StaffID, start)
	if err != nil {
		w.log.Error().Err(err).
			Str("rule_id", rule.ID.String()).
			Msg("check existing booking for recurring rule failed")
		return false
	}
	if exists {
		return false
	}

	customerID := rule.CustomerID
	b := &Booking{
		ID:         uuid.New(),
		TenantID:   rule.TenantID,
		StaffID:    rule.StaffID,
		ServiceID:  rule.ServiceID,
		CustomerID: &customerID,
		StartTime:  start,
		EndTime:    end,
		Status:     StatusCompleted,
		CreatedVia: ViaRecurring,
		Notes:      "Visita recorrente registrada automaticamente",
	}

	if err := w.repo.CreateBooking(ctx, b, nil); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			w.log.Debug().
				Str("rule_id", rule.ID.String()).
				Time("start", start).
				Msg("recurring slot already occupied")
			return false
		}
		w.log.Error().Err(err).
			Str("rule_id", rule.ID.String()).
			Msg("insert recurring booking failed")
		return false
	}

	return true
}
