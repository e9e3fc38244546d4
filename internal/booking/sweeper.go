package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agendly/booking-engine/internal/config"
	"github.com/agendly/booking-engine/internal/notify"
)

// SweepResult summarizes one expiration or auto-completion run.
type SweepResult struct {
	Count int `json:"count"`
}

// Sweeper owns the timer-triggered reconciliation jobs. Every job is
// stateless and idempotent: overlapping runs and HTTP-triggered runs are
// safe because each batched update re-checks status in its predicate.
type Sweeper struct {
	repo     Repository
	notifier notify.Publisher
	cfg      config.Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewSweeper(repo Repository, notifier notify.Publisher, cfg config.Config, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// ExpirePending releases slots held by unpaid bookings older than the
// pending timeout. Bookings and their pending payments are expired in
// batched updates; notification dispatch is best-effort and never rolls
// back the status transition.
func (w *Sweeper) ExpirePending(ctx context.Context) (SweepResult, error) {
	cutoff := w.now().Add(-w.cfg.PendingTimeout)

	candidates, err := w.repo.FindExpiredPending(ctx, cutoff)
	if err != nil {
		return SweepResult{}, fmt.Errorf("find expired pending bookings: %w", err)
	}
	if len(candidates) == 0 {
		return SweepResult{}, nil
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	byID := make(map[uuid.UUID]Booking, len(candidates))
	for _, b := range candidates {
		ids = append(ids, b.ID)
		byID[b.ID] = b
	}

	// Only the ids the update actually transitioned get the payment
	// cascade and a notification. A candidate that was paid and confirmed
	// in the meantime is not in this set.
	expired, err := w.repo.ExpireBookings(ctx, ids)
	if err != nil {
		return SweepResult{}, fmt.Errorf("expire bookings: %w", err)
	}
	if len(expired) == 0 {
		return SweepResult{}, nil
	}

	if _, err := w.repo.ExpirePendingPayments(ctx, expired); err != nil {
		w.log.Error().Err(err).Int("bookings", len(expired)).Msg("expire linked payments failed")
	}

	for _, id := range expired {
		b := byID[id]
		ev := notify.Event{
			Type:      notify.EventBookingExpired,
			BookingID: b.ID,
			TenantID:  b.TenantID,
		}
		if err := w.notifier.Publish(ctx, ev); err != nil {
			w.log.Warn().Err(err).
				Str("booking_id", b.ID.String()).
				Msg("booking_expired notification dispatch failed")
		}
	}

	w.log.Info().Int("expired", len(expired)).Msg("expiration sweep complete")
	return SweepResult{Count: len(expired)}, nil
}

// AutoComplete transitions confirmed bookings whose end time has passed
// into completed. A booking ending exactly now is completed; one ending a
// second later is not.
func (w *Sweeper) AutoComplete(ctx context.Context) (SweepResult, error) {
	completed, err := w.repo.AutoCompleteDue(ctx, w.now())
	if err != nil {
		return SweepResult{}, fmt.Errorf("auto-complete due bookings: %w", err)
	}

	if completed > 0 {
		w.log.Info().Int64("completed", completed).Msg("auto-completion sweep complete")
	}
	return SweepResult{Count: int(completed)}, nil
}
