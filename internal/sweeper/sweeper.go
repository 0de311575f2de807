// Package sweeper retires stale holds: pending reservations past their TTL
// become expired, unpaid confirmed reservations past theirs become canceled.
package sweeper

import (
	"context"
	"time"

	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	"rentcore/pkg/model"
)

// Candidates finds reservations that may be stale. The engine re-checks each
// one under its resource lock, so a candidate list may be out of date.
type Candidates interface {
	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Reservation, error)
	FindStaleUnpaid(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Reservation, error)
}

type Transitions interface {
	ExpireIfStale(ctx context.Context, id string) (bool, error)
	CancelIfUnpaidStale(ctx context.Context, id string) (bool, error)
}

type Report struct {
	Expired  int `json:"expired"`
	Canceled int `json:"canceled"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func (r Report) Empty() bool {
	return r.Expired == 0 && r.Canceled == 0 && r.Failed == 0
}

type Sweeper struct {
	candidates  Candidates
	transitions Transitions
	clock       clock.Clock
	cfg         *config.Config
}

func New(candidates Candidates, transitions Transitions, clk clock.Clock, cfg *config.Config) *Sweeper {
	return &Sweeper{
		candidates:  candidates,
		transitions: transitions,
		clock:       clk,
		cfg:         cfg,
	}
}

// Run sweeps every SweepInterval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.cfg.Log.Info("Hold sweeper started",
		"interval", s.cfg.SweepInterval,
		"batch_size", s.cfg.SweepBatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Hold sweeper stopped")
			return
		case <-ticker.C:
			report := s.SweepOnce(ctx)
			if !report.Empty() {
				s.cfg.Log.Info("Sweep finished",
					"expired", report.Expired,
					"canceled", report.Canceled,
					"skipped", report.Skipped,
					"failed", report.Failed,
				)
			}
		}
	}
}

// SweepOnce runs a single pass. A failure on one reservation is logged and
// counted; it never stops the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) Report {
	var report Report
	now := s.clock.Now().UTC()

	pending, err := s.candidates.FindStalePending(ctx, now.Add(-s.cfg.PendingHoldTTL), s.cfg.SweepBatchSize)
	if err != nil {
		s.cfg.Log.Error("Failed to list stale pending reservations", "error", err)
		report.Failed++
	}
	for _, r := range pending {
		s.apply(ctx, r.ID, "expire", s.transitions.ExpireIfStale, &report.Expired, &report)
	}

	unpaid, err := s.candidates.FindStaleUnpaid(ctx, now.Add(-s.cfg.UnpaidHoldTTL), s.cfg.SweepBatchSize)
	if err != nil {
		s.cfg.Log.Error("Failed to list stale unpaid reservations", "error", err)
		report.Failed++
	}
	for _, r := range unpaid {
		s.apply(ctx, r.ID, "cancel", s.transitions.CancelIfUnpaidStale, &report.Canceled, &report)
	}

	return report
}

func (s *Sweeper) apply(ctx context.Context, id, action string, fn func(context.Context, string) (bool, error), counter *int, report *Report) {
	if ctx.Err() != nil {
		return
	}
	acted, err := fn(ctx, id)
	switch {
	case err != nil:
		report.Failed++
		s.cfg.Log.Warn("Sweep item failed", "reservation_id", id, "action", action, "error", err)
	case acted:
		*counter++
		s.cfg.Log.Debug("Sweep item applied", "reservation_id", id, "action", action)
	default:
		report.Skipped++
	}
}
