// Package dispatch drives the sequential offer escalation: on every tick each
// pending request advances its candidate cursor by at most one position,
// offering to the next available candidate or skipping one that went offline.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/fleet-dispatch/internal/event"
	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/observability"
	"github.com/example/fleet-dispatch/internal/store"
)

// Clock is injectable so ticks can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func RealClock() Clock { return realClock{} }

// WorkerIndex resolves a candidate's current record at dispatch time.
type WorkerIndex interface {
	Get(id string) (models.WorkerRecord, bool)
}

// Sender delivers one outbound envelope to one recipient.
type Sender interface {
	Send(ctx context.Context, recipientID string, env event.Envelope) error
}

type Scheduler struct {
	Requests      *store.Store
	Workers       WorkerIndex
	Transport     Sender
	Clock         Clock
	OfferInterval time.Duration
	TickInterval  time.Duration
	Logger        *slog.Logger
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances every pending request once. Exported so tests can drive the
// schedule without real timers.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.Clock.Now()
	stalled := 0
	for _, req := range s.Requests.Pending() {
		if s.advance(ctx, req, now) {
			stalled++
		}
	}
	observability.RequestsStalled.Set(float64(stalled))
}

// advance moves one request's cursor by at most one position. It reports
// whether the request is stalled (pending with an exhausted cursor).
func (s *Scheduler) advance(ctx context.Context, req *store.Request, now time.Time) bool {
	stalled := false
	req.Update(func(r *store.Request) {
		if r.Status != models.RequestPending {
			return
		}
		if now.Sub(r.LastOfferAt) < s.OfferInterval {
			return
		}
		if r.NextOfferIndex >= len(r.Candidates) {
			// exhausted: the request stays pending with no further action
			stalled = true
			return
		}

		cand := r.Candidates[r.NextOfferIndex]
		worker, ok := s.Workers.Get(cand.WorkerID)
		if !ok || worker.Status != models.StatusAvailable {
			// Skip without touching LastOfferAt: the stale candidate must
			// not consume the offer-interval budget, so the next tick moves
			// straight on to the following candidate.
			r.NextOfferIndex++
			observability.OfferSkips.Inc()
			s.Logger.Debug("skipping unavailable candidate",
				"request", r.ID, "worker", cand.WorkerID, "cursor", r.NextOfferIndex)
			return
		}

		env := event.Offer(r.Kind, r.Attachment)
		if err := s.Transport.Send(ctx, cand.WorkerID, env); err != nil {
			// A failed offer attempt still consumes its slot.
			observability.NotifyFailures.Inc()
			s.Logger.Warn("offer send failed",
				"request", r.ID, "worker", cand.WorkerID, "error", err)
		} else {
			observability.OffersSent.Inc()
			s.Logger.Info("offer sent",
				"request", r.ID, "worker", cand.WorkerID,
				"distance_m", cand.DistanceMeters, "cursor", r.NextOfferIndex)
		}
		r.NotifiedWorkers = append(r.NotifiedWorkers, cand.WorkerID)
		r.LastOfferAt = now
		r.NextOfferIndex++
	})
	return stalled
}
