// Package arbiter settles the race between offered workers: the first
// acceptance wins the request, everyone else already notified hears that the
// order is taken.
package arbiter

import (
	"context"
	"log/slog"

	"github.com/example/fleet-dispatch/internal/event"
	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/observability"
	"github.com/example/fleet-dispatch/internal/store"
)

type WorkerIndex interface {
	Get(id string) (models.WorkerRecord, bool)
}

type Sender interface {
	Send(ctx context.Context, recipientID string, env event.Envelope) error
}

// Journal records finalized assignments somewhere durable, best-effort.
type Journal interface {
	RecordAssignment(ctx context.Context, orderID, workerID string) error
}

type Arbiter struct {
	Requests  *store.Store
	Workers   WorkerIndex
	Transport Sender
	Journal   Journal
	Logger    *slog.Logger
}

// Accept resolves one acceptance event. Note that the accepting worker is not
// required to be among the offered candidates: any party that knows the order
// id may accept.
func (a *Arbiter) Accept(ctx context.Context, orderID, workerID string) {
	req, ok := a.Requests.Get(orderID)
	if !ok {
		a.send(ctx, workerID, event.OrderUnknown(orderID))
		a.Logger.Info("acceptance for unknown order", "order", orderID, "worker", workerID)
		return
	}

	var (
		won       bool
		requester string
		notified  []string
		att       event.Attachment
	)
	req.Update(func(r *store.Request) {
		if r.Status != models.RequestPending {
			return
		}
		r.Status = models.RequestAssigned
		won = true
		requester = r.RequesterID
		notified = append([]string(nil), r.NotifiedWorkers...)
		att = r.Attachment
	})

	if !won {
		a.send(ctx, workerID, event.OrderAlreadyTaken(orderID))
		a.Logger.Info("late acceptance", "order", orderID, "worker", workerID)
		return
	}

	observability.Assignments.Inc()
	a.Logger.Info("order assigned", "order", orderID, "worker", workerID)
	if a.Journal != nil {
		if err := a.Journal.RecordAssignment(ctx, orderID, workerID); err != nil {
			a.Logger.Warn("assignment journal write failed", "order", orderID, "error", err)
		}
	}

	// Worker location is an advisory snapshot; it may lag the real position.
	var loc *models.Coord
	if rec, ok := a.Workers.Get(workerID); ok {
		loc = rec.Loc
	}
	a.send(ctx, requester, event.OrderAssigned(orderID, workerID, loc))
	for _, id := range notified {
		if id == workerID {
			continue
		}
		a.send(ctx, id, event.OrderTakenByOther(orderID))
	}
	a.send(ctx, workerID, event.OrderConfirmed(orderID, requester, att))
}

// send is fire-and-forget: failures are logged and never abort the fan-out.
func (a *Arbiter) send(ctx context.Context, recipient string, env event.Envelope) {
	if err := a.Transport.Send(ctx, recipient, env); err != nil {
		observability.NotifyFailures.Inc()
		a.Logger.Warn("notification send failed",
			"recipient", recipient, "type", string(env.Type), "error", err)
	}
}
