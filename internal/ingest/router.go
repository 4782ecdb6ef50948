// Package ingest routes raw inbound envelopes to the engine components.
// Every transport delivers (senderID, payload) pairs here; none of the
// failure modes below are fatal to the process.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/fleet-dispatch/internal/arbiter"
	"github.com/example/fleet-dispatch/internal/event"
	"github.com/example/fleet-dispatch/internal/match"
	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/observability"
	"github.com/example/fleet-dispatch/internal/registry"
	"github.com/example/fleet-dispatch/internal/store"
)

// ClassResolver maps a sender identity to its implied worker class.
type ClassResolver interface {
	ClassOf(id string) (models.WorkerClass, bool)
}

type Sender interface {
	Send(ctx context.Context, recipientID string, env event.Envelope) error
}

// Journal mirrors admitted requests somewhere durable, best-effort.
type Journal interface {
	RecordRequest(ctx context.Context, orderID string, kind models.RequestKind, requesterID string, candidates int) error
}

type Router struct {
	Members   ClassResolver
	Registry  *registry.Registry
	Matcher   *match.Engine
	Requests  *store.Store
	Arbiter   *arbiter.Arbiter
	Transport Sender
	Journal   Journal
	Logger    *slog.Logger
}

// HandleInbound processes one raw envelope attributed to senderID.
func (r *Router) HandleInbound(ctx context.Context, senderID string, raw []byte) {
	ev, err := event.DecodeInbound(raw)
	if err != nil {
		// Malformed input is dropped without notifying anyone.
		observability.EventsInvalid.Inc()
		r.Logger.Debug("dropping malformed event", "sender", senderID, "error", err)
		return
	}

	switch ev := ev.(type) {
	case event.Availability:
		observability.EventsInbound.WithLabelValues(string(event.TypeDriverAvailability)).Inc()
		r.handleAvailability(senderID, ev)
	case event.Request:
		observability.EventsInbound.WithLabelValues(string(requestType(ev.Kind))).Inc()
		r.handleRequest(ctx, senderID, ev)
	case event.Acceptance:
		observability.EventsInbound.WithLabelValues(string(acceptType(ev.Kind))).Inc()
		r.Arbiter.Accept(ctx, ev.OrderID, senderID)
	}
}

func (r *Router) handleAvailability(senderID string, ev event.Availability) {
	class, ok := r.Members.ClassOf(senderID)
	if !ok {
		observability.UnauthorizedUpdates.Inc()
		r.Logger.Warn("availability update from non-member", "sender", senderID)
		return
	}
	// The registry re-checks authorization for the resolved class.
	if err := r.Registry.UpsertAvailability(senderID, class, ev.Status, ev.Location); err != nil {
		r.Logger.Warn("availability update rejected", "sender", senderID, "error", err)
	}
}

func (r *Router) handleRequest(ctx context.Context, senderID string, ev event.Request) {
	if ev.Pickup == nil {
		// Origin is mandatory. The requester is deliberately not notified
		// here, unlike the no-candidates outcome below.
		r.Logger.Warn("request without origin coordinates dropped",
			"sender", senderID, "order", ev.OrderID)
		return
	}

	candidates := r.Matcher.ComputeCandidates(*ev.Pickup, ev.Kind.Class())
	if len(candidates) == 0 {
		observability.NoCandidates.Inc()
		r.Logger.Info("no candidates for request", "order", ev.OrderID, "kind", string(ev.Kind))
		if err := r.Transport.Send(ctx, senderID, event.NoDriversAvailable(ev.OrderID)); err != nil {
			observability.NotifyFailures.Inc()
			r.Logger.Warn("no-drivers notification failed", "recipient", senderID, "error", err)
		}
		return
	}

	if _, err := r.Requests.Create(ev.OrderID, ev.Kind, senderID, candidates, ev.Attachment); err != nil {
		if errors.Is(err, store.ErrDuplicateRequest) {
			observability.RequestsDuplicate.Inc()
			r.Logger.Info("duplicate request ignored", "order", ev.OrderID, "sender", senderID)
			return
		}
		r.Logger.Error("request creation failed", "order", ev.OrderID, "error", err)
		return
	}
	observability.RequestsCreated.Inc()
	r.Logger.Info("request admitted",
		"order", ev.OrderID, "kind", string(ev.Kind), "candidates", len(candidates))

	if r.Journal != nil {
		if err := r.Journal.RecordRequest(ctx, ev.OrderID, ev.Kind, senderID, len(candidates)); err != nil {
			r.Logger.Warn("request journal write failed", "order", ev.OrderID, "error", err)
		}
	}
}

func requestType(kind models.RequestKind) event.Type {
	if kind == models.KindDelivery {
		return event.TypeDeliveryRequest
	}
	return event.TypeRideRequest
}

func acceptType(kind models.RequestKind) event.Type {
	if kind == models.KindDelivery {
		return event.TypeDeliveryAccepted
	}
	return event.TypeRideAccepted
}
