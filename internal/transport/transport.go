// Package transport carries events between the engine and the outside world.
// Inbound events arrive as (senderID, payload) pairs handed to a Handler;
// outbound envelopes go to a single recipient identity.
package transport

import (
	"context"
	"errors"

	"github.com/example/fleet-dispatch/internal/event"
)

// Handler consumes one inbound envelope attributed to a sender identity.
type Handler func(ctx context.Context, senderID string, raw []byte)

// Transport delivers outbound envelopes. Sends are fire-and-forget from the
// engine's point of view: an error is logged by the caller and never retried.
type Transport interface {
	Send(ctx context.Context, recipientID string, env event.Envelope) error
}

var ErrNoRoute = errors.New("no transport route to recipient")

// Composite tries each transport in order and stops at the first success.
// Typical wiring puts the WebSocket registry first (direct session) with a
// broker transport as the fallback path.
type Composite []Transport

func (c Composite) Send(ctx context.Context, recipientID string, env event.Envelope) error {
	var firstErr error
	for _, t := range c {
		err := t.Send(ctx, recipientID, env)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		return ErrNoRoute
	}
	return firstErr
}
