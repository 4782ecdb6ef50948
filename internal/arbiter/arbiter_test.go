package arbiter

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/example/fleet-dispatch/internal/event"
	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/store"
)

type fakeWorkers map[string]models.WorkerRecord

func (f fakeWorkers) Get(id string) (models.WorkerRecord, bool) {
	rec, ok := f[id]
	return rec, ok
}

type sent struct {
	recipient string
	env       event.Envelope
}

type captureSender struct {
	sent    []sent
	failFor map[string]bool
}

func (c *captureSender) Send(_ context.Context, recipient string, env event.Envelope) error {
	c.sent = append(c.sent, sent{recipient, env})
	if c.failFor[recipient] {
		return errors.New("transport down")
	}
	return nil
}

func (c *captureSender) to(recipient string) []event.Type {
	var out []event.Type
	for _, s := range c.sent {
		if s.recipient == recipient {
			out = append(out, s.env.Type)
		}
	}
	return out
}

func newArbiter(requests *store.Store, workers fakeWorkers, sender *captureSender) *Arbiter {
	return &Arbiter{Requests: requests, Workers: workers, Transport: sender, Logger: slog.Default()}
}

func TestFirstAcceptanceWins(t *testing.T) {
	requests := store.New()
	req, _ := requests.Create("R", models.KindRide, "rider",
		[]models.Candidate{{WorkerID: "c1"}, {WorkerID: "c2"}, {WorkerID: "c3"}}, event.Attachment{})
	req.Update(func(r *store.Request) { r.NotifiedWorkers = []string{"c1", "c3"} })

	workers := fakeWorkers{"c3": {ID: "c3", Status: models.StatusAvailable, Loc: &models.Coord{Lat: 1, Lon: 2}}}
	sender := &captureSender{}
	a := newArbiter(requests, workers, sender)

	a.Accept(context.Background(), "R", "c3")

	req.Update(func(r *store.Request) {
		if r.Status != models.RequestAssigned {
			t.Fatalf("expected ASSIGNED, got %s", r.Status)
		}
	})
	if got := sender.to("rider"); len(got) != 1 || got[0] != event.TypeOrderAssigned {
		t.Fatalf("requester notifications wrong: %v", got)
	}
	if got := sender.to("c1"); len(got) != 1 || got[0] != event.TypeOrderTakenByOther {
		t.Fatalf("loser notifications wrong: %v", got)
	}
	if got := sender.to("c3"); len(got) != 1 || got[0] != event.TypeOrderConfirmed {
		t.Fatalf("winner notifications wrong: %v", got)
	}

	// the late acceptance gets "already taken" and changes nothing
	sender.sent = nil
	a.Accept(context.Background(), "R", "c1")
	if got := sender.to("c1"); len(got) != 1 || got[0] != event.TypeOrderAlreadyTaken {
		t.Fatalf("late acceptor notifications wrong: %v", got)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("late acceptance must not fan out, got %v", sender.sent)
	}
	req.Update(func(r *store.Request) {
		if r.Status != models.RequestAssigned {
			t.Fatal("late acceptance must not change state")
		}
	})
}

func TestUnknownOrder(t *testing.T) {
	requests := store.New()
	sender := &captureSender{}
	a := newArbiter(requests, fakeWorkers{}, sender)

	a.Accept(context.Background(), "nonexistent-id", "w1")

	if got := sender.to("w1"); len(got) != 1 || got[0] != event.TypeOrderUnknown {
		t.Fatalf("expected ORDER_UNKNOWN to w1, got %v", got)
	}
	if _, ok := requests.Get("nonexistent-id"); ok {
		t.Fatal("unknown accept must not create state")
	}
}

func TestFanOutSurvivesSendFailures(t *testing.T) {
	requests := store.New()
	req, _ := requests.Create("R", models.KindRide, "rider", []models.Candidate{
		{WorkerID: "c1"}, {WorkerID: "c2"}, {WorkerID: "c3"},
	}, event.Attachment{})
	req.Update(func(r *store.Request) { r.NotifiedWorkers = []string{"c1", "c2", "c3"} })

	// the requester and the first loser fail; everyone else must still hear
	sender := &captureSender{failFor: map[string]bool{"rider": true, "c1": true}}
	a := newArbiter(requests, fakeWorkers{}, sender)

	a.Accept(context.Background(), "R", "c2")

	for _, recipient := range []string{"rider", "c1", "c2", "c3"} {
		if len(sender.to(recipient)) != 1 {
			t.Fatalf("%s not notified despite earlier failures: %v", recipient, sender.sent)
		}
	}
	if got := sender.to("c2"); got[0] != event.TypeOrderConfirmed {
		t.Fatalf("winner must get ORDER_CONFIRMED, got %v", got)
	}
}

func TestAcceptorNeedNotBeOffered(t *testing.T) {
	// any party that learns the id may accept; this is current behavior
	requests := store.New()
	req, _ := requests.Create("R", models.KindRide, "rider",
		[]models.Candidate{{WorkerID: "c1"}}, event.Attachment{})
	sender := &captureSender{}
	a := newArbiter(requests, fakeWorkers{}, sender)

	a.Accept(context.Background(), "R", "outsider")

	req.Update(func(r *store.Request) {
		if r.Status != models.RequestAssigned {
			t.Fatal("un-offered acceptor still wins the pending request")
		}
	})
	if got := sender.to("outsider"); len(got) != 1 || got[0] != event.TypeOrderConfirmed {
		t.Fatalf("outsider should be confirmed, got %v", got)
	}
}
