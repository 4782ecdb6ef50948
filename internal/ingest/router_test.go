package ingest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/example/fleet-dispatch/internal/arbiter"
	"github.com/example/fleet-dispatch/internal/event"
	"github.com/example/fleet-dispatch/internal/match"
	"github.com/example/fleet-dispatch/internal/membership"
	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/registry"
	"github.com/example/fleet-dispatch/internal/store"
)

type sent struct {
	recipient string
	env       event.Envelope
}

type captureSender struct{ sent []sent }

func (c *captureSender) Send(_ context.Context, recipient string, env event.Envelope) error {
	c.sent = append(c.sent, sent{recipient, env})
	return nil
}

func newTestRouter() (*Router, *captureSender, *registry.Registry, *store.Store) {
	members := membership.Static{
		models.ClassVehicle: {"v1", "v2"},
		models.ClassCourier: {"c1"},
	}
	logger := slog.Default()
	reg := registry.New(members, logger)
	requests := store.New()
	sender := &captureSender{}
	r := &Router{
		Members:  members,
		Registry: reg,
		Matcher:  &match.Engine{Workers: reg},
		Requests: requests,
		Arbiter: &arbiter.Arbiter{
			Requests:  requests,
			Workers:   reg,
			Transport: sender,
			Logger:    logger,
		},
		Transport: sender,
		Logger:    logger,
	}
	return r, sender, reg, requests
}

func TestMalformedInputDroppedSilently(t *testing.T) {
	r, sender, _, _ := newTestRouter()
	r.HandleInbound(context.Background(), "v1", []byte("{not json"))
	r.HandleInbound(context.Background(), "v1", []byte(`{"type":"SOMETHING_ELSE"}`))
	if len(sender.sent) != 0 {
		t.Fatalf("malformed input must not notify anyone, got %v", sender.sent)
	}
}

func TestAvailabilityUpdateRegistersWorker(t *testing.T) {
	r, _, reg, _ := newTestRouter()
	r.HandleInbound(context.Background(), "v1",
		[]byte(`{"type":"DRIVER_AVAILABILITY","status":"AVAILABLE","location":{"latitude":1,"longitude":2}}`))
	rec, ok := reg.Get("v1")
	if !ok || rec.Status != models.StatusAvailable || rec.Class != models.ClassVehicle {
		t.Fatalf("worker not registered: %+v ok=%v", rec, ok)
	}
}

func TestAvailabilityFromStrangerDropped(t *testing.T) {
	r, sender, reg, _ := newTestRouter()
	r.HandleInbound(context.Background(), "stranger",
		[]byte(`{"type":"DRIVER_AVAILABILITY","status":"AVAILABLE","location":{"latitude":1,"longitude":2}}`))
	if _, ok := reg.Get("stranger"); ok {
		t.Fatal("non-member must not register")
	}
	if len(sender.sent) != 0 {
		t.Fatal("unauthorized drop sends no notification")
	}
}

func TestRequestWithNoCandidatesNotifiesOnce(t *testing.T) {
	r, sender, _, requests := newTestRouter()
	r.HandleInbound(context.Background(), "rider",
		[]byte(`{"type":"RIDE_REQUEST","orderId":"o1","pickup":{"latitude":0,"longitude":0}}`))

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(sender.sent))
	}
	if sender.sent[0].recipient != "rider" || sender.sent[0].env.Type != event.TypeNoDriversAvailable {
		t.Fatalf("expected NO_DRIVERS_AVAILABLE to rider, got %v", sender.sent[0])
	}
	if _, ok := requests.Get("o1"); ok {
		t.Fatal("empty match must never create a request")
	}
}

func TestRequestWithoutOriginDroppedWithoutNotice(t *testing.T) {
	r, sender, reg, requests := newTestRouter()
	if err := reg.UpsertAvailability("v1", models.ClassVehicle, models.StatusAvailable, &models.Coord{}); err != nil {
		t.Fatal(err)
	}
	r.HandleInbound(context.Background(), "rider", []byte(`{"type":"RIDE_REQUEST","orderId":"o1"}`))
	if len(sender.sent) != 0 {
		t.Fatalf("missing origin must not notify, got %v", sender.sent)
	}
	if _, ok := requests.Get("o1"); ok {
		t.Fatal("missing origin must not create a request")
	}
}

func TestRequestAdmittedWithCandidates(t *testing.T) {
	r, sender, reg, requests := newTestRouter()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(reg.UpsertAvailability("v1", models.ClassVehicle, models.StatusAvailable, &models.Coord{Lat: 0.1}))
	must(reg.UpsertAvailability("v2", models.ClassVehicle, models.StatusAvailable, &models.Coord{Lat: 0.5}))

	raw := []byte(`{"type":"RIDE_REQUEST","orderId":"o1","pickup":{"latitude":0,"longitude":0},"note":"cash"}`)
	r.HandleInbound(context.Background(), "rider", raw)

	req, ok := requests.Get("o1")
	if !ok {
		t.Fatal("request not created")
	}
	req.Update(func(q *store.Request) {
		if len(q.Candidates) != 2 || q.Candidates[0].WorkerID != "v1" {
			t.Fatalf("candidates wrong: %v", q.Candidates)
		}
		if q.RequesterID != "rider" {
			t.Fatalf("requester wrong: %s", q.RequesterID)
		}
		if _, ok := q.Attachment["note"]; !ok {
			t.Fatal("free-form fields must be kept for offers")
		}
	})
	if len(sender.sent) != 0 {
		t.Fatalf("admission sends nothing; offers come from the scheduler: %v", sender.sent)
	}

	// a retransmit must not restart the matching run
	r.HandleInbound(context.Background(), "rider", raw)
	if len(sender.sent) != 0 {
		t.Fatal("duplicate request must not notify")
	}
}

func TestLegacyDeliveryLocationAccepted(t *testing.T) {
	r, _, reg, requests := newTestRouter()
	if err := reg.UpsertAvailability("c1", models.ClassCourier, models.StatusAvailable, &models.Coord{}); err != nil {
		t.Fatal(err)
	}
	r.HandleInbound(context.Background(), "shop",
		[]byte(`{"type":"DELIVERY_REQUEST","orderId":"d1","deliveryLocation":{"latitude":0,"longitude":0}}`))
	req, ok := requests.Get("d1")
	if !ok {
		t.Fatal("legacy origin field not honored")
	}
	req.Update(func(q *store.Request) {
		if q.Kind != models.KindDelivery {
			t.Fatalf("kind wrong: %s", q.Kind)
		}
	})
}

func TestAcceptanceRoutedToArbiter(t *testing.T) {
	r, sender, _, requests := newTestRouter()
	if _, err := requests.Create("o1", models.KindRide, "rider", []models.Candidate{{WorkerID: "v1"}}, event.Attachment{}); err != nil {
		t.Fatal(err)
	}
	r.HandleInbound(context.Background(), "v1", []byte(`{"type":"RIDE_ACCEPTED","orderId":"o1"}`))

	req, _ := requests.Get("o1")
	req.Update(func(q *store.Request) {
		if q.Status != models.RequestAssigned {
			t.Fatalf("acceptance not applied: %s", q.Status)
		}
	})
	if got := len(sender.sent); got == 0 {
		t.Fatal("acceptance should fan out notifications")
	}
}
