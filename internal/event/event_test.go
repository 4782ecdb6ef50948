package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/fleet-dispatch/internal/models"
)

func TestDecodeAvailability(t *testing.T) {
	raw := []byte(`{"type":"DRIVER_AVAILABILITY","status":"AVAILABLE","location":{"latitude":52.2,"longitude":21.0}}`)
	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	av, ok := in.(Availability)
	if !ok {
		t.Fatalf("expected Availability, got %T", in)
	}
	if av.Status != models.StatusAvailable || av.Location == nil || av.Location.Lat != 52.2 {
		t.Fatalf("decoded wrong: %+v", av)
	}
}

func TestDecodeAvailabilityBadStatus(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"type":"DRIVER_AVAILABILITY","status":"BUSY"}`)); err == nil {
		t.Fatal("unknown status must fail decoding")
	}
}

func TestDecodeRequestKeepsAttachment(t *testing.T) {
	raw := []byte(`{"id":"x","type":"RIDE_REQUEST","orderId":"o1","pickup":{"latitude":1,"longitude":2},"note":"cash","seats":3}`)
	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	req := in.(Request)
	if req.Kind != models.KindRide || req.OrderID != "o1" || req.Pickup == nil {
		t.Fatalf("decoded wrong: %+v", req)
	}
	if _, ok := req.Attachment["note"]; !ok {
		t.Fatal("free-form fields must survive")
	}
	if _, ok := req.Attachment["id"]; ok {
		t.Fatal("envelope id must be stripped from the attachment")
	}
	if _, ok := req.Attachment["type"]; ok {
		t.Fatal("envelope type must be stripped from the attachment")
	}
}

func TestDecodeRequestLegacyOrigin(t *testing.T) {
	raw := []byte(`{"type":"DELIVERY_REQUEST","orderId":"d1","deliveryLocation":{"latitude":5,"longitude":6}}`)
	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	req := in.(Request)
	if req.Kind != models.KindDelivery || req.Pickup == nil || req.Pickup.Lat != 5 {
		t.Fatalf("legacy origin not honored: %+v", req)
	}
}

func TestDecodeRequestMissingOrder(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"type":"RIDE_REQUEST","pickup":{"latitude":1,"longitude":2}}`)); err == nil {
		t.Fatal("missing orderId must fail decoding")
	}
}

func TestDecodeAcceptance(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"type":"DELIVERY_ACCEPTED","orderId":"d1"}`))
	if err != nil {
		t.Fatal(err)
	}
	acc := in.(Acceptance)
	if acc.Kind != models.KindDelivery || acc.OrderID != "d1" {
		t.Fatalf("decoded wrong: %+v", acc)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"PING"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestOfferForwardsAttachment(t *testing.T) {
	att := Attachment{
		"orderId": json.RawMessage(`"o1"`),
		"note":    json.RawMessage(`"cash"`),
	}
	env := Offer(models.KindRide, att)
	if env.Type != TypeRideOffer {
		t.Fatalf("expected RIDE_OFFER, got %s", env.Type)
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out["type"] != "RIDE_OFFER" || out["orderId"] != "o1" || out["note"] != "cash" {
		t.Fatalf("offer envelope wrong: %v", out)
	}
	if out["id"] == "" {
		t.Fatal("envelope must carry a fresh id")
	}
}

func TestOrderAssignedEnvelope(t *testing.T) {
	env := OrderAssigned("o1", "w9", &models.Coord{Lat: 1, Lon: 2})
	b, _ := json.Marshal(env)
	var out struct {
		Type   string `json:"type"`
		Driver struct {
			ID       string        `json:"id"`
			Location *models.Coord `json:"location"`
		} `json:"driver"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out.Type != "ORDER_ASSIGNED" || out.Driver.ID != "w9" || out.Driver.Location == nil {
		t.Fatalf("assigned envelope wrong: %s", string(b))
	}
}
