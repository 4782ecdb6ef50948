// Package event defines the wire envelopes exchanged over the transport.
// Inbound payloads decode into a tagged union discriminated by "type";
// outbound envelopes are built through typed constructors so every event
// shape lives in one place.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/fleet-dispatch/internal/models"
)

type Type string

// Inbound event types.
const (
	TypeDriverAvailability Type = "DRIVER_AVAILABILITY"
	TypeRideRequest        Type = "RIDE_REQUEST"
	TypeDeliveryRequest    Type = "DELIVERY_REQUEST"
	TypeRideAccepted       Type = "RIDE_ACCEPTED"
	TypeDeliveryAccepted   Type = "DELIVERY_ACCEPTED"
)

// Outbound event types.
const (
	TypeRideOffer          Type = "RIDE_OFFER"
	TypeDeliveryOffer      Type = "DELIVERY_OFFER"
	TypeNoDriversAvailable Type = "NO_DRIVERS_AVAILABLE"
	TypeOrderAssigned      Type = "ORDER_ASSIGNED"
	TypeOrderTakenByOther  Type = "ORDER_TAKEN_BY_OTHER"
	TypeOrderConfirmed     Type = "ORDER_CONFIRMED"
	TypeOrderAlreadyTaken  Type = "ORDER_ALREADY_TAKEN"
	TypeOrderUnknown       Type = "ORDER_UNKNOWN"
)

var ErrUnknownType = errors.New("unknown event type")

// Attachment carries the free-form fields of an inbound request so offers can
// forward them verbatim. The "id" and "type" envelope fields are stripped.
type Attachment map[string]json.RawMessage

// Inbound is the decoded union of events the engine accepts.
type Inbound interface{ inbound() }

type Availability struct {
	Status   models.WorkerStatus
	Location *models.Coord
}

type Request struct {
	Kind       models.RequestKind
	OrderID    string
	Pickup     *models.Coord
	Attachment Attachment
}

type Acceptance struct {
	Kind    models.RequestKind
	OrderID string
}

func (Availability) inbound() {}
func (Request) inbound()      {}
func (Acceptance) inbound()   {}

// DecodeInbound parses a raw envelope into its typed variant. Any decode
// failure is MalformedInput territory for the caller.
func DecodeInbound(raw []byte) (Inbound, error) {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch probe.Type {
	case TypeDriverAvailability:
		var body struct {
			Status   models.WorkerStatus `json:"status"`
			Location *models.Coord       `json:"location"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		if body.Status != models.StatusAvailable && body.Status != models.StatusUnavailable {
			return nil, fmt.Errorf("decode %s: bad status %q", probe.Type, body.Status)
		}
		return Availability{Status: body.Status, Location: body.Location}, nil

	case TypeRideRequest, TypeDeliveryRequest:
		var body struct {
			OrderID          string        `json:"orderId"`
			Pickup           *models.Coord `json:"pickup"`
			DeliveryLocation *models.Coord `json:"deliveryLocation"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		if body.OrderID == "" {
			return nil, fmt.Errorf("decode %s: missing orderId", probe.Type)
		}
		pickup := body.Pickup
		if pickup == nil {
			// legacy delivery clients send the origin under deliveryLocation
			pickup = body.DeliveryLocation
		}
		kind := models.KindRide
		if probe.Type == TypeDeliveryRequest {
			kind = models.KindDelivery
		}
		att, err := attachmentFrom(raw)
		if err != nil {
			return nil, err
		}
		return Request{Kind: kind, OrderID: body.OrderID, Pickup: pickup, Attachment: att}, nil

	case TypeRideAccepted, TypeDeliveryAccepted:
		var body struct {
			OrderID string `json:"orderId"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		if body.OrderID == "" {
			return nil, fmt.Errorf("decode %s: missing orderId", probe.Type)
		}
		kind := models.KindRide
		if probe.Type == TypeDeliveryAccepted {
			kind = models.KindDelivery
		}
		return Acceptance{Kind: kind, OrderID: body.OrderID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
}

func attachmentFrom(raw []byte) (Attachment, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	delete(fields, "id")
	delete(fields, "type")
	return Attachment(fields), nil
}

// Envelope is one outbound event: a type tag plus free-form fields.
// Marshalling flattens Fields alongside id and type.
type Envelope struct {
	ID     string
	Type   Type
	Fields map[string]any
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		m[k] = v
	}
	m["id"] = e.ID
	m["type"] = string(e.Type)
	return json.Marshal(m)
}

func newEnvelope(t Type, fields map[string]any) Envelope {
	return Envelope{ID: uuid.NewString(), Type: t, Fields: fields}
}

// OfferType maps a request kind to its offer event type.
func OfferType(kind models.RequestKind) Type {
	if kind == models.KindDelivery {
		return TypeDeliveryOffer
	}
	return TypeRideOffer
}

// Offer forwards the original request fields to a worker under the offer tag.
func Offer(kind models.RequestKind, att Attachment) Envelope {
	fields := make(map[string]any, len(att))
	for k, v := range att {
		fields[k] = v
	}
	return newEnvelope(OfferType(kind), fields)
}

func NoDriversAvailable(orderID string) Envelope {
	return newEnvelope(TypeNoDriversAvailable, map[string]any{"orderId": orderID})
}

func OrderAssigned(orderID, workerID string, loc *models.Coord) Envelope {
	driver := map[string]any{"id": workerID}
	if loc != nil {
		driver["location"] = loc
	}
	return newEnvelope(TypeOrderAssigned, map[string]any{"orderId": orderID, "driver": driver})
}

func OrderTakenByOther(orderID string) Envelope {
	return newEnvelope(TypeOrderTakenByOther, map[string]any{"orderId": orderID})
}

func OrderConfirmed(orderID, customerID string, att Attachment) Envelope {
	return newEnvelope(TypeOrderConfirmed, map[string]any{
		"orderId":    orderID,
		"customerId": customerID,
		"data":       map[string]json.RawMessage(att),
	})
}

func OrderAlreadyTaken(orderID string) Envelope {
	return newEnvelope(TypeOrderAlreadyTaken, map[string]any{"orderId": orderID})
}

func OrderUnknown(orderID string) Envelope {
	return newEnvelope(TypeOrderUnknown, map[string]any{"orderId": orderID})
}
