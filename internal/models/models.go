package models

import "time"

type Coord struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// WorkerClass separates the two fleets a deployment may run.
type WorkerClass string

const (
	ClassVehicle WorkerClass = "VEHICLE"
	ClassCourier WorkerClass = "COURIER"
)

type WorkerStatus string

const (
	StatusAvailable   WorkerStatus = "AVAILABLE"
	StatusUnavailable WorkerStatus = "UNAVAILABLE"
)

// WorkerRecord is the registry's view of one worker. Loc stays nil until the
// worker has reported at least one position.
type WorkerRecord struct {
	ID       string       `json:"id"`
	Class    WorkerClass  `json:"class"`
	Status   WorkerStatus `json:"status"`
	Loc      *Coord       `json:"location,omitempty"`
	LastSeen time.Time    `json:"last_seen"`
}

// Candidate is a worker considered for one request, frozen at match time.
type Candidate struct {
	WorkerID       string  `json:"worker_id"`
	DistanceMeters float64 `json:"distance_meters"`
}

type RequestKind string

const (
	KindRide     RequestKind = "RIDE"
	KindDelivery RequestKind = "DELIVERY"
)

// Class returns the worker class eligible to serve this kind of request.
func (k RequestKind) Class() WorkerClass {
	if k == KindDelivery {
		return ClassCourier
	}
	return ClassVehicle
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAssigned RequestStatus = "ASSIGNED"
)
