// Package store owns the lifecycle of active requests. A request is PENDING
// from creation until an acceptance flips it to ASSIGNED; there is no
// cancelled or expired state, and requests are never removed.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/fleet-dispatch/internal/event"
	"github.com/example/fleet-dispatch/internal/models"
)

var ErrDuplicateRequest = errors.New("request id already exists")

// Request is one active matching run. The candidate list is fixed at
// creation; NextOfferIndex only grows and never exceeds len(Candidates);
// NotifiedWorkers holds exactly the workers that were actually offered.
// All read-then-write access goes through Update.
type Request struct {
	mu sync.Mutex

	ID              string
	Kind            models.RequestKind
	Status          models.RequestStatus
	RequesterID     string
	Candidates      []models.Candidate
	NextOfferIndex  int
	NotifiedWorkers []string
	Attachment      event.Attachment
	CreatedAt       time.Time
	LastOfferAt     time.Time
}

// Update runs fn while holding the request's lock. Every scheduler advance
// and acceptance check-and-set goes through here so the entity is its own
// critical section.
func (r *Request) Update(fn func(*Request)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

type Store struct {
	mu       sync.RWMutex
	requests map[string]*Request
	now      func() time.Time
}

func New() *Store {
	return &Store{requests: make(map[string]*Request), now: time.Now}
}

// Create admits a new request in PENDING state. A retransmitted id is
// rejected so one inbound order can never spawn a second matching run.
// LastOfferAt starts at the zero time so the first eligible tick offers
// immediately.
func (s *Store) Create(id string, kind models.RequestKind, requesterID string, candidates []models.Candidate, att event.Attachment) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[id]; exists {
		return nil, ErrDuplicateRequest
	}
	req := &Request{
		ID:          id,
		Kind:        kind,
		Status:      models.RequestPending,
		RequesterID: requesterID,
		Candidates:  candidates,
		Attachment:  att,
		CreatedAt:   s.now(),
	}
	s.requests[id] = req
	return req, nil
}

func (s *Store) Get(id string) (*Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	return req, ok
}

// Pending snapshots the current pending set, ordered by creation time (id as
// tie-break) so scheduler passes are deterministic.
func (s *Store) Pending() []*Request {
	s.mu.RLock()
	out := make([]*Request, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req)
	}
	s.mu.RUnlock()

	pending := out[:0]
	for _, req := range out {
		req.mu.Lock()
		if req.Status == models.RequestPending {
			pending = append(pending, req)
		}
		req.mu.Unlock()
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}
