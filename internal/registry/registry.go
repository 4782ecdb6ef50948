// Package registry owns the in-memory worker table. Records are only ever
// inserted or overwritten by availability updates; nothing deletes them.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/observability"
)

var ErrUnauthorizedWorker = errors.New("worker not in authorized member set")

// Authorizer gates upserts against the membership directory.
type Authorizer interface {
	IsAuthorized(id string, class models.WorkerClass) bool
}

type Registry struct {
	members Authorizer
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	workers map[string]models.WorkerRecord
}

func New(members Authorizer, logger *slog.Logger) *Registry {
	return &Registry{
		members: members,
		logger:  logger,
		now:     time.Now,
		workers: make(map[string]models.WorkerRecord),
	}
}

// UpsertAvailability overwrites the worker's record and stamps lastSeen.
// Non-member senders are rejected without touching state.
func (r *Registry) UpsertAvailability(id string, class models.WorkerClass, status models.WorkerStatus, loc *models.Coord) error {
	if !r.members.IsAuthorized(id, class) {
		observability.UnauthorizedUpdates.Inc()
		r.logger.Warn("availability update from non-member", "worker", id, "class", string(class))
		return ErrUnauthorizedWorker
	}
	rec := models.WorkerRecord{ID: id, Class: class, Status: status, Loc: loc, LastSeen: r.now()}
	r.mu.Lock()
	r.workers[id] = rec
	r.mu.Unlock()
	r.updateAvailableGauge(class)
	return nil
}

func (r *Registry) Get(id string) (models.WorkerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.workers[id]
	return rec, ok
}

// FilterAvailable returns AVAILABLE workers of the class that have reported a
// location, sorted ascending by id so downstream ordering is deterministic.
func (r *Registry) FilterAvailable(class models.WorkerClass) []models.WorkerRecord {
	r.mu.RLock()
	out := make([]models.WorkerRecord, 0, len(r.workers))
	for _, rec := range r.workers {
		if rec.Class == class && rec.Status == models.StatusAvailable && rec.Loc != nil {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) updateAvailableGauge(class models.WorkerClass) {
	n := len(r.FilterAvailable(class))
	observability.WorkersAvailable.WithLabelValues(string(class)).Set(float64(n))
}
