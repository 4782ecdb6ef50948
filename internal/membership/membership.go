// Package membership tracks which identities are authorized to act as
// workers, per class. The authoritative directory is external (Redis sets in
// production); a cached copy is refreshed on a timer and kept as
// last-known-good when a refresh fails.
package membership

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/fleet-dispatch/internal/models"
	"github.com/example/fleet-dispatch/internal/observability"
)

// Directory is the external source of authorized worker ids.
type Directory interface {
	AuthorizedWorkers(ctx context.Context, class models.WorkerClass) ([]string, error)
}

// Cache is the engine-facing membership view. Staleness between refreshes is
// tolerated; an empty cache before the first successful refresh authorizes
// nobody.
type Cache struct {
	dir      Directory
	interval time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	sets map[models.WorkerClass]map[string]struct{}
}

func NewCache(dir Directory, interval time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		dir:      dir,
		interval: interval,
		logger:   logger,
		sets:     make(map[models.WorkerClass]map[string]struct{}),
	}
}

// Refresh pulls both class sets from the directory. A failed class keeps its
// previous set (fail-open to last-known-good, never fail-closed).
func (c *Cache) Refresh(ctx context.Context) {
	for _, class := range []models.WorkerClass{models.ClassVehicle, models.ClassCourier} {
		ids, err := c.dir.AuthorizedWorkers(ctx, class)
		if err != nil {
			observability.MembershipRefreshFailures.Inc()
			c.logger.Warn("membership refresh failed, keeping previous set",
				"class", string(class), "error", err)
			continue
		}
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		c.mu.Lock()
		c.sets[class] = set
		c.mu.Unlock()
	}
}

// Run refreshes once immediately, then on every interval until ctx ends.
func (c *Cache) Run(ctx context.Context) {
	c.Refresh(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

func (c *Cache) IsAuthorized(id string, class models.WorkerClass) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sets[class][id]
	return ok
}

// ClassOf resolves the implied class for a sender id. Vehicle membership wins
// when an id appears in both sets.
func (c *Cache) ClassOf(id string) (models.WorkerClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.sets[models.ClassVehicle][id]; ok {
		return models.ClassVehicle, true
	}
	if _, ok := c.sets[models.ClassCourier][id]; ok {
		return models.ClassCourier, true
	}
	return "", false
}

// Static is a fixed membership table, used by tests and the simulator.
type Static map[models.WorkerClass][]string

func (s Static) AuthorizedWorkers(_ context.Context, class models.WorkerClass) ([]string, error) {
	return s[class], nil
}

func (s Static) IsAuthorized(id string, class models.WorkerClass) bool {
	for _, v := range s[class] {
		if v == id {
			return true
		}
	}
	return false
}

func (s Static) ClassOf(id string) (models.WorkerClass, bool) {
	if s.IsAuthorized(id, models.ClassVehicle) {
		return models.ClassVehicle, true
	}
	if s.IsAuthorized(id, models.ClassCourier) {
		return models.ClassCourier, true
	}
	return "", false
}
