// Package match ranks available workers by straight-line distance from a
// request origin.
package match

import (
	"sort"

	"github.com/example/fleet-dispatch/internal/geo"
	"github.com/example/fleet-dispatch/internal/models"
)

// AvailabilityIndex is the slice of the worker registry the engine needs.
type AvailabilityIndex interface {
	FilterAvailable(class models.WorkerClass) []models.WorkerRecord
}

type Engine struct {
	Workers AvailabilityIndex
}

// ComputeCandidates returns the class's available workers ordered by
// ascending distance from the origin. The sort is stable over the registry's
// id-ordered output, so equal distances keep id order. An empty result means
// "no candidates", not an error.
func (e *Engine) ComputeCandidates(origin models.Coord, class models.WorkerClass) []models.Candidate {
	workers := e.Workers.FilterAvailable(class)
	out := make([]models.Candidate, 0, len(workers))
	for _, w := range workers {
		d := geo.Haversine(origin.Lat, origin.Lon, w.Loc.Lat, w.Loc.Lon)
		out = append(out, models.Candidate{WorkerID: w.ID, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out
}
