package tracking

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry holds one isolated Tracker per source so that track ids coming
// from different sources never share state.
type Registry struct {
	mu         sync.Mutex
	thresholds Thresholds
	trackers   map[string]*Tracker
}

func NewRegistry(thresholds Thresholds) *Registry {
	return &Registry{
		thresholds: thresholds,
		trackers:   make(map[string]*Tracker),
	}
}

// Tracker returns the tracker for sourceID, creating it on first use.
func (r *Registry) Tracker(sourceID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.trackers[sourceID]
	if !ok {
		tr = NewTracker(r.thresholds)
		r.trackers[sourceID] = tr
	}
	return tr
}

// Remove discards all track state of sourceID.
func (r *Registry) Remove(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, sourceID)
}

// Sources lists the source ids that currently own a tracker.
func (r *Registry) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := lo.Keys(r.trackers)
	sort.Strings(ids)
	return ids
}
