// Package livestatus keeps the latest crowd status of every active source in
// memory so the request layer can poll it without touching storage.
//
// A single Cache is constructed at startup, warmed with LoadInitial and then
// kept in step with the request layer through UpsertConfig and RemoveConfig.
package livestatus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// Cache is safe for concurrent use. Entries are stored and returned by value,
// so readers observe either the previous or the new snapshot of a source.
type Cache struct {
	mu       sync.RWMutex
	configs  map[string]models.SourceConfig
	statuses map[string]models.LiveStatus
	now      func() time.Time
}

func New() *Cache {
	return &Cache{
		configs:  make(map[string]models.SourceConfig),
		statuses: make(map[string]models.LiveStatus),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpsertConfig validates and stores cfg under sourceID. An active source
// without a live entry gets one with zero counters; an inactive source loses
// its entry.
func (c *Cache) UpsertConfig(sourceID string, cfg models.SourceConfig) error {
	cfg.ID = sourceID
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cloneConfig(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.configs[sourceID] = cfg
	if !cfg.IsActive {
		delete(c.statuses, sourceID)
		return nil
	}

	st, ok := c.statuses[sourceID]
	if !ok {
		st = models.LiveStatus{SourceID: sourceID, Timestamp: c.now()}
	}
	st.IsOverThreshold = cfg.Breached(st.PersonCount, st.CurrentOccupancy)
	c.statuses[sourceID] = withConfig(st, cfg)
	return nil
}

// RemoveConfig forgets sourceID entirely.
func (c *Cache) RemoveConfig(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.configs, sourceID)
	delete(c.statuses, sourceID)
}

// UpdateStatus records fresh metrics for sourceID. Unknown and inactive
// sources are ignored, since a source loop may race with its removal.
func (c *Cache) UpdateStatus(sourceID string, count int, density float64, occupancy int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, ok := c.configs[sourceID]
	if !ok || !cfg.IsActive {
		return
	}

	c.statuses[sourceID] = withConfig(models.LiveStatus{
		SourceID:         sourceID,
		PersonCount:      count,
		Density:          density,
		CurrentOccupancy: occupancy,
		Timestamp:        c.now(),
		IsOverThreshold:  cfg.Breached(count, occupancy),
	}, cfg)
}

// GetAll returns a copy of the entries of all active sources.
func (c *Cache) GetAll() map[string]models.LiveStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := lo.PickBy(c.statuses, func(id string, _ models.LiveStatus) bool {
		cfg, ok := c.configs[id]
		return ok && cfg.IsActive
	})
	return lo.MapValues(active, func(st models.LiveStatus, _ string) models.LiveStatus {
		return cloneStatus(st)
	})
}

// GetOne returns the entry of sourceID if the source is active.
func (c *Cache) GetOne(sourceID string) (models.LiveStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, ok := c.configs[sourceID]
	if !ok || !cfg.IsActive {
		return models.LiveStatus{}, false
	}
	st, ok := c.statuses[sourceID]
	if !ok {
		return models.LiveStatus{}, false
	}
	return cloneStatus(st), true
}

// Config returns the stored config of sourceID if the source is active.
// Source loops call it before every frame to pick up changes.
func (c *Cache) Config(sourceID string) (models.SourceConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, ok := c.configs[sourceID]
	if !ok || !cfg.IsActive {
		return models.SourceConfig{}, false
	}
	return cloneConfig(cfg), true
}

// SourceIDs lists every configured source, active or not.
func (c *Cache) SourceIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Keys(c.configs)
}

// LoadInitial warms the cache with the active configs among configs and
// returns how many were loaded. Invalid configs are logged and skipped.
func (c *Cache) LoadInitial(configs []models.SourceConfig) int {
	log.Info().Int("sources", len(configs)).Msg("Loading initial source configs")

	loaded := 0
	for _, cfg := range lo.Filter(configs, func(cfg models.SourceConfig, _ int) bool { return cfg.IsActive }) {
		if err := c.UpsertConfig(cfg.ID, cfg); err != nil {
			log.Warn().Err(err).Str("source_id", cfg.ID).Msg("Skipping source config")
			continue
		}
		loaded++
	}

	log.Info().Int("active", loaded).Msg("Live status cache initialized")
	return loaded
}

func withConfig(st models.LiveStatus, cfg models.SourceConfig) models.LiveStatus {
	st.Name = cfg.Name
	st.AreaName = cfg.AreaName
	st.Mode = cfg.Mode
	st.CrowdThreshold = cfg.CrowdThreshold
	st.OccupancyThreshold = cfg.OccupancyThreshold
	st.IsActive = cfg.IsActive
	st.Latitude = cfg.Latitude
	st.Longitude = cfg.Longitude
	return st
}

func cloneStatus(st models.LiveStatus) models.LiveStatus {
	st.Latitude = clonePtr(st.Latitude)
	st.Longitude = clonePtr(st.Longitude)
	return st
}

func cloneConfig(cfg models.SourceConfig) models.SourceConfig {
	cfg.TripwireX1 = clonePtr(cfg.TripwireX1)
	cfg.TripwireY1 = clonePtr(cfg.TripwireY1)
	cfg.TripwireX2 = clonePtr(cfg.TripwireX2)
	cfg.TripwireY2 = clonePtr(cfg.TripwireY2)
	cfg.Latitude = clonePtr(cfg.Latitude)
	cfg.Longitude = clonePtr(cfg.Longitude)
	return cfg
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
