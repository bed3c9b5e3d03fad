package alerting

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum time between two alerts of one source.
const DefaultCooldown = 60 * time.Second

// Gate rate-limits alerts per source. The caller has already decided that the
// breach is real; the gate only decides whether it may be announced now.
type Gate struct {
	mu        sync.Mutex
	cooldown  time.Duration
	lastFired map[string]time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown:  cooldown,
		lastFired: make(map[string]time.Time),
	}
}

// ShouldFire reports whether an alert for sourceID may go out at now and, if
// so, records now as the last firing time. Check and record happen under one
// lock so concurrent callers cannot both pass.
func (g *Gate) ShouldFire(sourceID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastFired[sourceID]
	if ok && now.Sub(last) < g.cooldown {
		return false
	}

	g.lastFired[sourceID] = now
	return true
}
