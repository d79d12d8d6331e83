package api

import (
	"sync"

	"portgate/internal/model"
)

// TrafficCache stores the latest update per camera so slot availability
// lookups do not hit the append-only traffic log.
type TrafficCache struct {
	mu sync.Mutex
	m  map[string]model.TrafficUpdate
}

// NewTrafficCache constructs a TrafficCache.
func NewTrafficCache() *TrafficCache { return &TrafficCache{m: map[string]model.TrafficUpdate{}} }

// Upsert stores the latest reading for a camera.
func (c *TrafficCache) Upsert(upd model.TrafficUpdate) {
	if upd.CameraID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[upd.CameraID] = upd
}

// Latest returns the most recent reading for a camera.
func (c *TrafficCache) Latest(cameraID string) (model.TrafficUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.m[cameraID]
	return u, ok
}

// Worst returns the most severe status currently reported by any camera.
// CONGESTED beats MODERATE beats NORMAL; empty cache reports NORMAL.
func (c *TrafficCache) Worst() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	worst := model.TrafficNormal
	for _, u := range c.m {
		switch u.Status {
		case model.TrafficCongested:
			return model.TrafficCongested
		case model.TrafficModerate:
			worst = model.TrafficModerate
		}
	}
	return worst
}
