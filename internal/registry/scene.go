package registry

import "github.com/webarportal/portal/internal/model/core"

// Composer joins a marker with its bindings.
type Composer struct {
	markers  *MarkerRegistry
	contents *ContentRegistry
}

// Compose returns the marker's scene. Both registries are read under their
// read locks, so the scene never mixes states from before and after a
// concurrent delete.
func (c *Composer) Compose(markerID uint64) (core.Scene, error) {
	c.markers.mu.RLock()
	defer c.markers.mu.RUnlock()
	c.contents.mu.RLock()
	defer c.contents.mu.RUnlock()

	m, err := c.markers.getLocked(markerID)
	if err != nil {
		return core.Scene{}, err
	}
	return core.NewScene(m, c.contents.listForLocked(markerID)), nil
}
