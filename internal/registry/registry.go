// Package registry owns the marker and content collections and the scene
// view derived from them.
//
// Lock order is always markers then contents. Marker deletion holds both
// write locks so the cascade is atomic for readers; Bind holds the marker
// read lock and the content write lock; Compose holds both read locks. Image
// I/O and encoding run before any lock is taken.
package registry

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/assets"
	"github.com/webarportal/portal/internal/ingest"
	"github.com/webarportal/portal/internal/model/core"
	"github.com/webarportal/portal/internal/storage"
)

// Dependencies holds everything the registries need.
type Dependencies struct {
	Backend  storage.Backend
	Store    assets.Store
	Pipeline *ingest.Pipeline
	Logger   zerolog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
	// Limits caps asset size per content type; missing types are unlimited.
	Limits map[core.ContentType]int64
	// PruneOnDelete removes a record's assets after it is deleted.
	PruneOnDelete bool
}

// DefaultLimits are the per content type asset ceilings.
func DefaultLimits() map[core.ContentType]int64 {
	return map[core.ContentType]int64{
		core.ContentImage: 10 << 20,
		core.ContentVideo: 10 << 20,
		core.ContentModel: 5 << 20,
	}
}

// Registry bundles the marker and content registries and the composer.
type Registry struct {
	Markers  *MarkerRegistry
	Contents *ContentRegistry
	Scenes   *Composer
}

// New restores registry state from deps.Backend, which must be initialized.
func New(deps Dependencies) (*Registry, error) {
	if deps.Backend == nil || deps.Store == nil || deps.Pipeline == nil {
		return nil, fmt.Errorf("registry requires a backend, an asset store and a pipeline")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Limits == nil {
		deps.Limits = DefaultLimits()
	}

	snap, err := deps.Backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load registry state: %w", err)
	}

	log := deps.Logger.With().Str("component", "registry").Logger()
	markers := &MarkerRegistry{
		deps:    deps,
		log:     log,
		markers: make(map[uint64]core.Marker, len(snap.Markers)),
		seq:     snap.MarkerSeq,
	}
	contents := &ContentRegistry{
		deps:     deps,
		log:      log,
		bindings: make(map[uint64]core.ContentBinding, len(snap.Bindings)),
		byMarker: make(map[uint64][]uint64),
		seq:      snap.BindingSeq,
	}
	markers.contents = contents
	contents.markers = markers

	for _, m := range snap.Markers {
		markers.markers[m.ID] = m
		markers.seq = max(markers.seq, m.ID)
	}
	// snapshot bindings are id ordered, which is creation order
	for _, b := range snap.Bindings {
		contents.seq = max(contents.seq, b.ID)
		if _, ok := markers.markers[b.MarkerID]; !ok {
			log.Warn().Uint64("bindingId", b.ID).Uint64("markerId", b.MarkerID).Msg("Skipping orphaned content binding")
			continue
		}
		contents.insertLocked(b)
	}

	m, err := newMetrics(markers, contents)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry metrics: %w", err)
	}
	markers.metrics = m
	contents.metrics = m

	log.Info().Int("markers", len(markers.markers)).Int("bindings", len(contents.bindings)).Msg("Registry loaded")

	return &Registry{
		Markers:  markers,
		Contents: contents,
		Scenes:   &Composer{markers: markers, contents: contents},
	}, nil
}
