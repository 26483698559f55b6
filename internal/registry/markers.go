package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/model/core"
	"github.com/webarportal/portal/internal/util"
)

// MarkerRegistry owns marker lifecycle and identity.
type MarkerRegistry struct {
	deps     Dependencies
	log      zerolog.Logger
	metrics  *metrics
	contents *ContentRegistry

	mu      sync.RWMutex
	markers map[uint64]core.Marker
	seq     uint64
}

// Create ingests the image at sourceImageRef and registers a marker for it.
// The source image itself is not removed on failure; the descriptor is.
func (r *MarkerRegistry) Create(ctx context.Context, name, description, sourceImageRef string) (core.Marker, error) {
	name = util.CleanText(name)
	if name == "" {
		return core.Marker{}, core.ErrNameRequired
	}
	description = util.CleanText(description)

	data, err := r.deps.Store.Get(ctx, sourceImageRef)
	if err != nil {
		return core.Marker{}, &core.EncodingError{
			Reason: core.ReasonStorage,
			Err:    fmt.Errorf("reading marker image: %w", err),
		}
	}

	descriptorRef, err := r.deps.Pipeline.Prepare(ctx, data)
	if err != nil {
		r.metrics.rejected(ctx, err)
		r.log.Info().Err(err).Str("name", name).Msg("Marker image rejected")
		return core.Marker{}, err
	}

	m, err := r.commit(name, description, sourceImageRef, descriptorRef)
	if err != nil {
		r.discard(ctx, descriptorRef)
		return core.Marker{}, err
	}

	r.metrics.markerCreated(ctx)
	r.log.Info().Uint64("markerId", m.ID).Str("name", m.Name).Msg("Marker created")
	return m, nil
}

func (r *MarkerRegistry) commit(name, description, sourceImageRef, descriptorRef string) (core.Marker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := core.Marker{
		ID:             r.seq + 1,
		Name:           name,
		Description:    description,
		SourceImageRef: sourceImageRef,
		DescriptorRef:  descriptorRef,
		CreatedAt:      r.deps.Clock().UTC(),
	}
	if err := r.deps.Backend.InsertMarker(m); err != nil {
		return core.Marker{}, fmt.Errorf("persisting marker: %w", err)
	}
	r.seq = m.ID
	r.markers[m.ID] = m
	return m, nil
}

// Get returns the marker with id.
func (r *MarkerRegistry) Get(id uint64) (core.Marker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

func (r *MarkerRegistry) getLocked(id uint64) (core.Marker, error) {
	m, ok := r.markers[id]
	if !ok {
		return core.Marker{}, fmt.Errorf("%w: %d", core.ErrMarkerNotFound, id)
	}
	return m, nil
}

// Exists reports whether a marker with id is registered.
func (r *MarkerRegistry) Exists(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.markers[id]
	return ok
}

// List returns all markers, most recently created first.
func (r *MarkerRegistry) List() []core.Marker {
	r.mu.RLock()
	out := make([]core.Marker, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Count returns the number of registered markers.
func (r *MarkerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markers)
}

// Delete removes the marker and all of its bindings in one step.
func (r *MarkerRegistry) Delete(ctx context.Context, id uint64) error {
	m, removed, err := r.deleteLocked(id)
	if err != nil {
		return err
	}

	r.metrics.markerDeleted(ctx, len(removed))
	r.log.Info().Uint64("markerId", id).Int("bindings", len(removed)).Msg("Marker deleted")

	if r.deps.PruneOnDelete {
		r.discard(ctx, m.SourceImageRef)
		r.discard(ctx, m.DescriptorRef)
		for _, b := range removed {
			r.discard(ctx, b.AssetRef)
		}
	}
	return nil
}

func (r *MarkerRegistry) deleteLocked(id uint64) (core.Marker, []core.ContentBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contents.mu.Lock()
	defer r.contents.mu.Unlock()

	m, err := r.getLocked(id)
	if err != nil {
		return core.Marker{}, nil, err
	}
	if err := r.deps.Backend.DeleteMarker(id); err != nil {
		return core.Marker{}, nil, fmt.Errorf("deleting marker %d: %w", id, err)
	}
	removed := r.contents.cascadeDeleteLocked(id)
	delete(r.markers, id)
	return m, removed, nil
}

// discard removes an asset, logging anything but a missing file.
func (r *MarkerRegistry) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := r.deps.Store.Delete(ctx, ref); err != nil && !errors.Is(err, core.ErrAssetNotFound) {
		r.log.Warn().Err(err).Str("ref", ref).Msg("Failed to remove asset")
	}
}
