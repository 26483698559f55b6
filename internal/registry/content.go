package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/model/core"
)

// ContentRegistry owns content bindings and keeps them consistent with the
// marker registry: no binding exists for an unknown marker.
type ContentRegistry struct {
	deps    Dependencies
	log     zerolog.Logger
	metrics *metrics
	markers *MarkerRegistry

	mu       sync.RWMutex
	bindings map[uint64]core.ContentBinding
	byMarker map[uint64][]uint64 // binding ids in creation order
	seq      uint64
}

// Bind attaches the asset at assetRef to a marker.
func (r *ContentRegistry) Bind(ctx context.Context, markerID uint64, contentType core.ContentType, assetRef string, transform core.Transform) (core.ContentBinding, error) {
	if !contentType.Valid() {
		return core.ContentBinding{}, fmt.Errorf("%w: %q", core.ErrInvalidContentType, contentType)
	}
	if !r.markers.Exists(markerID) {
		return core.ContentBinding{}, fmt.Errorf("%w: %d", core.ErrMarkerNotFound, markerID)
	}

	size, err := r.deps.Store.Size(ctx, assetRef)
	if err != nil {
		return core.ContentBinding{}, fmt.Errorf("content asset: %w", err)
	}
	if limit, ok := r.deps.Limits[contentType]; ok && limit > 0 && size > limit {
		return core.ContentBinding{}, &core.AssetTooLargeError{ContentType: contentType, Size: size, Limit: limit}
	}

	b, err := r.commit(markerID, contentType, assetRef, transform)
	if err != nil {
		return core.ContentBinding{}, err
	}

	r.metrics.bindingCreated(ctx, contentType)
	r.log.Info().
		Uint64("bindingId", b.ID).
		Uint64("markerId", markerID).
		Str("contentType", string(contentType)).
		Stringer("position", transform.Position).
		Msg("Content bound")
	return b, nil
}

func (r *ContentRegistry) commit(markerID uint64, contentType core.ContentType, assetRef string, transform core.Transform) (core.ContentBinding, error) {
	r.markers.mu.RLock()
	defer r.markers.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	// the marker may have been deleted while the asset was checked
	if _, ok := r.markers.markers[markerID]; !ok {
		return core.ContentBinding{}, fmt.Errorf("%w: %d", core.ErrMarkerNotFound, markerID)
	}

	b := core.ContentBinding{
		ID:          r.seq + 1,
		MarkerID:    markerID,
		ContentType: contentType,
		AssetRef:    assetRef,
		Transform:   transform,
		CreatedAt:   r.deps.Clock().UTC(),
	}
	if err := r.deps.Backend.InsertBinding(b); err != nil {
		return core.ContentBinding{}, fmt.Errorf("persisting content binding: %w", err)
	}
	r.seq = b.ID
	r.insertLocked(b)
	return b, nil
}

func (r *ContentRegistry) insertLocked(b core.ContentBinding) {
	r.bindings[b.ID] = b
	r.byMarker[b.MarkerID] = append(r.byMarker[b.MarkerID], b.ID)
}

// ListFor returns the marker's bindings in creation order. An unknown marker
// has no bindings.
func (r *ContentRegistry) ListFor(markerID uint64) []core.ContentBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listForLocked(markerID)
}

func (r *ContentRegistry) listForLocked(markerID uint64) []core.ContentBinding {
	ids := r.byMarker[markerID]
	out := make([]core.ContentBinding, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.bindings[id])
	}
	return out
}

// Get returns the binding with id.
func (r *ContentRegistry) Get(id uint64) (core.ContentBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[id]
	if !ok {
		return core.ContentBinding{}, fmt.Errorf("%w: %d", core.ErrContentNotFound, id)
	}
	return b, nil
}

// Count returns the number of bindings.
func (r *ContentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Delete removes a single binding.
func (r *ContentRegistry) Delete(ctx context.Context, id uint64) error {
	b, err := r.deleteLocked(id)
	if err != nil {
		return err
	}

	r.metrics.bindingDeleted(ctx, 1)
	r.log.Info().Uint64("bindingId", id).Uint64("markerId", b.MarkerID).Msg("Content deleted")

	if r.deps.PruneOnDelete {
		if err := r.deps.Store.Delete(ctx, b.AssetRef); err != nil && !errors.Is(err, core.ErrAssetNotFound) {
			r.log.Warn().Err(err).Str("ref", b.AssetRef).Msg("Failed to remove asset")
		}
	}
	return nil
}

func (r *ContentRegistry) deleteLocked(id uint64) (core.ContentBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[id]
	if !ok {
		return core.ContentBinding{}, fmt.Errorf("%w: %d", core.ErrContentNotFound, id)
	}
	if err := r.deps.Backend.DeleteBinding(id); err != nil {
		return core.ContentBinding{}, fmt.Errorf("deleting content binding %d: %w", id, err)
	}

	delete(r.bindings, id)
	ids := r.byMarker[b.MarkerID]
	for i, bid := range ids {
		if bid == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.byMarker, b.MarkerID)
	} else {
		r.byMarker[b.MarkerID] = ids
	}
	return b, nil
}

// cascadeDeleteLocked drops every binding of markerID. The caller holds the
// marker write lock and r.mu; the backend has already removed the rows.
func (r *ContentRegistry) cascadeDeleteLocked(markerID uint64) []core.ContentBinding {
	removed := r.listForLocked(markerID)
	for _, b := range removed {
		delete(r.bindings, b.ID)
	}
	delete(r.byMarker, markerID)
	return removed
}
