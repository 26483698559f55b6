// internal/storage/storage.go
package storage

import "github.com/webarportal/portal/internal/model/core"

// Backend is the interface all storage implementations must satisfy.
// Mutations are called with the owning registry's lock held, so a backend
// sees them in commit order.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Load returns the persisted state; an empty store yields an empty snapshot.
	Load() (*core.Snapshot, error)

	// Markers. The marker's id is also the marker sequence high-water mark.
	InsertMarker(m core.Marker) error
	// DeleteMarker removes the marker and all of its bindings.
	DeleteMarker(id uint64) error

	// Bindings. The binding's id is also the binding sequence high-water mark.
	InsertBinding(b core.ContentBinding) error
	DeleteBinding(id uint64) error
}
