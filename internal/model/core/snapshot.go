// internal/model/core/snapshot.go
package core

// Snapshot is the durable registry state a storage backend hands back on
// startup. The sequence values are high-water marks: ids at or below them
// have been issued and are never reused.
type Snapshot struct {
	Markers    []Marker         `json:"markers"`
	Bindings   []ContentBinding `json:"bindings"`
	MarkerSeq  uint64           `json:"markerSeq"`
	BindingSeq uint64           `json:"bindingSeq"`
}
