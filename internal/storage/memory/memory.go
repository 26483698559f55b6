// internal/storage/memory/memory.go
package memory

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/model/core"
	"github.com/webarportal/portal/internal/util"
)

// Backend keeps registry records in memory and, when a snapshot path is
// configured, rewrites a JSON snapshot after every mutation.
type Backend struct {
	cfg config.MemoryConfig

	markers  map[uint64]core.Marker
	bindings map[uint64]core.ContentBinding

	markerSeq  uint64
	bindingSeq uint64
	mu         sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		markers:  make(map[uint64]core.Marker),
		bindings: make(map[uint64]core.ContentBinding),
	}
}

// Init loads the snapshot file if one exists.
func (b *Backend) Init() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.cfg.SnapshotPath), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	raw, err := os.ReadFile(b.cfg.SnapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", b.cfg.SnapshotPath, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range snap.Markers {
		b.markers[m.ID] = m
	}
	for _, bd := range snap.Bindings {
		b.bindings[bd.ID] = bd
	}
	b.markerSeq = snap.MarkerSeq
	b.bindingSeq = snap.BindingSeq
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Load returns the current records ordered by id.
func (b *Backend) Load() (*core.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(), nil
}

func (b *Backend) InsertMarker(m core.Marker) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.markers[m.ID]; exists {
		return fmt.Errorf("marker %d already stored", m.ID)
	}
	prevSeq := b.markerSeq
	b.markers[m.ID] = m
	if m.ID > b.markerSeq {
		b.markerSeq = m.ID
	}
	if err := b.persistLocked(); err != nil {
		delete(b.markers, m.ID)
		b.markerSeq = prevSeq
		return err
	}
	return nil
}

func (b *Backend) DeleteMarker(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, exists := b.markers[id]
	if !exists {
		return fmt.Errorf("%w: %d", core.ErrMarkerNotFound, id)
	}
	var removed []core.ContentBinding
	delete(b.markers, id)
	for bid, bd := range b.bindings {
		if bd.MarkerID == id {
			removed = append(removed, bd)
			delete(b.bindings, bid)
		}
	}
	if err := b.persistLocked(); err != nil {
		b.markers[id] = m
		for _, bd := range removed {
			b.bindings[bd.ID] = bd
		}
		return err
	}
	return nil
}

func (b *Backend) InsertBinding(bd core.ContentBinding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.markers[bd.MarkerID]; !exists {
		return fmt.Errorf("%w: %d", core.ErrMarkerNotFound, bd.MarkerID)
	}
	if _, exists := b.bindings[bd.ID]; exists {
		return fmt.Errorf("binding %d already stored", bd.ID)
	}
	prevSeq := b.bindingSeq
	b.bindings[bd.ID] = bd
	if bd.ID > b.bindingSeq {
		b.bindingSeq = bd.ID
	}
	if err := b.persistLocked(); err != nil {
		delete(b.bindings, bd.ID)
		b.bindingSeq = prevSeq
		return err
	}
	return nil
}

func (b *Backend) DeleteBinding(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bd, exists := b.bindings[id]
	if !exists {
		return fmt.Errorf("%w: %d", core.ErrContentNotFound, id)
	}
	delete(b.bindings, id)
	if err := b.persistLocked(); err != nil {
		b.bindings[id] = bd
		return err
	}
	return nil
}

func (b *Backend) snapshotLocked() *core.Snapshot {
	snap := &core.Snapshot{
		Markers:    make([]core.Marker, 0, len(b.markers)),
		Bindings:   make([]core.ContentBinding, 0, len(b.bindings)),
		MarkerSeq:  b.markerSeq,
		BindingSeq: b.bindingSeq,
	}
	for _, m := range b.markers {
		snap.Markers = append(snap.Markers, m)
	}
	for _, bd := range b.bindings {
		snap.Bindings = append(snap.Bindings, bd)
	}
	sort.Slice(snap.Markers, func(i, j int) bool { return snap.Markers[i].ID < snap.Markers[j].ID })
	sort.Slice(snap.Bindings, func(i, j int) bool { return snap.Bindings[i].ID < snap.Bindings[j].ID })
	return snap
}

// persistLocked rewrites the snapshot file. Callers hold b.mu and undo their
// change when it fails.
func (b *Backend) persistLocked() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	data, err := encodeSnapshot(b.snapshotLocked(), b.cfg.Compress)
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(b.cfg.SnapshotPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func encodeSnapshot(snap *core.Snapshot, compress bool) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if !compress {
		return data, nil
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot accepts plain or gzip-compressed JSON.
func decodeSnapshot(raw []byte) (*core.Snapshot, error) {
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		raw, err = io.ReadAll(gr)
		if err != nil {
			return nil, err
		}
	}

	var snap core.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
