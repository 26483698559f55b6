package assets

import (
	"context"
	"fmt"
	"sync"

	"github.com/webarportal/portal/internal/model/core"
)

// MemoryStore is an in-process Store, used by tests and offline tooling.
type MemoryStore struct {
	mu        sync.RWMutex
	urlPrefix string
	files     map[string][]byte
}

// NewMemoryStore creates an empty store issuing refs under urlPrefix.
func NewMemoryStore(urlPrefix string) *MemoryStore {
	if urlPrefix == "" {
		urlPrefix = "/assets/"
	}
	return &MemoryStore{
		urlPrefix: urlPrefix,
		files:     make(map[string][]byte),
	}
}

func (m *MemoryStore) Put(ctx context.Context, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, err := normalizeExt(ext)
	if err != nil {
		return "", err
	}
	ref := m.urlPrefix + newName(ext)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (m *MemoryStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrAssetNotFound, ref)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Size(ctx context.Context, ref string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[ref]
	if !ok {
		return 0, fmt.Errorf("%w: %q", core.ErrAssetNotFound, ref)
	}
	return int64(len(data)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[ref]; !ok {
		return fmt.Errorf("%w: %q", core.ErrAssetNotFound, ref)
	}
	delete(m.files, ref)
	return nil
}

// Len returns the number of stored assets.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
