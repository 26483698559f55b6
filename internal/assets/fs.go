package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/webarportal/portal/internal/model/core"
	"github.com/webarportal/portal/internal/util"
)

// FSStore keeps assets as files in a single directory. Refs are URL paths
// (urlPrefix + file name) so the directory can be served as is.
type FSStore struct {
	dir       string
	urlPrefix string
}

// NewFSStore creates dir if needed.
func NewFSStore(dir, urlPrefix string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &FSStore{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir returns the backing directory.
func (s *FSStore) Dir() string {
	return s.dir
}

// URLPrefix returns the prefix every ref starts with.
func (s *FSStore) URLPrefix() string {
	return s.urlPrefix
}

func (s *FSStore) Put(ctx context.Context, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, err := normalizeExt(ext)
	if err != nil {
		return "", err
	}
	name := newName(ext)
	if err := util.WriteFileAtomic(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return s.urlPrefix + name, nil
}

func (s *FSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, s.wrap(ref, err)
	}
	return data, nil
}

func (s *FSStore) Size(ctx context.Context, ref string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, err := s.path(ref)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, s.wrap(ref, err)
	}
	return info.Size(), nil
}

func (s *FSStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return s.wrap(ref, err)
	}
	return nil
}

func (s *FSStore) path(ref string) (string, error) {
	name, err := nameFromRef(s.urlPrefix, ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FSStore) wrap(ref string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", core.ErrAssetNotFound, ref)
	}
	return fmt.Errorf("asset %q: %w", ref, err)
}
