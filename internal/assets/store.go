// Package assets stores uploaded files and generated descriptors under opaque
// references.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/webarportal/portal/internal/model/core"
)

// Store persists binary assets. Refs returned by Put are opaque to callers.
type Store interface {
	Put(ctx context.Context, ext string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Size(ctx context.Context, ref string) (int64, error)
	Delete(ctx context.Context, ref string) error
}

// ErrInvalidExtension is returned by Put for extensions outside [a-z0-9]{1,10}.
var ErrInvalidExtension = errors.New("invalid asset extension")

var extPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// normalizeExt lowercases ext and strips a leading dot.
func normalizeExt(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !extPattern.MatchString(ext) {
		return "", fmt.Errorf("%w %q", ErrInvalidExtension, ext)
	}
	return ext, nil
}

func newName(ext string) string {
	return uuid.NewString() + "." + ext
}

// nameFromRef extracts the file name from a ref issued under prefix.
func nameFromRef(prefix, ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, prefix)
	if !ok || name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", core.ErrAssetNotFound, ref)
	}
	return name, nil
}
