// internal/model/core/errors.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMarkerNotFound is returned when a marker id does not resolve.
	ErrMarkerNotFound = errors.New("marker not found")
	// ErrContentNotFound is returned when a content binding id does not resolve.
	ErrContentNotFound = errors.New("content not found")
	// ErrInvalidContentType is returned for content types outside image/video/model.
	ErrInvalidContentType = errors.New("invalid content type")
	// ErrNameRequired is returned when a marker name is blank.
	ErrNameRequired = errors.New("marker name is required")
	// ErrAssetNotFound is returned when an asset ref cannot be resolved by the asset store.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrInvalidTransform is returned when a transform component cannot be parsed.
	ErrInvalidTransform = errors.New("invalid transform")
)

// ValidationError reports every defect found in an uploaded marker image.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "image is not usable as a marker: " + strings.Join(e.Issues, ", ")
}

// EncodingReason classifies why a validated image could not become a marker.
type EncodingReason string

const (
	ReasonLowVariance EncodingReason = "low_variance"
	ReasonDecode      EncodingReason = "decode"
	ReasonGrid        EncodingReason = "grid"
	ReasonStorage     EncodingReason = "storage"
)

// EncodingError wraps a failure between validation and a committed marker.
type EncodingError struct {
	Reason EncodingReason
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed (%s): %v", e.Reason, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// AssetTooLargeError is returned when an asset exceeds its content type's ceiling.
type AssetTooLargeError struct {
	ContentType ContentType
	Size        int64
	Limit       int64
}

func (e *AssetTooLargeError) Error() string {
	return fmt.Sprintf("%s asset is too large: %d bytes (maximum %d)", e.ContentType, e.Size, e.Limit)
}
