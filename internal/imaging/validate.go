// Package imaging checks uploaded marker images and reduces them to the
// canonical luminance grid used for pattern encoding.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	// decoders for the accepted marker formats
	_ "image/jpeg"
	_ "image/png"

	// decoders for formats we recognise only to reject them with a precise issue
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Edge limits in pixels. The maximum bounds the raster allocated by a decode,
// which a small compressed file can otherwise inflate to gigabytes.
const (
	DefaultMinSize = 256
	DefaultMaxSize = 4096
)

// Issue texts reported by Validate.
const (
	IssueUndecodable = "image could not be decoded"
	IssueNotSquare   = "image must be square"
	IssueFormat      = "only JPEG and PNG formats are supported"
)

// IssueTooSmall formats the minimum-size issue for min.
func IssueTooSmall(min int) string {
	return fmt.Sprintf("image is too small (minimum %dx%d)", min, min)
}

// IssueTooLarge formats the maximum-size issue for max.
func IssueTooLarge(max int) string {
	return fmt.Sprintf("image is too large (maximum %dx%d)", max, max)
}

// Metadata describes the decoded image header.
type Metadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

// Result is the outcome of Validate. Issues are ordered: size, aspect, format.
type Result struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues"`
	Metadata Metadata `json:"metadata"`
}

// Validator checks image headers against the marker constraints.
type Validator struct {
	minSize int
	maxSize int
}

// NewValidator creates a Validator accepting edges in [minSize, maxSize].
// Non-positive bounds select DefaultMinSize and DefaultMaxSize.
func NewValidator(minSize, maxSize int) *Validator {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Validator{minSize: minSize, maxSize: maxSize}
}

// Validate never fails; every defect is reported in the result.
func (v *Validator) Validate(data []byte) Result {
	res := Result{
		Issues:   []string{},
		Metadata: Metadata{Bytes: len(data)},
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		res.Issues = append(res.Issues, IssueUndecodable, IssueFormat)
		return res
	}
	res.Metadata.Width = cfg.Width
	res.Metadata.Height = cfg.Height
	res.Metadata.Format = format

	if cfg.Width < v.minSize || cfg.Height < v.minSize {
		res.Issues = append(res.Issues, IssueTooSmall(v.minSize))
	}
	if cfg.Width > v.maxSize || cfg.Height > v.maxSize {
		res.Issues = append(res.Issues, IssueTooLarge(v.maxSize))
	}
	if cfg.Width != cfg.Height {
		res.Issues = append(res.Issues, IssueNotSquare)
	}
	if format != "jpeg" && format != "png" {
		res.Issues = append(res.Issues, IssueFormat)
	}

	res.Valid = len(res.Issues) == 0
	return res
}
