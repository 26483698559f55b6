// Package ingest turns an uploaded marker image into a stored descriptor:
// validate, normalize, encode, persist.
package ingest

import (
	"context"
	"errors"

	"github.com/webarportal/portal/internal/assets"
	"github.com/webarportal/portal/internal/imaging"
	"github.com/webarportal/portal/internal/model/core"
	"github.com/webarportal/portal/internal/pattern"
)

// DescriptorExt is the extension descriptor artifacts are stored under.
const DescriptorExt = "patt"

// Pipeline runs the marker ingestion stages. It holds no mutable state and is
// safe for concurrent use.
type Pipeline struct {
	validator  *imaging.Validator
	normalizer *imaging.Normalizer
	encoder    *pattern.Encoder
	store      assets.Store
}

// New builds a pipeline for the given tuning. Non-positive image size bounds
// select the validator defaults.
func New(cfg pattern.Config, minImageSize, maxImageSize int, store assets.Store) *Pipeline {
	enc := pattern.NewEncoder(cfg)
	return &Pipeline{
		validator:  imaging.NewValidator(minImageSize, maxImageSize),
		normalizer: imaging.NewNormalizer(enc.Config().GridSize),
		encoder:    enc,
		store:      store,
	}
}

// Validate reports the image's defects without encoding it.
func (p *Pipeline) Validate(data []byte) imaging.Result {
	return p.validator.Validate(data)
}

// Encode validates data and derives its descriptor. Failures are
// *core.ValidationError or *core.EncodingError.
func (p *Pipeline) Encode(data []byte) (*pattern.Descriptor, error) {
	if res := p.validator.Validate(data); !res.Valid {
		return nil, &core.ValidationError{Issues: res.Issues}
	}

	grid, err := p.normalizer.Normalize(data)
	if err != nil {
		return nil, &core.EncodingError{Reason: core.ReasonDecode, Err: err}
	}

	desc, err := p.encoder.Encode(grid)
	switch {
	case errors.Is(err, pattern.ErrLowVariance):
		return nil, &core.EncodingError{Reason: core.ReasonLowVariance, Err: err}
	case err != nil:
		return nil, &core.EncodingError{Reason: core.ReasonGrid, Err: err}
	}
	return desc, nil
}

// Prepare encodes data and writes the descriptor document to the asset store,
// returning its ref. Nothing is written when encoding fails.
func (p *Pipeline) Prepare(ctx context.Context, data []byte) (string, error) {
	desc, err := p.Encode(data)
	if err != nil {
		return "", err
	}
	text, err := desc.MarshalText()
	if err != nil {
		return "", &core.EncodingError{Reason: core.ReasonGrid, Err: err}
	}
	ref, err := p.store.Put(ctx, DescriptorExt, text)
	if err != nil {
		return "", &core.EncodingError{Reason: core.ReasonStorage, Err: err}
	}
	return ref, nil
}
