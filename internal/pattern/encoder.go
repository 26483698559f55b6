package pattern

import (
	"errors"
	"fmt"
)

var (
	// ErrLowVariance is returned for near-uniform grids the tracker cannot tell apart.
	ErrLowVariance = errors.New("grid luminance variance below threshold")
	// ErrGridSize is returned when a grid does not match the configured dimension.
	ErrGridSize = errors.New("grid size mismatch")
)

// Rotations is the number of tables stored in a descriptor (0°, 90°, 180°, 270°).
const Rotations = 4

// Config holds the tracking-engine tuning parameters.
type Config struct {
	GridSize    int
	MinVariance float64
}

// DefaultConfig returns a 16×16 grid with a variance floor of 100 (σ = 10).
func DefaultConfig() Config {
	return Config{
		GridSize:    16,
		MinVariance: 100,
	}
}

// Encoder produces descriptors from canonical grids.
type Encoder struct {
	cfg Config
}

// NewEncoder creates an Encoder; a non-positive GridSize falls back to the default.
func NewEncoder(cfg Config) *Encoder {
	if cfg.GridSize <= 0 {
		cfg.GridSize = DefaultConfig().GridSize
	}
	return &Encoder{cfg: cfg}
}

// Config returns the encoder's configuration.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Encode gates g on variance and derives the four rotation tables from it.
func (e *Encoder) Encode(g *Grid) (*Descriptor, error) {
	if g == nil || g.Size != e.cfg.GridSize || len(g.Cells) != g.Size*g.Size {
		size := 0
		if g != nil {
			size = g.Size
		}
		return nil, fmt.Errorf("%w: got %d, want %d", ErrGridSize, size, e.cfg.GridSize)
	}

	if v := g.Variance(); v < e.cfg.MinVariance {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrLowVariance, v, e.cfg.MinVariance)
	}

	d := &Descriptor{Size: g.Size}
	cur := &Grid{Size: g.Size, Cells: append([]uint8(nil), g.Cells...)}
	for i := 0; i < Rotations; i++ {
		d.Tables[i] = cur
		cur = cur.Rotate90()
	}
	return d, nil
}
