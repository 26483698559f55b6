package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/webarportal/portal/internal/pattern"
)

// Normalizer converts images into canonical luminance grids.
type Normalizer struct {
	gridSize int
}

// NewNormalizer creates a Normalizer producing gridSize×gridSize grids.
func NewNormalizer(gridSize int) *Normalizer {
	if gridSize <= 0 {
		gridSize = pattern.DefaultConfig().GridSize
	}
	return &Normalizer{gridSize: gridSize}
}

// Normalize decodes data and reduces it to the canonical grid.
func (n *Normalizer) Normalize(data []byte) (*pattern.Grid, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return n.NormalizeImage(img)
}

// NormalizeImage converts img to luminance, stretches its histogram to the
// full [0,255] range and area-averages it onto the grid.
//
// The stretch is affine and the area weights of every cell sum to one, so it
// is applied to the cell means after averaging; the result equals stretching
// every pixel first without holding a full-resolution buffer.
func (n *Normalizer) NormalizeImage(img image.Image) (*pattern.Grid, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	size := n.gridSize
	wx := axisWeights(w, size)
	wy := axisWeights(h, size)

	acc := make([]float64, size*size)
	lo, hi := math.Inf(1), math.Inf(-1)

	for y := 0; y < h; y++ {
		rowSpans := wy[y]
		for x := 0; x < w; x++ {
			l := luma(img, b.Min.X+x, b.Min.Y+y)
			if l < lo {
				lo = l
			}
			if l > hi {
				hi = l
			}
			for _, sy := range rowSpans {
				base := sy.cell * size
				for _, sx := range wx[x] {
					acc[base+sx.cell] += sx.weight * sy.weight * l
				}
			}
		}
	}

	g := pattern.NewGrid(size)
	for i, mean := range acc {
		v := mean
		if hi > lo {
			v = (mean - lo) * 255 / (hi - lo)
		}
		g.Cells[i] = clampByte(v)
	}
	return g, nil
}

// span is a source pixel's share of one output cell along an axis.
type span struct {
	cell   int
	weight float64
}

// axisWeights maps every source index to the output cells it overlaps. The
// weight is the overlap length divided by the cell length, so the weights
// contributing to a cell sum to one.
func axisWeights(src, dst int) [][]span {
	scale := float64(src) / float64(dst)
	out := make([][]span, src)
	for x := 0; x < src; x++ {
		lo, hi := float64(x), float64(x+1)
		first := int(lo / scale)
		last := int(math.Ceil(hi/scale)) - 1
		if last >= dst {
			last = dst - 1
		}
		for o := first; o <= last; o++ {
			cellLo, cellHi := float64(o)*scale, float64(o+1)*scale
			overlap := math.Min(hi, cellHi) - math.Max(lo, cellLo)
			if overlap > 0 {
				out[x] = append(out[x], span{cell: o, weight: overlap / scale})
			}
		}
	}
	return out
}

// luma returns Rec. 601 luminance in [0,255]. Common decoder outputs are read
// through their concrete color types to avoid boxing every pixel.
func luma(img image.Image, x, y int) float64 {
	var r, g, b uint32
	switch m := img.(type) {
	case *image.YCbCr:
		yi, ci := m.YOffset(x, y), m.COffset(x, y)
		r, g, b, _ = color.YCbCr{Y: m.Y[yi], Cb: m.Cb[ci], Cr: m.Cr[ci]}.RGBA()
	case *image.Gray:
		return float64(m.Pix[m.PixOffset(x, y)])
	case *image.NRGBA:
		i := m.PixOffset(x, y)
		r, g, b, _ = color.NRGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: m.Pix[i+3]}.RGBA()
	case *image.RGBA:
		i := m.PixOffset(x, y)
		r, g, b, _ = color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: m.Pix[i+3]}.RGBA()
	default:
		r, g, b, _ = img.At(x, y).RGBA()
	}
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
