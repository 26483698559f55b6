// internal/model/core/types.go
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vec3 is a 3-tuple of reals used for position, scale and rotation.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// String renders the vector in the "x y z" form clients send.
func (v Vec3) String() string {
	return strconv.FormatFloat(v.X, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Y, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Z, 'g', -1, 64)
}

// ParseVec3 parses "x y z". An empty (or blank) string yields def.
func ParseVec3(s string, def Vec3) (Vec3, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return def, nil
	}
	if len(fields) != 3 {
		return Vec3{}, fmt.Errorf("%w: %q needs 3 components, got %d", ErrInvalidTransform, s, len(fields))
	}

	var out [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Vec3{}, fmt.Errorf("%w: %q is not a finite number", ErrInvalidTransform, f)
		}
		out[i] = v
	}
	return Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Transform places content relative to the marker.
type Transform struct {
	Position Vec3 `json:"position"`
	Scale    Vec3 `json:"scale"`
	Rotation Vec3 `json:"rotation"`
}

// DefaultTransform is (0,0,0) / (1,1,1) / (0,0,0).
func DefaultTransform() Transform {
	return Transform{
		Scale: Vec3{X: 1, Y: 1, Z: 1},
	}
}

// ParseTransform builds a Transform from the three "x y z" strings, falling
// back to DefaultTransform for each empty field.
func ParseTransform(position, scale, rotation string) (Transform, error) {
	def := DefaultTransform()

	pos, err := ParseVec3(position, def.Position)
	if err != nil {
		return Transform{}, fmt.Errorf("position: %w", err)
	}
	scl, err := ParseVec3(scale, def.Scale)
	if err != nil {
		return Transform{}, fmt.Errorf("scale: %w", err)
	}
	rot, err := ParseVec3(rotation, def.Rotation)
	if err != nil {
		return Transform{}, fmt.Errorf("rotation: %w", err)
	}
	return Transform{Position: pos, Scale: scl, Rotation: rot}, nil
}
