package pattern

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned by ParseDescriptor for documents that do not follow
// the descriptor layout.
var ErrMalformed = errors.New("malformed descriptor")

// Descriptor holds the canonical grid at 0°, 90°, 180° and 270° clockwise.
type Descriptor struct {
	Size   int
	Tables [Rotations]*Grid
}

// MarshalText renders the descriptor document: the grid dimension on the first
// line, then four tables of Size rows, values right-aligned in width 3,
// tables separated by a blank line.
func (d *Descriptor) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(Rotations * d.Size * (d.Size*4 + 1))

	buf.WriteString(strconv.Itoa(d.Size))
	buf.WriteByte('\n')

	for t, g := range d.Tables {
		if g == nil || g.Size != d.Size {
			return nil, fmt.Errorf("table %d does not match descriptor size %d", t, d.Size)
		}
		if t > 0 {
			buf.WriteByte('\n')
		}
		for r := 0; r < d.Size; r++ {
			for c := 0; c < d.Size; c++ {
				if c > 0 {
					buf.WriteByte(' ')
				}
				fmt.Fprintf(&buf, "%3d", g.At(r, c))
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// ParseDescriptor reads a descriptor document. Blank lines are ignored; every
// table must contain exactly Size rows of Size values in [0,255].
func ParseDescriptor(data []byte) (*Descriptor, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines [][]string
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	if len(lines[0]) != 1 {
		return nil, fmt.Errorf("%w: header must hold only the grid dimension", ErrMalformed)
	}
	n, err := strconv.Atoi(lines[0][0])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: invalid grid dimension %q", ErrMalformed, lines[0][0])
	}

	rows := lines[1:]
	if len(rows) != Rotations*n {
		return nil, fmt.Errorf("%w: got %d rows, want %d", ErrMalformed, len(rows), Rotations*n)
	}

	d := &Descriptor{Size: n}
	for t := 0; t < Rotations; t++ {
		g := NewGrid(n)
		for r := 0; r < n; r++ {
			row := rows[t*n+r]
			if len(row) != n {
				return nil, fmt.Errorf("%w: table %d row %d has %d values, want %d", ErrMalformed, t, r, len(row), n)
			}
			for c, f := range row {
				v, err := strconv.Atoi(f)
				if err != nil || v < 0 || v > 255 {
					return nil, fmt.Errorf("%w: table %d row %d: invalid value %q", ErrMalformed, t, r, f)
				}
				g.Set(r, c, uint8(v))
			}
		}
		d.Tables[t] = g
	}
	return d, nil
}
