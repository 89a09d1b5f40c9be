package structure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BoundaryType selects how inter-particle vectors are computed.
type BoundaryType string

const (
	// Open uses plain coordinate differences.
	Open BoundaryType = "open"
	// Orthorhombic applies the minimum image convention on a rectangular box.
	Orthorhombic BoundaryType = "orthorhombic"
	// Triclinic applies the minimum image convention on a general cell.
	Triclinic BoundaryType = "triclinic"
)

// Boundary is a value type describing the simulation cell. The zero value is
// an open boundary.
type Boundary struct {
	kind BoundaryType
	// Cell vectors a, b, c.
	box [3]r3.Vec
	// Reciprocal vectors, only used by triclinic cells.
	inv [3]r3.Vec
}

// OpenBoundary returns a boundary without periodicity.
func OpenBoundary() Boundary { return Boundary{kind: Open} }

// NewBoundary builds a boundary of the given type from the cell vectors
// a, b, c. An unknown type fails fast.
func NewBoundary(kind BoundaryType, a, b, c r3.Vec) (Boundary, error) {
	bd := Boundary{kind: kind, box: [3]r3.Vec{a, b, c}}
	switch kind {
	case Open, "":
		bd.kind = Open
		return bd, nil
	case Orthorhombic:
		if a.X == 0 || b.Y == 0 || c.Z == 0 {
			return Boundary{}, fmt.Errorf("orthorhombic box diagonal (%g, %g, %g): %w", a.X, b.Y, c.Z, ErrDegenerateBox)
		}
		return bd, nil
	case Triclinic:
		v := r3.Dot(r3.Cross(a, b), c)
		if v == 0 {
			return Boundary{}, fmt.Errorf("triclinic box volume is zero: %w", ErrDegenerateBox)
		}
		bd.inv = [3]r3.Vec{
			r3.Scale(1/v, r3.Cross(b, c)),
			r3.Scale(1/v, r3.Cross(c, a)),
			r3.Scale(1/v, r3.Cross(a, b)),
		}
		return bd, nil
	default:
		return Boundary{}, fmt.Errorf("%q: %w", kind, ErrUnknownBoundary)
	}
}

// Type returns the boundary type tag.
func (b Boundary) Type() BoundaryType {
	if b.kind == "" {
		return Open
	}
	return b.kind
}

// Box returns the cell vectors.
func (b Boundary) Box() [3]r3.Vec { return b.box }

// Volume returns the cell volume, zero for open boundaries.
func (b Boundary) Volume() float64 {
	if b.Type() == Open {
		return 0
	}
	return r3.Dot(r3.Cross(b.box[0], b.box[1]), b.box[2])
}

// Connect returns the shortest vector from ri to rj.
func (b Boundary) Connect(ri, rj r3.Vec) r3.Vec {
	dr := r3.Sub(rj, ri)
	switch b.kind {
	case Orthorhombic:
		dr.X -= b.box[0].X * math.Round(dr.X/b.box[0].X)
		dr.Y -= b.box[1].Y * math.Round(dr.Y/b.box[1].Y)
		dr.Z -= b.box[2].Z * math.Round(dr.Z/b.box[2].Z)
		return dr
	case Triclinic:
		return b.connectTriclinic(dr)
	default:
		return dr
	}
}

func (b Boundary) connectTriclinic(dr r3.Vec) r3.Vec {
	a, bb, c := b.box[0], b.box[1], b.box[2]
	dr = r3.Sub(dr, r3.Scale(math.Floor(r3.Dot(b.inv[0], dr)), a))
	dr = r3.Sub(dr, r3.Scale(math.Floor(r3.Dot(b.inv[1], dr)), bb))
	dr = r3.Sub(dr, r3.Scale(math.Floor(r3.Dot(b.inv[2], dr)), c))

	best := dr
	dmin := r3.Norm(dr)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				shift := r3.Add(r3.Add(r3.Scale(float64(i), a), r3.Scale(float64(j), bb)), r3.Scale(float64(k), c))
				cand := r3.Sub(dr, shift)
				if d := r3.Norm(cand); d < dmin {
					dmin = d
					best = cand
				}
			}
		}
	}
	return best
}
