// Package structure holds the particle containers the descriptor engine and
// the potentials operate on.
//
// Particle ids are dense and 1-based: the i-th particle added to a Structure
// gets id i+1. Positions are gonum r3 vectors so that geometry helpers can be
// shared with the boundary code.
package structure

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is a single atom of a Structure.
type Particle struct {
	ID   int
	Type string
	Pos  r3.Vec
}

// Structure is an ordered, mutable collection of particles plus the boundary
// used to connect them.
type Structure struct {
	Label     string
	particles []*Particle
	boundary  Boundary
}

// New creates an empty structure with open boundary conditions.
func New(label string) *Structure {
	return &Structure{
		Label:    label,
		boundary: OpenBoundary(),
	}
}

// AddParticle appends a particle and returns it. The id is assigned
// sequentially starting at 1.
func (s *Structure) AddParticle(typ string, pos r3.Vec) *Particle {
	p := &Particle{
		ID:   len(s.particles) + 1,
		Type: typ,
		Pos:  pos,
	}
	s.particles = append(s.particles, p)
	return p
}

// N returns the number of particles.
func (s *Structure) N() int { return len(s.particles) }

// Particles returns the particles in id order. The slice is shared.
func (s *Structure) Particles() []*Particle { return s.particles }

// Particle returns the particle with the given 1-based id.
func (s *Structure) Particle(id int) (*Particle, error) {
	if id < 1 || id > len(s.particles) {
		return nil, fmt.Errorf("particle %d of %d: %w", id, len(s.particles), ErrInvalidID)
	}
	return s.particles[id-1], nil
}

// Boundary returns the boundary conditions of the structure.
func (s *Structure) Boundary() Boundary { return s.boundary }

// SetBoundary replaces the boundary conditions.
func (s *Structure) SetBoundary(b Boundary) { s.boundary = b }

// Connect returns the vector pointing from particle a to particle b under
// the structure's boundary conditions.
func (s *Structure) Connect(a, b *Particle) r3.Vec {
	return s.boundary.Connect(a.Pos, b.Pos)
}

// Clone returns a deep copy. Nodes always work on a clone so that the
// caller's structure is never aliased.
func (s *Structure) Clone() *Structure {
	c := &Structure{
		Label:     s.Label,
		particles: make([]*Particle, len(s.particles)),
		boundary:  s.boundary,
	}
	for i, p := range s.particles {
		cp := *p
		c.particles[i] = &cp
	}
	return c
}

// Positions returns an N×3 matrix with one row per particle in id order.
func (s *Structure) Positions() *mat.Dense {
	if len(s.particles) == 0 {
		return &mat.Dense{}
	}
	pos := mat.NewDense(len(s.particles), 3, nil)
	for i, p := range s.particles {
		pos.SetRow(i, []float64{p.Pos.X, p.Pos.Y, p.Pos.Z})
	}
	return pos
}

// SetPositions overwrites every particle position from an N×3 matrix.
func (s *Structure) SetPositions(pos mat.Matrix) error {
	r, c := pos.Dims()
	if r != len(s.particles) || c != 3 {
		return fmt.Errorf("positions %dx%d for %d particles: %w", r, c, len(s.particles), ErrShape)
	}
	for i, p := range s.particles {
		p.Pos = r3.Vec{X: pos.At(i, 0), Y: pos.At(i, 1), Z: pos.At(i, 2)}
	}
	return nil
}
