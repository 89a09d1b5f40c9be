// Package descriptor defines the contract between the potential machinery
// and the descriptor engine, and ships a reference engine.
//
// An Engine turns a structure into a Spectrum: one AtomicSpectrum per
// atomic environment, each carrying the unnormalized descriptor of its
// center and the derivatives of that descriptor with respect to the
// coordinates of every listed neighbour. The neighbour list always contains
// the center itself.
package descriptor

import (
	"fmt"
	"slices"

	"github.com/sanonone/simspace/pkg/structure"
)

// Engine computes descriptors and their analytic derivatives.
type Engine interface {
	// Compute evaluates all atomic environments from the current positions.
	Compute(s *structure.Structure) (*Spectrum, error)
	// Dim is the length of every atomic descriptor.
	Dim() int
}

// AtomicSpectrum is the descriptor state of one atomic environment.
type AtomicSpectrum struct {
	CenterID   int
	CenterType string

	x          []float64
	neighbours []int
	// grad holds [slot][axis][dim], slot following neighbours.
	grad []float64
}

// NewAtomicSpectrum assembles an atomic environment. neighbours must be
// sorted ascending and grad must hold len(neighbours)*3*len(x) values laid
// out as [neighbour][axis][component].
func NewAtomicSpectrum(centerID int, centerType string, x []float64, neighbours []int, grad []float64) (*AtomicSpectrum, error) {
	if !slices.IsSorted(neighbours) {
		return nil, fmt.Errorf("center %d: neighbour ids not sorted: %w", centerID, ErrInvalidOptions)
	}
	if len(grad) != len(neighbours)*3*len(x) {
		return nil, fmt.Errorf("center %d: gradient arena has %d values, want %d: %w",
			centerID, len(grad), len(neighbours)*3*len(x), ErrInvalidOptions)
	}
	return &AtomicSpectrum{
		CenterID:   centerID,
		CenterType: centerType,
		x:          x,
		neighbours: neighbours,
		grad:       grad,
	}, nil
}

// X returns the unnormalized descriptor. The slice is shared.
func (a *AtomicSpectrum) X() []float64 { return a.x }

// Dim returns the descriptor length.
func (a *AtomicSpectrum) Dim() int { return len(a.x) }

// NeighbourIDs returns the sorted ids of all particles the descriptor
// depends on, the center included.
func (a *AtomicSpectrum) NeighbourIDs() []int { return a.neighbours }

// Gradient returns dX/dx, dX/dy, dX/dz with respect to the position of
// neighbour nbID. ok is false when nbID is not a neighbour.
func (a *AtomicSpectrum) Gradient(nbID int) (dx, dy, dz []float64, ok bool) {
	slot, found := slices.BinarySearch(a.neighbours, nbID)
	if !found {
		return nil, nil, nil, false
	}
	d := len(a.x)
	base := slot * 3 * d
	return a.grad[base : base+d], a.grad[base+d : base+2*d], a.grad[base+2*d : base+3*d], true
}

// Spectrum is the result of one engine evaluation.
type Spectrum struct {
	structure *structure.Structure
	atomic    []*AtomicSpectrum
	dim       int
}

// NewSpectrum wraps atomic environments computed for s.
func NewSpectrum(s *structure.Structure, dim int, atomic []*AtomicSpectrum) *Spectrum {
	return &Spectrum{structure: s, atomic: atomic, dim: dim}
}

// Structure returns the structure the spectrum was computed from.
func (sp *Spectrum) Structure() *structure.Structure { return sp.structure }

// Atomic returns the atomic environments in engine order.
func (sp *Spectrum) Atomic() []*AtomicSpectrum { return sp.atomic }

// Dim returns the descriptor length.
func (sp *Spectrum) Dim() int { return sp.dim }

// Global returns the sum of all unnormalized atomic descriptors.
func (sp *Spectrum) Global() []float64 {
	g := make([]float64, sp.dim)
	for _, a := range sp.atomic {
		for i, v := range a.x {
			g[i] += v
		}
	}
	return g
}
