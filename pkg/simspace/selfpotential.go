package simspace

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/simspace/pkg/metrics"
)

// SelfPotential is a descriptor-independent energy term internal to one
// structure.
type SelfPotential interface {
	// ComputeEnergy returns the energy of the current positions.
	ComputeEnergy() float64
	// ComputeGradient returns the N×3 energy gradient.
	ComputeGradient() *mat.Dense
}

// LJRepulsive is the repulsive r^-12 wall of a Lennard-Jones pair term,
// summed over all unordered pairs of the node's structure. Two particles at
// the same position are a precondition violation.
type LJRepulsive struct {
	node  *Node
	sigma float64
}

// NewLJRepulsive binds a repulsion of length scale sigma to node.
func NewLJRepulsive(node *Node, sigma float64) (*LJRepulsive, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("lj repulsive sigma=%g: %w", sigma, ErrInvalidSigma)
	}
	return &LJRepulsive{node: node, sigma: sigma}, nil
}

// Sigma returns the repulsion length scale.
func (lj *LJRepulsive) Sigma() float64 { return lj.sigma }

// ComputeEnergy returns sum_{i<j} (sigma/r_ij)^12.
func (lj *LJRepulsive) ComputeEnergy() float64 {
	parts := lj.node.Structure().Particles()
	e := 0.0
	for i := range parts {
		for j := 0; j < i; j++ {
			r := r3.Norm(r3.Sub(parts[i].Pos, parts[j].Pos))
			e += math.Pow(lj.sigma/r, 12)
		}
	}
	metrics.Evaluations.WithLabelValues("self_energy").Inc()
	return e
}

// ComputeGradient returns the analytic gradient. Each pair adds equal and
// opposite contributions to its two particles.
func (lj *LJRepulsive) ComputeGradient() *mat.Dense {
	parts := lj.node.Structure().Particles()
	if len(parts) == 0 {
		return &mat.Dense{}
	}
	grad := mat.NewDense(len(parts), 3, nil)
	for i := range parts {
		gi := grad.RawRowView(i)
		for j := 0; j < i; j++ {
			dr := r3.Sub(parts[i].Pos, parts[j].Pos)
			r := r3.Norm(dr)
			g := 12 / lj.sigma * math.Pow(lj.sigma/r, 13)
			v := r3.Scale(g/r, dr)

			gj := grad.RawRowView(j)
			gi[0] -= v.X
			gi[1] -= v.Y
			gi[2] -= v.Z
			gj[0] += v.X
			gj[1] += v.Y
			gj[2] += v.Z
		}
	}
	metrics.Evaluations.WithLabelValues("self_gradient").Inc()
	return grad
}
