package simspace

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/simspace/pkg/kernel"
	"github.com/sanonone/simspace/pkg/metrics"
)

// Potential is a weighted sum of kernel similarities between the rows of a
// target node and a fixed source ensemble:
//
//	E = sum_rows sum_i w_i k(s_i, x_row)
//
// The potential does not own the target node or the source matrix.
type Potential struct {
	target  *Node
	source  *mat.Dense
	weights []float64
	fn      kernel.Function
}

// NewPotential validates that there is one weight per source row.
func NewPotential(target *Node, source *mat.Dense, weights []float64, fn kernel.Function) (*Potential, error) {
	rows, cols := source.Dims()
	if len(weights) != rows {
		return nil, fmt.Errorf("potential: %d weights for %d source rows: %w", len(weights), rows, ErrWeightLength)
	}
	if target.Dim() != 0 && target.Dim() != cols {
		return nil, fmt.Errorf("potential: target dim %d, source dim %d: %w", target.Dim(), cols, ErrDimensionMismatch)
	}
	return &Potential{
		target:  target,
		source:  source,
		weights: weights,
		fn:      fn,
	}, nil
}

// UniformWeights returns n copies of alpha.
func UniformWeights(n int, alpha float64) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = alpha
	}
	return w
}

// Target returns the node the potential acts on.
func (p *Potential) Target() *Node { return p.target }

// Weights returns the regression weights.
func (p *Potential) Weights() []float64 { return p.weights }

func (p *Potential) check() error {
	if p.target.Size() == 0 {
		return fmt.Errorf("potential: node %d: %w", p.target.ID(), ErrNotAcquired)
	}
	if _, cols := p.source.Dims(); cols != p.target.Dim() {
		return fmt.Errorf("potential: target dim %d, source dim %d: %w", p.target.Dim(), cols, ErrDimensionMismatch)
	}
	return nil
}

// ComputeEnergy sums the weighted similarities over all target rows.
func (p *Potential) ComputeEnergy() (float64, error) {
	e, _, err := p.energy(false)
	return e, err
}

// ComputeEnergyProjection also returns the similarity vector of every
// target row, showing which source rows drive the energy.
func (p *Potential) ComputeEnergyProjection() (float64, [][]float64, error) {
	return p.energy(true)
}

func (p *Potential) energy(projection bool) (float64, [][]float64, error) {
	if err := p.check(); err != nil {
		return 0, nil, err
	}
	ix := p.target.IX()
	rows, _ := ix.Dims()

	var prj [][]float64
	if projection {
		prj = make([][]float64, 0, rows)
	}
	energy := 0.0
	for i := 0; i < rows; i++ {
		ic := p.fn.Compute(p.source, ix.RawRowView(i))
		energy += floats.Dot(p.weights, ic)
		if projection {
			prj = append(prj, ic)
		}
	}
	metrics.Evaluations.WithLabelValues("energy").Inc()
	return energy, prj, nil
}

// ComputeForces returns an N×3 matrix of forces, one row per particle. For
// every atomic environment, g = w . dk/dX_norm is contracted with the
// derivative of X_norm w.r.t. each neighbour's coordinates and subtracted
// from that neighbour's force.
func (p *Potential) ComputeForces() (*mat.Dense, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	np := p.target.Structure().N()
	forces := mat.NewDense(np, 3, nil)
	w := mat.NewVecDense(len(p.weights), p.weights)

	var g mat.VecDense
	for a := range p.target.ListAtomic() {
		pid := a.CenterID
		_, xNorm, err := p.target.PidX(pid)
		if err != nil {
			return nil, err
		}
		dK := p.fn.ComputeDerivativeOuter(p.source, xNorm)
		g.MulVec(dK.T(), w)
		grad := g.RawVector().Data

		for _, nb := range a.NeighbourIDs() {
			dx, dy, dz, err := p.target.PidGradX(pid, nb)
			if err != nil {
				return nil, err
			}
			f := forces.RawRowView(nb - 1)
			f[0] -= floats.Dot(grad, dx)
			f[1] -= floats.Dot(grad, dy)
			f[2] -= floats.Dot(grad, dz)
		}
	}
	metrics.Evaluations.WithLabelValues("forces").Inc()
	return forces, nil
}

// ComputeGradients returns the energy gradient, the exact negation of
// ComputeForces.
func (p *Potential) ComputeGradients() (*mat.Dense, error) {
	f, err := p.ComputeForces()
	if err != nil {
		return nil, err
	}
	f.Scale(-1, f)
	return f, nil
}
