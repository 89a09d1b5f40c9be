// Package simspace assembles descriptor state into nodes and ensembles and
// derives kernel energies and forces from them.
//
// A Node owns one structure and its descriptor state, a Topology owns an
// ordered ensemble of nodes, and a Potential compares a target node with a
// source ensemble through a kernel function. Forces are obtained by chaining
// the kernel derivative through each descriptor's dependence on neighbour
// coordinates.
package simspace

import (
	"fmt"
	"iter"
	"log/slog"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/simspace/pkg/descriptor"
	"github.com/sanonone/simspace/pkg/kernel"
	"github.com/sanonone/simspace/pkg/metrics"
	"github.com/sanonone/simspace/pkg/structure"
)

// Node owns one structure and the descriptor state derived from it.
//
// The feature matrix accumulates rows across acquisitions; its column count
// is fixed by the first acquisition. The per-center descriptors and the
// per-(center, neighbour) derivatives are replaced on every acquisition.
type Node struct {
	id        int
	structure *structure.Structure
	engine    descriptor.Engine
	adaptor   kernel.Adaptor

	spectrum *descriptor.Spectrum

	// Row-major feature buffer with amortized growth.
	ix   []float64
	rows int
	dim  int

	// Indexed by pid-1.
	centers []center
}

// center holds the state of one atomic environment.
type center struct {
	present bool
	xUnnorm []float64
	xNorm   []float64
	// slot[nb-1] indexes grads, -1 when nb is not a neighbour.
	slot  []int32
	grads [][3][]float64
}

// NewNode creates a node on a private copy of s. If acquire is set the
// descriptors are computed right away.
func NewNode(id int, s *structure.Structure, engine descriptor.Engine, adaptor kernel.Adaptor, acquire bool) (*Node, error) {
	n := &Node{
		id:        id,
		structure: s.Clone(),
		engine:    engine,
		adaptor:   adaptor,
	}
	if acquire {
		if err := n.Acquire(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// ID returns the node id.
func (n *Node) ID() int { return n.id }

// Structure returns the node's own structure. Mutating positions requires a
// new acquisition before descriptor state reflects them.
func (n *Node) Structure() *structure.Structure { return n.structure }

// Adaptor returns the adaptor used to flatten descriptors.
func (n *Node) Adaptor() kernel.Adaptor { return n.adaptor }

// Spectrum returns the engine output of the last acquisition, or nil.
func (n *Node) Spectrum() *descriptor.Spectrum { return n.spectrum }

// Size returns the number of accumulated feature rows.
func (n *Node) Size() int { return n.rows }

// Dim returns the fixed column count, zero before the first acquisition.
func (n *Node) Dim() int { return n.dim }

// IX returns the feature matrix. The matrix shares the node's buffer and is
// valid until the next acquisition. It is nil before the first acquisition.
func (n *Node) IX() *mat.Dense {
	if n.rows == 0 {
		return nil
	}
	return mat.NewDense(n.rows, n.dim, n.ix[:n.rows*n.dim])
}

// Acquire recomputes descriptors from the current positions, rebuilds the
// per-center state and appends the adapted rows to the feature matrix.
// A column count different from the fixed dimension aborts the acquisition
// with ErrDimensionMismatch and leaves the node unchanged.
func (n *Node) Acquire() error {
	return n.acquire(false)
}

// Refresh drops the accumulated rows, keeping the fixed dimension, and
// acquires again so that the feature matrix describes the current geometry
// only.
func (n *Node) Refresh() error {
	return n.acquire(true)
}

func (n *Node) acquire(truncate bool) error {
	start := time.Now()

	sp, err := n.engine.Compute(n.structure)
	if err != nil {
		return fmt.Errorf("node %d: compute descriptors: %w", n.id, err)
	}
	rows, err := n.adaptor.Adapt(sp)
	if err != nil {
		return fmt.Errorf("node %d: adapt descriptors: %w", n.id, err)
	}
	r, c := rows.Dims()
	if n.dim != 0 && c != n.dim {
		return fmt.Errorf("node %d: acquired %d columns, node is fixed at %d: %w", n.id, c, n.dim, ErrDimensionMismatch)
	}
	centers, err := n.buildCenters(sp)
	if err != nil {
		return err
	}

	n.spectrum = sp
	n.centers = centers
	n.dim = c
	if truncate {
		n.ix = make([]float64, 0, cap(n.ix))
		n.rows = 0
	}
	for i := 0; i < r; i++ {
		n.ix = append(n.ix, rows.RawRowView(i)...)
	}
	n.rows += r

	metrics.Acquisitions.WithLabelValues(string(n.adaptor.Type())).Inc()
	metrics.AcquisitionDuration.Observe(time.Since(start).Seconds())
	slog.Debug("[Node] acquired descriptors", "node", n.id, "rows", r, "dim", c, "total_rows", n.rows)
	return nil
}

func (n *Node) buildCenters(sp *descriptor.Spectrum) ([]center, error) {
	np := n.structure.N()
	centers := make([]center, np)
	for a := range n.adaptor.ListAtomic(sp) {
		pid := a.CenterID
		if pid < 1 || pid > np {
			return nil, fmt.Errorf("node %d: center pid %d outside [1, %d]: %w", n.id, pid, np, structure.ErrInvalidID)
		}
		xu, xn := n.adaptor.AdaptScalar(a)
		c := center{
			present: true,
			xUnnorm: xu,
			xNorm:   xn,
			slot:    make([]int32, np),
		}
		for i := range c.slot {
			c.slot[i] = -1
		}
		for _, nb := range a.NeighbourIDs() {
			if nb < 1 || nb > np {
				return nil, fmt.Errorf("node %d: neighbour pid %d outside [1, %d]: %w", n.id, nb, np, structure.ErrInvalidID)
			}
			dx, dy, dz, err := n.adaptor.AdaptGradients(a, nb, xu)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", n.id, err)
			}
			c.slot[nb-1] = int32(len(c.grads))
			c.grads = append(c.grads, [3][]float64{dx, dy, dz})
		}
		centers[pid-1] = c
	}
	return centers, nil
}

// AssignPositions overwrites every particle position from an N×3 matrix
// ordered by particle index and optionally acquires.
func (n *Node) AssignPositions(pos mat.Matrix, acquire bool) error {
	if err := n.structure.SetPositions(pos); err != nil {
		return fmt.Errorf("node %d: %w", n.id, err)
	}
	if acquire {
		return n.Acquire()
	}
	return nil
}

// RandomizePositions draws every coordinate uniformly from [-scale, scale],
// pins the particles listed in zeroIDs to the origin and assigns the result.
// The drawn positions are returned.
func (n *Node) RandomizePositions(rng *rand.Rand, scale float64, zeroIDs []int, acquire bool) (*mat.Dense, error) {
	np := n.structure.N()
	pos := mat.NewDense(np, 3, nil)
	for i := 0; i < np; i++ {
		for k := 0; k < 3; k++ {
			pos.Set(i, k, scale*(2*rng.Float64()-1))
		}
	}
	for _, id := range zeroIDs {
		if id < 1 || id > np {
			return nil, fmt.Errorf("node %d: pinned pid %d: %w", n.id, id, structure.ErrInvalidID)
		}
		pos.SetRow(id-1, []float64{0, 0, 0})
	}
	if err := n.AssignPositions(pos, acquire); err != nil {
		return nil, err
	}
	return pos, nil
}

// ListAtomic yields the atomic environments of the last acquisition.
func (n *Node) ListAtomic() iter.Seq[*descriptor.AtomicSpectrum] {
	if n.spectrum == nil {
		return func(func(*descriptor.AtomicSpectrum) bool) {}
	}
	return n.adaptor.ListAtomic(n.spectrum)
}

// PidX returns the unnormalized and normalized descriptor of center pid.
func (n *Node) PidX(pid int) (xUnnorm, xNorm []float64, err error) {
	c, err := n.center(pid)
	if err != nil {
		return nil, nil, err
	}
	return c.xUnnorm, c.xNorm, nil
}

// PidGradX returns the derivatives of center pid's normalized descriptor
// with respect to the coordinates of neighbour nbPID.
func (n *Node) PidGradX(pid, nbPID int) (dx, dy, dz []float64, err error) {
	c, err := n.center(pid)
	if err != nil {
		return nil, nil, nil, err
	}
	if nbPID < 1 || nbPID > len(c.slot) || c.slot[nbPID-1] < 0 {
		return nil, nil, nil, fmt.Errorf("node %d: center %d, neighbour %d: %w", n.id, pid, nbPID, ErrMissingDerivative)
	}
	g := c.grads[c.slot[nbPID-1]]
	return g[0], g[1], g[2], nil
}

func (n *Node) center(pid int) (*center, error) {
	if n.centers == nil {
		return nil, fmt.Errorf("node %d: %w", n.id, ErrNotAcquired)
	}
	if pid < 1 || pid > len(n.centers) || !n.centers[pid-1].present {
		return nil, fmt.Errorf("node %d: pid %d: %w", n.id, pid, ErrMissingDescriptor)
	}
	return &n.centers[pid-1], nil
}
