package simspace

import (
	"fmt"
	"io"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/simspace/pkg/descriptor"
	"github.com/sanonone/simspace/pkg/kernel"
	"github.com/sanonone/simspace/pkg/metrics"
	"github.com/sanonone/simspace/pkg/persistence"
	"github.com/sanonone/simspace/pkg/structure"
)

// Topology owns an ordered ensemble of nodes sharing one descriptor engine,
// adaptor and kernel function. The ensemble matrix is a cache rebuilt
// whenever the node list changes.
type Topology struct {
	engine  descriptor.Engine
	adaptor kernel.Adaptor
	fn      kernel.Function

	nodes []*Node
	ix    *mat.Dense
}

// NewTopology builds the reference descriptor engine from opts and the
// kernel function and adaptor from cfg.
func NewTopology(opts descriptor.Options, cfg kernel.Config) (*Topology, error) {
	basis, err := descriptor.NewBasis(opts)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	adaptor, err := kernel.NewAdaptor(cfg)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	fn, err := kernel.NewFunction(cfg)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return NewTopologyWith(basis, adaptor, fn), nil
}

// NewTopologyWith assembles a topology from already built collaborators.
func NewTopologyWith(engine descriptor.Engine, adaptor kernel.Adaptor, fn kernel.Function) *Topology {
	return &Topology{engine: engine, adaptor: adaptor, fn: fn}
}

// Engine returns the shared descriptor engine.
func (t *Topology) Engine() descriptor.Engine { return t.engine }

// Adaptor returns the shared adaptor.
func (t *Topology) Adaptor() kernel.Adaptor { return t.adaptor }

// Function returns the kernel function.
func (t *Topology) Function() kernel.Function { return t.fn }

// Nodes returns the nodes in creation order. The slice is shared.
func (t *Topology) Nodes() []*Node { return t.nodes }

// Len returns the number of nodes.
func (t *Topology) Len() int { return len(t.nodes) }

// CreateNode creates and acquires a node on a copy of s, with the next
// 1-based id, and appends it to the ensemble.
func (t *Topology) CreateNode(s *structure.Structure) (*Node, error) {
	node, err := NewNode(len(t.nodes)+1, s, t.engine, t.adaptor, true)
	if err != nil {
		return nil, err
	}
	if err := t.AppendNode(node); err != nil {
		return nil, err
	}
	return node, nil
}

// AppendNode hands ownership of an acquired node to the topology. A node
// whose dimension differs from the existing members is rejected.
func (t *Topology) AppendNode(n *Node) error {
	if n.Size() == 0 {
		return fmt.Errorf("topology: node %d: %w", n.ID(), ErrNotAcquired)
	}
	if len(t.nodes) > 0 && n.Dim() != t.nodes[0].Dim() {
		return fmt.Errorf("topology: node %d has dim %d, ensemble has %d: %w",
			n.ID(), n.Dim(), t.nodes[0].Dim(), ErrDimensionMismatch)
	}
	t.nodes = append(t.nodes, n)
	t.ix = nil
	metrics.NodesTotal.Set(float64(len(t.nodes)))
	return nil
}

// Clear releases all nodes.
func (t *Topology) Clear() {
	t.nodes = nil
	t.ix = nil
	metrics.NodesTotal.Set(0)
}

// CompileIX rebuilds the ensemble matrix by stacking the rows of every node
// in node order.
func (t *Topology) CompileIX() error {
	if len(t.nodes) == 0 {
		return ErrEmptyTopology
	}
	dim := t.nodes[0].Dim()
	total := 0
	for _, n := range t.nodes {
		if n.Dim() != dim {
			return fmt.Errorf("topology: node %d has dim %d, ensemble has %d: %w", n.ID(), n.Dim(), dim, ErrDimensionMismatch)
		}
		total += n.Size()
	}
	if total == 0 {
		return ErrNotAcquired
	}

	ix := mat.NewDense(total, dim, nil)
	row := 0
	for _, n := range t.nodes {
		if n.Size() == 0 {
			continue
		}
		view := ix.Slice(row, row+n.Size(), 0, dim).(*mat.Dense)
		view.Copy(n.IX())
		row += n.Size()
	}
	t.ix = ix
	slog.Debug("[Topology] compiled ensemble matrix", "nodes", len(t.nodes), "rows", total, "dim", dim)
	return nil
}

// IX returns the ensemble matrix, compiling it if needed.
func (t *Topology) IX() (*mat.Dense, error) {
	if t.ix == nil {
		if err := t.CompileIX(); err != nil {
			return nil, err
		}
	}
	return t.ix, nil
}

// ComputeKernelMatrix returns the pairwise kernel (or kernel distance) over
// the ensemble rows.
func (t *Topology) ComputeKernelMatrix(distance bool) (*mat.Dense, error) {
	ix, err := t.IX()
	if err != nil {
		return nil, err
	}
	return t.fn.ComputeBlock(ix, distance), nil
}

// Summarize prints every node's particles.
func (t *Topology) Summarize(w io.Writer) error {
	for _, n := range t.nodes {
		if _, err := fmt.Fprintf(w, "Node %d\n", n.ID()); err != nil {
			return err
		}
		if bd := n.Structure().Boundary(); bd.Type() != structure.Open {
			if _, err := fmt.Fprintf(w, "boundary %s volume=%+1.7e\n", bd.Type(), bd.Volume()); err != nil {
				return err
			}
		}
		for _, p := range n.Structure().Particles() {
			if _, err := fmt.Fprintf(w, "%d %s %+1.7e %+1.7e %+1.7e\n", p.ID, p.Type, p.Pos.X, p.Pos.Y, p.Pos.Z); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteData dumps the ensemble: structures to prefix.xyz, the ensemble
// matrix to prefix.ix.txt and the kernel matrix to prefix.kernelmatrix.txt.
func (t *Topology) WriteData(prefix string) error {
	trj, err := persistence.NewTrajectoryLogger(prefix + ".xyz")
	if err != nil {
		return err
	}
	for _, n := range t.nodes {
		if err := trj.LogFrame(n.Structure()); err != nil {
			trj.Close()
			return err
		}
	}
	if err := trj.Close(); err != nil {
		return err
	}

	if err := t.CompileIX(); err != nil {
		return err
	}
	if err := persistence.WriteTable(prefix+".ix.txt", t.ix); err != nil {
		return err
	}
	k, err := t.ComputeKernelMatrix(false)
	if err != nil {
		return err
	}
	if err := persistence.WriteTable(prefix+".kernelmatrix.txt", k); err != nil {
		return err
	}
	slog.Info("[Topology] data written", "prefix", prefix, "nodes", len(t.nodes))
	return nil
}
