// Package relax moves a subset of particles of one node downhill on the sum
// of kernel potentials and self potentials.
//
// The Driver turns the node into an Objective: every callback scatters the
// optimization vector into the structure and re-acquires descriptors, then
// reads energies or gradients from the fresh state. The numerical search
// itself is delegated to a Minimizer.
package relax

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/simspace/pkg/persistence"
	"github.com/sanonone/simspace/pkg/simspace"
)

// State is the lifecycle stage of a Driver.
type State int

const (
	// Idle means no callback is running.
	Idle State = iota
	// Evaluating means an energy or gradient callback is in flight.
	Evaluating
	// Terminal means the minimizer converged or failed.
	Terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Evaluating:
		return "evaluating"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Objective is the energy/gradient oracle handed to a Minimizer.
type Objective interface {
	Energy(x []float64) (float64, error)
	Gradient(grad, x []float64) error
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for evaluation and outcome records.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

// Driver adapts the optimizable particles of a node into a flat vector and
// evaluates the total energy and its gradient on it.
type Driver struct {
	node       *simspace.Node
	potentials []*simspace.Potential
	selfs      []simspace.SelfPotential
	idx        []int

	logger *slog.Logger
	runID  string
	state  State
	trj    *persistence.TrajectoryLogger

	funcEvals int
	gradEvals int
}

// NewDriver binds potentials and self potentials to node. optIdx holds the
// 0-based indices of the particles to optimize; an empty list selects all
// of them.
func NewDriver(node *simspace.Node, potentials []*simspace.Potential, selfs []simspace.SelfPotential, optIdx []int, opts ...Option) (*Driver, error) {
	n := node.Structure().N()
	if len(optIdx) == 0 {
		optIdx = make([]int, n)
		for i := range optIdx {
			optIdx[i] = i
		}
	}
	if len(optIdx) == 0 {
		return nil, fmt.Errorf("no particles to optimize: %w", ErrInvalidIndex)
	}
	seen := make(map[int]bool, len(optIdx))
	for _, i := range optIdx {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("index %d outside [0, %d): %w", i, n, ErrInvalidIndex)
		}
		if seen[i] {
			return nil, fmt.Errorf("index %d listed twice: %w", i, ErrInvalidIndex)
		}
		seen[i] = true
	}

	d := &Driver{
		node:       node,
		potentials: potentials,
		selfs:      selfs,
		idx:        append([]int(nil), optIdx...),
		logger:     slog.Default(),
		runID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// RunID returns the id that tags this driver's logs and trajectory frames.
func (d *Driver) RunID() string { return d.runID }

// State returns the current lifecycle stage.
func (d *Driver) State() State { return d.state }

// Node returns the node being relaxed.
func (d *Driver) Node() *simspace.Node { return d.node }

// Evaluations returns the number of energy and gradient callbacks served.
func (d *Driver) Evaluations() (funcs, grads int) { return d.funcEvals, d.gradEvals }

// X0 gathers the current positions of the optimizable particles.
func (d *Driver) X0() []float64 {
	parts := d.node.Structure().Particles()
	x := make([]float64, 0, 3*len(d.idx))
	for _, i := range d.idx {
		p := parts[i].Pos
		x = append(x, p.X, p.Y, p.Z)
	}
	return x
}

// Apply scatters x into the optimizable particles, leaving the others
// fixed, and refreshes the node's descriptors.
func (d *Driver) Apply(x []float64) error {
	if len(x) != 3*len(d.idx) {
		return fmt.Errorf("got %d values for %d particles: %w", len(x), len(d.idx), ErrVectorLength)
	}
	parts := d.node.Structure().Particles()
	for k, i := range d.idx {
		parts[i].Pos = r3.Vec{X: x[3*k], Y: x[3*k+1], Z: x[3*k+2]}
	}
	return d.node.Refresh()
}

// Energy scatters x and returns the summed energy of every potential.
func (d *Driver) Energy(x []float64) (float64, error) {
	done := d.enter()
	defer done()

	if err := d.Apply(x); err != nil {
		return 0, err
	}
	d.funcEvals++
	kernel, self, err := d.energies()
	if err != nil {
		return 0, err
	}
	total := kernel + self
	d.logger.Debug("[Relax] energy evaluation", "run", d.runID, "eval", d.funcEvals,
		"total", total, "kernel", kernel, "self", self)
	return total, nil
}

// Gradient scatters x, writes the energy gradient of the optimizable
// particles into grad and appends the current frame to the trajectory.
func (d *Driver) Gradient(grad, x []float64) error {
	done := d.enter()
	defer done()

	if len(grad) != 3*len(d.idx) {
		return fmt.Errorf("gradient buffer of %d for %d particles: %w", len(grad), len(d.idx), ErrVectorLength)
	}
	if err := d.checkTargets(); err != nil {
		return err
	}
	if err := d.Apply(x); err != nil {
		return err
	}
	d.gradEvals++
	full, err := d.gradient()
	if err != nil {
		return err
	}
	if d.trj != nil {
		if err := d.trj.LogFrame(d.node.Structure()); err != nil {
			return err
		}
	}
	for k, i := range d.idx {
		copy(grad[3*k:3*k+3], full.RawRowView(i))
	}
	return nil
}

// enter marks a callback in flight and returns the function restoring the
// previous state.
func (d *Driver) enter() func() {
	prev := d.state
	d.state = Evaluating
	return func() { d.state = prev }
}

func (d *Driver) checkTargets() error {
	for i, p := range d.potentials {
		if p.Target() != d.node {
			return fmt.Errorf("potential %d targets node %d, driver relaxes node %d: %w",
				i, p.Target().ID(), d.node.ID(), ErrTargetMismatch)
		}
	}
	return nil
}

func (d *Driver) energies() (float64, float64, error) {
	var kernel, self float64
	for _, p := range d.potentials {
		e, err := p.ComputeEnergy()
		if err != nil {
			return 0, 0, err
		}
		kernel += e
	}
	for _, s := range d.selfs {
		self += s.ComputeEnergy()
	}
	return kernel, self, nil
}

func (d *Driver) gradient() (*mat.Dense, error) {
	total := mat.NewDense(d.node.Structure().N(), 3, nil)
	for _, p := range d.potentials {
		g, err := p.ComputeGradients()
		if err != nil {
			return nil, err
		}
		total.Add(total, g)
	}
	for _, s := range d.selfs {
		total.Add(total, s.ComputeGradient())
	}
	return total, nil
}
