package simspace

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/simspace/pkg/descriptor"
	"github.com/sanonone/simspace/pkg/kernel"
	"github.com/sanonone/simspace/pkg/persistence"
	"github.com/sanonone/simspace/pkg/structure"
)

func cluster(rng *rand.Rand, n int, scale float64) *structure.Structure {
	s := structure.New("cluster")
	for i := 0; i < n; i++ {
		typ := "C"
		if i%2 == 1 {
			typ = "H"
		}
		s.AddParticle(typ, r3.Vec{
			X: scale * rng.Float64(),
			Y: scale * rng.Float64(),
			Z: scale * rng.Float64(),
		})
	}
	return s
}

func newTopology(t *testing.T, cfg kernel.Config) *Topology {
	t.Helper()
	opts := descriptor.DefaultOptions()
	opts.RadialBasis.N = 6
	opts.Types = []string{"C", "H"}
	top, err := NewTopology(opts, cfg)
	require.NoError(t, err)
	return top
}

// newTarget returns a topology of two reference clusters and a target node
// sharing its engine and adaptor.
func newTarget(t *testing.T, cfg kernel.Config, seed int64) (*Topology, *Node) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	top := newTopology(t, cfg)
	for i := 0; i < 2; i++ {
		_, err := top.CreateNode(cluster(rng, 4, 2.0))
		require.NoError(t, err)
	}
	target, err := NewNode(0, cluster(rng, 4, 2.0), top.Engine(), top.Adaptor(), true)
	require.NoError(t, err)
	return top, target
}

func TestNodeOwnsStructureCopy(t *testing.T) {
	top := newTopology(t, kernel.DefaultConfig())
	s := cluster(rand.New(rand.NewSource(1)), 3, 2.0)
	node, err := top.CreateNode(s)
	require.NoError(t, err)

	s.Particles()[0].Pos.X += 10
	assert.NotEqual(t, s.Particles()[0].Pos, node.Structure().Particles()[0].Pos)
	assert.Equal(t, 1, node.ID())
}

func TestAcquireDeterministic(t *testing.T) {
	_, node := newTarget(t, kernel.DefaultConfig(), 2)
	n := node.Size()
	dx1, dy1, dz1, err := node.PidGradX(1, 2)
	require.NoError(t, err)
	dx1, dy1, dz1 = append([]float64(nil), dx1...), append([]float64(nil), dy1...), append([]float64(nil), dz1...)

	require.NoError(t, node.Acquire())
	require.Equal(t, 2*n, node.Size())

	ix := node.IX()
	for i := 0; i < n; i++ {
		assert.Equal(t, ix.RawRowView(i), ix.RawRowView(n+i))
	}
	dx2, dy2, dz2, err := node.PidGradX(1, 2)
	require.NoError(t, err)
	assert.Equal(t, dx1, dx2)
	assert.Equal(t, dy1, dy2)
	assert.Equal(t, dz1, dz2)
}

func TestRefreshKeepsOnlyCurrentRows(t *testing.T) {
	_, node := newTarget(t, kernel.DefaultConfig(), 3)
	n := node.Size()
	require.NoError(t, node.Acquire())
	require.NoError(t, node.Refresh())
	assert.Equal(t, n, node.Size())
}

// switchingEngine returns a different descriptor length from the second
// call on.
type switchingEngine struct {
	first, second descriptor.Engine
	calls         int
}

func (e *switchingEngine) Compute(s *structure.Structure) (*descriptor.Spectrum, error) {
	e.calls++
	if e.calls == 1 {
		return e.first.Compute(s)
	}
	return e.second.Compute(s)
}

func (e *switchingEngine) Dim() int { return e.first.Dim() }

func TestAcquireDimensionMismatch(t *testing.T) {
	small := descriptor.DefaultOptions()
	small.RadialBasis.N = 4
	a, err := descriptor.NewBasis(small)
	require.NoError(t, err)
	b, err := descriptor.NewBasis(descriptor.DefaultOptions())
	require.NoError(t, err)
	adaptor, err := kernel.NewAdaptor(kernel.DefaultConfig())
	require.NoError(t, err)

	node, err := NewNode(1, cluster(rand.New(rand.NewSource(4)), 3, 2.0), &switchingEngine{first: a, second: b}, adaptor, true)
	require.NoError(t, err)
	before := mat.DenseCopyOf(node.IX())

	err = node.Acquire()
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 4, node.Dim())
	assert.True(t, mat.Equal(before, node.IX()))
}

func TestTopologyRejectsForeignDimension(t *testing.T) {
	top := newTopology(t, kernel.DefaultConfig())
	rng := rand.New(rand.NewSource(5))
	_, err := top.CreateNode(cluster(rng, 3, 2.0))
	require.NoError(t, err)

	other, err := descriptor.NewBasis(descriptor.DefaultOptions())
	require.NoError(t, err)
	stranger, err := NewNode(2, cluster(rng, 3, 2.0), other, top.Adaptor(), true)
	require.NoError(t, err)

	err = top.AppendNode(stranger)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, top.Len())
	assert.Nil(t, top.ix)
}

func TestTopologyKernelMatrix(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.Adaptor = kernel.AdaptorGlobalGeneric
	cfg.Type = kernel.FunctionExpCosine
	top := newTopology(t, cfg)
	rng := rand.New(rand.NewSource(6))
	for i := 0; i < 4; i++ {
		_, err := top.CreateNode(cluster(rng, 5, 2.5))
		require.NoError(t, err)
	}

	ix, err := top.IX()
	require.NoError(t, err)
	r, _ := ix.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, top.Nodes()[2].IX().RawRowView(0), ix.RawRowView(2))

	k, err := top.ComputeKernelMatrix(false)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(k, k.T(), 1e-12))
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, k.At(i, i), 1e-12)
	}

	d, err := top.ComputeKernelMatrix(true)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(d, d.T(), 1e-12))
}

func TestTopologyEmpty(t *testing.T) {
	top := newTopology(t, kernel.DefaultConfig())
	_, err := top.ComputeKernelMatrix(false)
	assert.ErrorIs(t, err, ErrEmptyTopology)

	_, err = top.CreateNode(cluster(rand.New(rand.NewSource(17)), 2, 2.0))
	require.NoError(t, err)
	_, err = top.IX()
	require.NoError(t, err)
	top.Clear()
	assert.Equal(t, 0, top.Len())
	_, err = top.IX()
	assert.ErrorIs(t, err, ErrEmptyTopology)
}

func TestTopologyWriteData(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.Adaptor = kernel.AdaptorGlobalGeneric
	top := newTopology(t, cfg)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 3; i++ {
		_, err := top.CreateNode(cluster(rng, 3, 2.0))
		require.NoError(t, err)
	}

	prefix := filepath.Join(t.TempDir(), "out.top")
	require.NoError(t, top.WriteData(prefix))

	ix, err := persistence.ReadTable(prefix + ".ix.txt")
	require.NoError(t, err)
	k, err := persistence.ReadTable(prefix + ".kernelmatrix.txt")
	require.NoError(t, err)
	r, _ := ix.Dims()
	kr, kc := k.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, kr)
	assert.Equal(t, 3, kc)

	f, err := os.Open(prefix + ".xyz")
	require.NoError(t, err)
	defer f.Close()
	frames, err := structure.ReadXYZ(f)
	require.NoError(t, err)
	assert.Len(t, frames, 3)

	var buf bytes.Buffer
	require.NoError(t, top.Summarize(&buf))
	assert.Contains(t, buf.String(), "Node 3\n")
}

func TestPotentialWeightLength(t *testing.T) {
	top, target := newTarget(t, kernel.DefaultConfig(), 8)
	ix, err := top.IX()
	require.NoError(t, err)
	r, _ := ix.Dims()

	_, err = NewPotential(target, ix, UniformWeights(r+1, 1), top.Function())
	assert.ErrorIs(t, err, ErrWeightLength)

	p, err := NewPotential(target, ix, UniformWeights(r, 0.5), top.Function())
	require.NoError(t, err)
	assert.Same(t, target, p.Target())
}

func TestPotentialDotSelfEnergy(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.Adaptor = kernel.AdaptorGlobalGeneric
	top := newTopology(t, cfg)
	node, err := top.CreateNode(cluster(rand.New(rand.NewSource(9)), 4, 2.0))
	require.NoError(t, err)

	row := node.IX().RawRowView(0)
	source := mat.NewDense(1, len(row), append([]float64(nil), row...))
	p, err := NewPotential(node, source, []float64{1.0}, top.Function())
	require.NoError(t, err)

	e, err := p.ComputeEnergy()
	require.NoError(t, err)
	assert.InDelta(t, floats.Dot(row, row), e, 1e-12)

	e2, prj, err := p.ComputeEnergyProjection()
	require.NoError(t, err)
	assert.Equal(t, e, e2)
	require.Len(t, prj, 1)
	assert.Len(t, prj[0], 1)
}

func TestGradientsNegateForces(t *testing.T) {
	top, target := newTarget(t, kernel.DefaultConfig(), 10)
	ix, err := top.IX()
	require.NoError(t, err)
	r, _ := ix.Dims()
	p, err := NewPotential(target, ix, UniformWeights(r, 0.7), top.Function())
	require.NoError(t, err)

	f, err := p.ComputeForces()
	require.NoError(t, err)
	g, err := p.ComputeGradients()
	require.NoError(t, err)
	n, _ := f.Dims()
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			assert.True(t, g.At(i, k) == -f.At(i, k), "particle %d axis %d", i, k)
		}
	}
}

// Forces from the chain rule must match central differences of the energy
// when every target row is a normalized per-atom descriptor.
func TestPotentialForcesFiniteDifference(t *testing.T) {
	for _, cfg := range []kernel.Config{
		{Type: kernel.FunctionDot, Adaptor: kernel.AdaptorSpecificUnique},
		{Type: kernel.FunctionPolynomial, Adaptor: kernel.AdaptorSpecificUnique, Delta: 1, Xi: 3, Offset: 0.1},
		{Type: kernel.FunctionExpCosine, Adaptor: kernel.AdaptorSpecificUnique, Gamma: 2},
	} {
		t.Run(string(cfg.Type), func(t *testing.T) {
			top, target := newTarget(t, cfg, 11)
			ix, err := top.IX()
			require.NoError(t, err)
			r, _ := ix.Dims()
			rng := rand.New(rand.NewSource(12))
			w := make([]float64, r)
			for i := range w {
				w[i] = rng.Float64() - 0.5
			}
			p, err := NewPotential(target, ix, w, top.Function())
			require.NoError(t, err)

			forces, err := p.ComputeForces()
			require.NoError(t, err)

			const h = 1e-5
			energyAt := func(pos *mat.Dense) float64 {
				require.NoError(t, target.AssignPositions(pos, false))
				require.NoError(t, target.Refresh())
				e, err := p.ComputeEnergy()
				require.NoError(t, err)
				return e
			}
			base := target.Structure().Positions()
			for i := 0; i < target.Structure().N(); i++ {
				for k := 0; k < 3; k++ {
					plus := mat.DenseCopyOf(base)
					plus.Set(i, k, base.At(i, k)+h)
					minus := mat.DenseCopyOf(base)
					minus.Set(i, k, base.At(i, k)-h)
					fd := -(energyAt(plus) - energyAt(minus)) / (2 * h)
					assert.InDelta(t, fd, forces.At(i, k), 1e-6*math.Max(1, math.Abs(fd)), "particle %d axis %d", i, k)
				}
			}
		})
	}
}

func TestNodeLookupErrors(t *testing.T) {
	_, target := newTarget(t, kernel.DefaultConfig(), 13)

	_, _, err := target.PidX(99)
	assert.ErrorIs(t, err, ErrMissingDescriptor)
	_, _, _, err = target.PidGradX(1, 99)
	assert.ErrorIs(t, err, ErrMissingDerivative)

	fresh, err := NewNode(7, target.Structure(), target.engine, target.Adaptor(), false)
	require.NoError(t, err)
	_, _, err = fresh.PidX(1)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, fresh.IX())
}

func TestPidGradXOutsideCutoff(t *testing.T) {
	top := newTopology(t, kernel.DefaultConfig())
	s := structure.New("far")
	s.AddParticle("C", r3.Vec{})
	s.AddParticle("C", r3.Vec{X: 1})
	s.AddParticle("C", r3.Vec{X: 20})
	node, err := top.CreateNode(s)
	require.NoError(t, err)

	_, _, _, err = node.PidGradX(1, 2)
	require.NoError(t, err)
	_, _, _, err = node.PidGradX(1, 3)
	assert.ErrorIs(t, err, ErrMissingDerivative)
}

func TestAssignAndRandomizePositions(t *testing.T) {
	_, target := newTarget(t, kernel.DefaultConfig(), 14)
	n := target.Structure().N()

	err := target.AssignPositions(mat.NewDense(n+1, 3, nil), true)
	assert.ErrorIs(t, err, structure.ErrShape)

	pos, err := target.RandomizePositions(rand.New(rand.NewSource(15)), 0.1, []int{1}, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, pos.RawRowView(0))
	for i := 1; i < n; i++ {
		for _, v := range pos.RawRowView(i) {
			assert.LessOrEqual(t, math.Abs(v), 0.1)
		}
	}
	assert.True(t, mat.Equal(pos, target.Structure().Positions()))

	_, err = target.RandomizePositions(rand.New(rand.NewSource(15)), 0.1, []int{n + 1}, false)
	assert.ErrorIs(t, err, structure.ErrInvalidID)
}

func ljNode(t *testing.T, positions ...r3.Vec) *Node {
	t.Helper()
	s := structure.New("lj")
	for _, p := range positions {
		s.AddParticle("Ar", p)
	}
	b, err := descriptor.NewBasis(descriptor.DefaultOptions())
	require.NoError(t, err)
	ad, err := kernel.NewAdaptor(kernel.DefaultConfig())
	require.NoError(t, err)
	node, err := NewNode(1, s, b, ad, false)
	require.NoError(t, err)
	return node
}

func TestLJRepulsivePair(t *testing.T) {
	node := ljNode(t, r3.Vec{}, r3.Vec{X: 2})
	lj, err := NewLJRepulsive(node, 1.0)
	require.NoError(t, err)

	assert.InDelta(t, 2.44140625e-4, lj.ComputeEnergy(), 1e-18)

	g := lj.ComputeGradient()
	mag := 12.0 * math.Pow(0.5, 13)
	// The energy falls as the pair separates: the gradient on particle 0
	// points away from particle 1, the force towards -x.
	assert.InDelta(t, mag, g.At(0, 0), 1e-18)
	assert.Equal(t, 0.0, g.At(0, 1))
	assert.Equal(t, 0.0, g.At(0, 2))
	for k := 0; k < 3; k++ {
		assert.True(t, g.At(1, k) == -g.At(0, k))
	}
}

func TestLJRepulsiveFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(16))
	var pos []r3.Vec
	for i := 0; i < 5; i++ {
		pos = append(pos, r3.Vec{X: 3 * rng.Float64(), Y: 3 * rng.Float64(), Z: 3 * rng.Float64()})
	}
	node := ljNode(t, pos...)
	for _, sigma := range []float64{0.5, 1.0} {
		lj, err := NewLJRepulsive(node, sigma)
		require.NoError(t, err)
		g := lj.ComputeGradient()

		const h = 1e-6
		for i, p := range node.Structure().Particles() {
			for k := 0; k < 3; k++ {
				orig := p.Pos
				p.Pos = shifted(orig, k, h)
				ep := lj.ComputeEnergy()
				p.Pos = shifted(orig, k, -h)
				em := lj.ComputeEnergy()
				p.Pos = orig

				fd := (ep - em) / (2 * h)
				assert.InDelta(t, fd, g.At(i, k), 1e-5*math.Max(1e-3, math.Abs(fd)), "sigma %g particle %d axis %d", sigma, i, k)
			}
		}

		// Pair contributions cancel.
		var net [3]float64
		for i := 0; i < node.Structure().N(); i++ {
			for k := 0; k < 3; k++ {
				net[k] += g.At(i, k)
			}
		}
		for k := 0; k < 3; k++ {
			assert.InDelta(t, 0.0, net[k], 1e-9)
		}
	}
}

func shifted(v r3.Vec, axis int, d float64) r3.Vec {
	switch axis {
	case 0:
		v.X += d
	case 1:
		v.Y += d
	default:
		v.Z += d
	}
	return v
}

func TestNewLJRepulsiveRejects(t *testing.T) {
	_, err := NewLJRepulsive(ljNode(t, r3.Vec{}), 0)
	assert.ErrorIs(t, err, ErrInvalidSigma)
}

func TestSummarizePeriodic(t *testing.T) {
	top := newTopology(t, kernel.DefaultConfig())
	s := cluster(rand.New(rand.NewSource(18)), 3, 2.0)
	bd, err := structure.NewBoundary(structure.Orthorhombic, r3.Vec{X: 10}, r3.Vec{Y: 10}, r3.Vec{Z: 10})
	require.NoError(t, err)
	s.SetBoundary(bd)
	_, err = top.CreateNode(s)
	require.NoError(t, err)
	_, err = top.CreateNode(cluster(rand.New(rand.NewSource(19)), 3, 2.0))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, top.Summarize(&buf))
	out := buf.String()
	assert.Contains(t, out, "Node 1\nboundary orthorhombic volume=+1.0000000e+03\n")
	assert.Contains(t, out, "Node 2\n1 C")
}
