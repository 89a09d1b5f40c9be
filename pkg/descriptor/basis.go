package descriptor

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/simspace/pkg/structure"
)

// Basis is the reference Engine: per type channel, N Gaussian radial
// functions on equispaced centres in [0, Rc], weighted by the cutoff and
// summed over neighbours. The center contributes CenterWeight*phi(0) to its
// own channel so that no descriptor is ever zero.
type Basis struct {
	opts    Options
	cutoff  ShiftedCosine
	centres []float64
	channel map[string]int

	exclCenter   map[string]bool
	exclTarget   map[string]bool
	exclCenterID map[int]bool
	exclTargetID map[int]bool
}

// NewBasis validates opts and builds the engine.
func NewBasis(opts Options) (*Basis, error) {
	rb := opts.RadialBasis
	if rb.Type != "gaussian" {
		return nil, fmt.Errorf("type %q: %w", rb.Type, ErrUnknownBasis)
	}
	if rb.Mode != "equispaced" {
		return nil, fmt.Errorf("mode %q: %w", rb.Mode, ErrUnknownBasis)
	}
	if rb.N < 1 || rb.Sigma <= 0 {
		return nil, fmt.Errorf("radialbasis n=%d sigma=%g: %w", rb.N, rb.Sigma, ErrInvalidOptions)
	}
	cut, err := NewCutoff(opts.RadialCutoff)
	if err != nil {
		return nil, err
	}

	b := &Basis{
		opts:         opts,
		cutoff:       cut,
		centres:      make([]float64, rb.N),
		channel:      make(map[string]int, len(opts.Types)),
		exclCenter:   toSet(opts.ExcludeCenters),
		exclTarget:   toSet(opts.ExcludeTargets),
		exclCenterID: toSet(opts.ExcludeCenterIDs),
		exclTargetID: toSet(opts.ExcludeTargetIDs),
	}
	if rb.N > 1 {
		step := cut.Rc / float64(rb.N-1)
		for n := range b.centres {
			b.centres[n] = float64(n) * step
		}
	}
	for i, t := range opts.Types {
		if _, dup := b.channel[t]; dup {
			return nil, fmt.Errorf("type %q listed twice: %w", t, ErrInvalidOptions)
		}
		b.channel[t] = i
	}
	return b, nil
}

func toSet[K comparable](keys []K) map[K]bool {
	m := make(map[K]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// Options returns the configuration the basis was built from.
func (b *Basis) Options() Options { return b.opts }

// Dim implements Engine.
func (b *Basis) Dim() int { return b.channels() * b.opts.RadialBasis.N }

func (b *Basis) channels() int {
	if len(b.opts.Types) == 0 {
		return 1
	}
	return len(b.opts.Types)
}

func (b *Basis) channelOf(typ string) int {
	if len(b.opts.Types) == 0 {
		return 0
	}
	ch, ok := b.channel[typ]
	if !ok {
		return -1
	}
	return ch
}

// radial evaluates phi_n(r) and its radial derivative into val and dval.
func (b *Basis) radial(r float64, val, dval []float64) {
	s2 := b.opts.RadialBasis.Sigma * b.opts.RadialBasis.Sigma
	for n, rn := range b.centres {
		d := r - rn
		phi := math.Exp(-0.5 * d * d / s2)
		val[n] = phi
		if dval != nil {
			dval[n] = -d / s2 * phi
		}
	}
}

// Compute implements Engine. Neighbour search is all-pairs under the
// structure's boundary conditions. Coincident particles are a precondition
// violation.
func (b *Basis) Compute(s *structure.Structure) (*Spectrum, error) {
	nRad := b.opts.RadialBasis.N
	dim := b.Dim()
	phi := make([]float64, nRad)
	dphi := make([]float64, nRad)
	phi0 := make([]float64, nRad)
	b.radial(0, phi0, nil)

	parts := s.Particles()
	atomic := make([]*AtomicSpectrum, 0, len(parts))
	for _, c := range parts {
		if b.exclCenter[c.Type] || b.exclCenterID[c.ID] {
			continue
		}
		x := make([]float64, dim)
		if ch := b.channelOf(c.Type); ch >= 0 && b.cutoff.CenterWeight != 0 {
			for n := range phi0 {
				x[ch*nRad+n] += b.cutoff.CenterWeight * phi0[n]
			}
		}

		// Derivatives w.r.t. each neighbour, in particle order; the
		// center's own slot is inserted afterwards.
		var ids []int
		var grads []float64
		centerGrad := make([]float64, 3*dim)
		for _, p := range parts {
			if p.ID == c.ID || b.exclTarget[p.Type] || b.exclTargetID[p.ID] {
				continue
			}
			ch := b.channelOf(p.Type)
			if ch < 0 {
				continue
			}
			d := s.Connect(c, p)
			r := r3.Norm(d)
			if !b.cutoff.Inside(r) {
				continue
			}
			w := b.cutoff.Weight(r)
			b.radial(r, phi, dphi)

			unit := r3.Scale(1/r, d)
			gw := b.cutoff.GradientWeight(r, unit)
			g := make([]float64, 3*dim)
			off := ch * nRad
			for n := 0; n < nRad; n++ {
				x[off+n] += w * phi[n]
				gn := r3.Add(r3.Scale(phi[n], gw), r3.Scale(w*dphi[n], unit))
				g[off+n] = gn.X
				g[dim+off+n] = gn.Y
				g[2*dim+off+n] = gn.Z
			}
			for k, v := range g {
				centerGrad[k] -= v
			}
			ids = append(ids, p.ID)
			grads = append(grads, g...)
		}

		at, _ := slices.BinarySearch(ids, c.ID)
		ids = slices.Insert(ids, at, c.ID)
		grads = slices.Insert(grads, at*3*dim, centerGrad...)

		a, err := NewAtomicSpectrum(c.ID, c.Type, x, ids, grads)
		if err != nil {
			return nil, err
		}
		atomic = append(atomic, a)
	}
	return NewSpectrum(s, dim, atomic), nil
}
