package kernel

import (
	"fmt"
	"iter"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/simspace/pkg/descriptor"
)

// AdaptorType is the tag of a descriptor adaptor variant.
type AdaptorType string

const (
	// AdaptorSpecificUnique emits one normalized row per atomic environment.
	AdaptorSpecificUnique AdaptorType = "specific-unique"
	// AdaptorGlobalGeneric emits one row per structure: the normalized sum
	// of all unnormalized atomic descriptors.
	AdaptorGlobalGeneric AdaptorType = "global-generic"
)

// Adaptor maps descriptor engine output onto flat vectors and matrices.
type Adaptor interface {
	// Type returns the variant tag.
	Type() AdaptorType
	// ListAtomic yields the atomic environments in engine order. The
	// sequence can be ranged over any number of times.
	ListAtomic(sp *descriptor.Spectrum) iter.Seq[*descriptor.AtomicSpectrum]
	// AdaptScalar returns the unnormalized and normalized descriptor.
	AdaptScalar(a *descriptor.AtomicSpectrum) (xUnnorm, xNorm []float64)
	// AdaptGradients returns the derivatives of the normalized descriptor
	// with respect to the x, y, z coordinate of neighbour nbID.
	AdaptGradients(a *descriptor.AtomicSpectrum, nbID int, xUnnorm []float64) (dx, dy, dz []float64, err error)
	// Adapt returns the feature rows of one acquisition.
	Adapt(sp *descriptor.Spectrum) (*mat.Dense, error)
}

// NewAdaptor builds the adaptor named in cfg.Adaptor.
func NewAdaptor(cfg Config) (Adaptor, error) {
	switch cfg.Adaptor {
	case AdaptorSpecificUnique:
		return specificUnique{}, nil
	case AdaptorGlobalGeneric:
		return globalGeneric{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Adaptor, ErrUnknownAdaptor)
	}
}

// Normalize returns x/|x| as a new slice. A zero vector stays zero.
func Normalize(x []float64) []float64 {
	out := slices.Clone(x)
	if n := floats.Norm(x, 2); n > 0 {
		floats.Scale(1/n, out)
	}
	return out
}

// normalizedGradient turns dX into d(X/|X|) = (dX - Xn (Xn.dX)) / |X|.
func normalizedGradient(xUnnorm, xNorm, d []float64) []float64 {
	out := make([]float64, len(d))
	n := floats.Norm(xUnnorm, 2)
	if n == 0 {
		return out
	}
	copy(out, d)
	floats.AddScaled(out, -floats.Dot(xNorm, d), xNorm)
	floats.Scale(1/n, out)
	return out
}

// atomic implements the per-environment part shared by all variants.
type atomic struct{}

func (atomic) ListAtomic(sp *descriptor.Spectrum) iter.Seq[*descriptor.AtomicSpectrum] {
	return func(yield func(*descriptor.AtomicSpectrum) bool) {
		for _, a := range sp.Atomic() {
			if !yield(a) {
				return
			}
		}
	}
}

func (atomic) AdaptScalar(a *descriptor.AtomicSpectrum) ([]float64, []float64) {
	return slices.Clone(a.X()), Normalize(a.X())
}

func (atomic) AdaptGradients(a *descriptor.AtomicSpectrum, nbID int, xUnnorm []float64) ([]float64, []float64, []float64, error) {
	dx, dy, dz, ok := a.Gradient(nbID)
	if !ok {
		return nil, nil, nil, fmt.Errorf("center %d, neighbour %d: %w", a.CenterID, nbID, ErrMissingDerivative)
	}
	xNorm := Normalize(xUnnorm)
	return normalizedGradient(xUnnorm, xNorm, dx),
		normalizedGradient(xUnnorm, xNorm, dy),
		normalizedGradient(xUnnorm, xNorm, dz), nil
}

type specificUnique struct{ atomic }

func (specificUnique) Type() AdaptorType { return AdaptorSpecificUnique }

func (specificUnique) Adapt(sp *descriptor.Spectrum) (*mat.Dense, error) {
	envs := sp.Atomic()
	if len(envs) == 0 {
		return nil, ErrEmptySpectrum
	}
	out := mat.NewDense(len(envs), sp.Dim(), nil)
	for i, a := range envs {
		out.SetRow(i, Normalize(a.X()))
	}
	return out, nil
}

type globalGeneric struct{ atomic }

func (globalGeneric) Type() AdaptorType { return AdaptorGlobalGeneric }

func (globalGeneric) Adapt(sp *descriptor.Spectrum) (*mat.Dense, error) {
	if len(sp.Atomic()) == 0 {
		return nil, ErrEmptySpectrum
	}
	return mat.NewDense(1, sp.Dim(), Normalize(sp.Global())), nil
}
