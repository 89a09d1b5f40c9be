// Package kernel provides the similarity functions used to compare
// descriptors with a reference set, and the adaptors that turn descriptor
// engine output into normalized vectors and matrices.
//
// Both come from a small closed catalogue selected by a type tag. The
// constructors fail fast on an unknown tag.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FunctionType is the tag of a kernel function variant.
type FunctionType string

const (
	// FunctionDot is the linear kernel s.x.
	FunctionDot FunctionType = "dot"
	// FunctionPolynomial is delta^2 (s.x + offset)^xi.
	FunctionPolynomial FunctionType = "polynomial"
	// FunctionExpCosine is exp(gamma (cos(s,x) - 1)).
	FunctionExpCosine FunctionType = "exp-cosine"
)

// Function compares descriptor rows. Vector lengths must match the source
// column count; mismatched lengths panic like the underlying gonum calls.
type Function interface {
	// Type returns the variant tag.
	Type() FunctionType
	// Compute returns k(s_i, x) for every source row s_i.
	Compute(source *mat.Dense, x []float64) []float64
	// ComputeBlock returns the pairwise kernel over the rows of m, or the
	// kernel induced distance sqrt(K_ii + K_jj - 2 K_ij) if distance is set.
	ComputeBlock(m *mat.Dense, distance bool) *mat.Dense
	// ComputeDerivativeOuter returns dk(s_i, x)/dx as row i.
	ComputeDerivativeOuter(source *mat.Dense, x []float64) *mat.Dense
}

// scalar is a kernel expressed through the three inner products
// sx = s.x, ss = |s|^2, xx = |x|^2. grad returns (a, b) such that
// dk/dx = a*s + b*x.
type scalar interface {
	value(sx, ss, xx float64) float64
	grad(sx, ss, xx float64) (a, b float64)
}

// NewFunction builds the kernel function named in cfg.Type.
func NewFunction(cfg Config) (Function, error) {
	switch cfg.Type {
	case FunctionDot:
		return &function{typ: cfg.Type, k: dotKernel{}}, nil
	case FunctionPolynomial:
		if cfg.Xi < 1 {
			return nil, fmt.Errorf("polynomial xi=%d: %w", cfg.Xi, ErrInvalidConfig)
		}
		return &function{typ: cfg.Type, k: polyKernel{delta2: cfg.Delta * cfg.Delta, xi: cfg.Xi, offset: cfg.Offset}}, nil
	case FunctionExpCosine:
		if cfg.Gamma <= 0 {
			return nil, fmt.Errorf("exp-cosine gamma=%g: %w", cfg.Gamma, ErrInvalidConfig)
		}
		return &function{typ: cfg.Type, k: expCosKernel{gamma: cfg.Gamma}}, nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Type, ErrUnknownFunction)
	}
}

type function struct {
	typ FunctionType
	k   scalar
}

func (f *function) Type() FunctionType { return f.typ }

func (f *function) Compute(source *mat.Dense, x []float64) []float64 {
	rows, _ := source.Dims()
	xx := floats.Dot(x, x)
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		s := source.RawRowView(i)
		out[i] = f.k.value(floats.Dot(s, x), floats.Dot(s, s), xx)
	}
	return out
}

func (f *function) ComputeBlock(m *mat.Dense, distance bool) *mat.Dense {
	n, _ := m.Dims()
	var gram mat.Dense
	gram.Mul(m, m.T())

	k := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		ii := gram.At(i, i)
		for j := i; j < n; j++ {
			v := f.k.value(gram.At(i, j), ii, gram.At(j, j))
			k.Set(i, j, v)
			k.Set(j, i, v)
		}
	}
	if !distance {
		return k
	}

	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := math.Sqrt(math.Max(0, k.At(i, i)+k.At(j, j)-2*k.At(i, j)))
			d.Set(i, j, v)
			d.Set(j, i, v)
		}
	}
	return d
}

func (f *function) ComputeDerivativeOuter(source *mat.Dense, x []float64) *mat.Dense {
	rows, cols := source.Dims()
	xx := floats.Dot(x, x)
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		s := source.RawRowView(i)
		a, b := f.k.grad(floats.Dot(s, x), floats.Dot(s, s), xx)
		row := out.RawRowView(i)
		floats.AddScaled(row, a, s)
		if b != 0 {
			floats.AddScaled(row, b, x)
		}
	}
	return out
}

type dotKernel struct{}

func (dotKernel) value(sx, _, _ float64) float64 { return sx }
func (dotKernel) grad(_, _, _ float64) (float64, float64) { return 1, 0 }

type polyKernel struct {
	delta2 float64
	xi     int
	offset float64
}

func (p polyKernel) value(sx, _, _ float64) float64 {
	return p.delta2 * math.Pow(sx+p.offset, float64(p.xi))
}

func (p polyKernel) grad(sx, _, _ float64) (float64, float64) {
	return p.delta2 * float64(p.xi) * math.Pow(sx+p.offset, float64(p.xi-1)), 0
}

// expCosKernel needs non-zero vectors on both sides.
type expCosKernel struct {
	gamma float64
}

func (e expCosKernel) value(sx, ss, xx float64) float64 {
	c := sx / math.Sqrt(ss*xx)
	return math.Exp(e.gamma * (c - 1))
}

func (e expCosKernel) grad(sx, ss, xx float64) (float64, float64) {
	norm := math.Sqrt(ss * xx)
	c := sx / norm
	k := math.Exp(e.gamma * (c - 1))
	return k * e.gamma / norm, -k * e.gamma * c / xx
}
