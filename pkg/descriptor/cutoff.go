package descriptor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ShiftedCosine is a smooth neighbour weight: 1 inside Rc-RcWidth, a half
// cosine across the transition shell, 0 from Rc on.
type ShiftedCosine struct {
	Rc           float64
	RcWidth      float64
	CenterWeight float64
}

// NewCutoff builds the cutoff named in opts. An unknown type fails fast.
func NewCutoff(opts RadialCutoffOptions) (ShiftedCosine, error) {
	if opts.Type != "shifted-cosine" {
		return ShiftedCosine{}, fmt.Errorf("%q: %w", opts.Type, ErrUnknownCutoff)
	}
	if opts.Rc <= 0 || opts.RcWidth <= 0 || opts.RcWidth > opts.Rc {
		return ShiftedCosine{}, fmt.Errorf("rc=%g rc_width=%g: %w", opts.Rc, opts.RcWidth, ErrInvalidOptions)
	}
	return ShiftedCosine{Rc: opts.Rc, RcWidth: opts.RcWidth, CenterWeight: opts.CenterWeight}, nil
}

// Weight returns the weight at distance r.
func (c ShiftedCosine) Weight(r float64) float64 {
	r0 := c.Rc - c.RcWidth
	switch {
	case r <= r0:
		return 1
	case r >= c.Rc:
		return 0
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(r-r0)/c.RcWidth))
	}
}

// DWeight returns the radial derivative of Weight at r.
func (c ShiftedCosine) DWeight(r float64) float64 {
	r0 := c.Rc - c.RcWidth
	if r <= r0 || r >= c.Rc {
		return 0
	}
	return -0.5 * math.Pi / c.RcWidth * math.Sin(math.Pi*(r-r0)/c.RcWidth)
}

// GradientWeight returns the gradient of the weight along the unit
// direction d at distance r.
func (c ShiftedCosine) GradientWeight(r float64, d r3.Vec) r3.Vec {
	return r3.Scale(c.DWeight(r), d)
}

// Inside reports whether a neighbour at distance r contributes.
func (c ShiftedCosine) Inside(r float64) bool { return r < c.Rc }
