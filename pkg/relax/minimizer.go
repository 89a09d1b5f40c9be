package relax

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Result is the outcome of one minimization.
type Result struct {
	X         []float64
	F         float64
	FuncEvals int
	GradEvals int
	// Warnflag is 0 on convergence, 1 when an iteration or evaluation limit
	// stopped the search and 2 on failure.
	Warnflag int
	Status   string
}

// Converged reports whether the search ended on a convergence criterion.
func (r Result) Converged() bool { return r.Warnflag == 0 }

// Minimizer searches for a local minimum of obj starting from x0. A
// non-converged search is reported through Result.Warnflag; the returned
// error is reserved for failures of the objective itself.
type Minimizer interface {
	Minimize(obj Objective, x0 []float64) (Result, error)
}

// CG is the nonlinear conjugate gradient method of gonum/optimize.
type CG struct {
	GradTol        float64
	MaxIterations  int
	MaxEvaluations int
}

// NewCG builds the minimizer described by cfg.
func NewCG(cfg Config) *CG {
	return &CG{
		GradTol:        cfg.GradTol,
		MaxIterations:  cfg.MaxIterations,
		MaxEvaluations: cfg.MaxEvaluations,
	}
}

// objective records the first callback error. Later calls short-circuit
// and the Status hook stops the search.
type objective struct {
	obj Objective
	err error
}

func (o *objective) fn(x []float64) float64 {
	if o.err != nil {
		return math.NaN()
	}
	e, err := o.obj.Energy(x)
	if err != nil {
		o.err = err
		return math.NaN()
	}
	return e
}

func (o *objective) grad(grad, x []float64) {
	if o.err == nil {
		o.err = o.obj.Gradient(grad, x)
	}
	if o.err != nil {
		for i := range grad {
			grad[i] = math.NaN()
		}
	}
}

func (o *objective) status() (optimize.Status, error) {
	if o.err != nil {
		return optimize.Failure, o.err
	}
	return optimize.NotTerminated, nil
}

// Minimize runs gonum's CG on obj.
func (cg *CG) Minimize(obj Objective, x0 []float64) (Result, error) {
	o := &objective{obj: obj}
	problem := optimize.Problem{
		Func:   o.fn,
		Grad:   o.grad,
		Status: o.status,
	}
	settings := &optimize.Settings{
		GradientThreshold: cg.GradTol,
		MajorIterations:   cg.MaxIterations,
		FuncEvaluations:   cg.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 100,
		},
	}

	res, err := optimize.Minimize(problem, x0, settings, &optimize.CG{})
	if o.err != nil {
		return failed(res), o.err
	}
	if res == nil {
		return Result{Warnflag: 2, Status: optimize.Failure.String()}, nil
	}

	out := Result{
		X:         res.X,
		F:         res.F,
		FuncEvals: res.FuncEvaluations,
		GradEvals: res.GradEvaluations,
		Warnflag:  warnflag(res.Status),
		Status:    res.Status.String(),
	}
	if err != nil {
		out.Warnflag = 2
		out.Status = err.Error()
	}
	return out, nil
}

func failed(res *optimize.Result) Result {
	out := Result{Warnflag: 2, Status: optimize.Failure.String()}
	if res != nil {
		out.FuncEvals = res.FuncEvaluations
		out.GradEvals = res.GradEvaluations
	}
	return out
}

func warnflag(s optimize.Status) int {
	switch s {
	case optimize.Success,
		optimize.GradientThreshold,
		optimize.FunctionConvergence,
		optimize.FunctionThreshold,
		optimize.MethodConverge:
		return 0
	case optimize.IterationLimit,
		optimize.FunctionEvaluationLimit,
		optimize.GradientEvaluationLimit,
		optimize.RuntimeLimit:
		return 1
	default:
		return 2
	}
}
