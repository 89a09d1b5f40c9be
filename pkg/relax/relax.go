package relax

import (
	"fmt"

	"github.com/sanonone/simspace/pkg/metrics"
	"github.com/sanonone/simspace/pkg/persistence"
)

// Relax minimizes the driver's objective with m, writing the initial frame,
// one frame per gradient evaluation and the final frame to trajectoryPath.
// It returns false with a nil error when the minimizer did not converge.
// The trajectory is closed on every path.
func Relax(d *Driver, m Minimizer, trajectoryPath string) (converged bool, res Result, err error) {
	if d.state == Terminal {
		return false, Result{}, ErrTerminated
	}

	trj, err := persistence.NewTrajectoryLogger(trajectoryPath)
	if err != nil {
		return false, Result{}, err
	}
	defer func() {
		if cerr := trj.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	trj.SetComment("run=" + d.runID)

	d.trj = trj
	defer func() { d.trj = nil }()

	node := d.node.Structure()
	d.logger.Info("[Relax] starting relaxation", "run", d.runID, "node", d.node.ID(),
		"particles", node.N(), "optimizable", len(d.idx), "trajectory", trj.Path())

	if err := trj.LogFrame(node); err != nil {
		return false, Result{}, err
	}
	if err := trj.Flush(); err != nil {
		return false, Result{}, err
	}

	res, err = m.Minimize(d, d.X0())
	if err != nil {
		d.state = Terminal
		metrics.Relaxations.WithLabelValues("error").Inc()
		d.logger.Error("[Relax] relaxation failed", "run", d.runID, "error", err)
		return false, res, fmt.Errorf("relax run %s: %w", d.runID, err)
	}

	if res.X != nil {
		if err := d.Apply(res.X); err != nil {
			d.state = Terminal
			return false, res, err
		}
	}
	if err := trj.LogFrame(node); err != nil {
		return false, res, err
	}

	converged = res.Converged()
	switch res.Warnflag {
	case 1:
		d.state = Idle
	default:
		d.state = Terminal
	}

	outcome := "converged"
	if !converged {
		outcome = "not_converged"
	}
	metrics.Relaxations.WithLabelValues(outcome).Inc()
	d.logger.Info("[Relax] relaxation finished", "run", d.runID, "outcome", outcome,
		"energy", res.F, "status", res.Status, "warnflag", res.Warnflag,
		"func_evals", res.FuncEvals, "grad_evals", res.GradEvals)
	return converged, res, nil
}
