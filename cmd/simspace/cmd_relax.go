package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sanonone/simspace/pkg/persistence"
	"github.com/sanonone/simspace/pkg/relax"
	"github.com/sanonone/simspace/pkg/simspace"
	"github.com/sanonone/simspace/pkg/structure"
)

func newRelaxCmd(a *app) *cobra.Command {
	var (
		sourcePath  string
		weightsPath string
	)

	cmd := &cobra.Command{
		Use:   "relax [target xyz]",
		Short: "Relax a structure on the kernel potential of a source ensemble",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg

			targets, err := readFrames(args[0])
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return fmt.Errorf("%s: no frames: %w", args[0], structure.ErrSyntax)
			}
			sources, err := readFrames(sourcePath)
			if err != nil {
				return err
			}

			top, err := simspace.NewTopology(cfg.Descriptor, cfg.Kernel)
			if err != nil {
				return err
			}
			for _, s := range sources {
				if _, err := top.CreateNode(s); err != nil {
					return fmt.Errorf("source %q: %w", s.Label, err)
				}
			}
			source, err := top.IX()
			if err != nil {
				return err
			}

			weights := cfg.Kernel.Alpha
			if weightsPath != "" {
				w, err := persistence.ReadTable(weightsPath)
				if err != nil {
					return err
				}
				weights = w.RawMatrix().Data
			}

			// Node 0 is the target, outside the source ensemble.
			target, err := simspace.NewNode(0, targets[0], top.Engine(), top.Adaptor(), true)
			if err != nil {
				return err
			}
			pot, err := simspace.NewPotential(target, source, weights, top.Function())
			if err != nil {
				return err
			}
			var selfs []simspace.SelfPotential
			if cfg.Potentials.LJ.Enabled {
				lj, err := simspace.NewLJRepulsive(target, cfg.Potentials.LJ.Sigma)
				if err != nil {
					return err
				}
				selfs = append(selfs, lj)
			}

			d, err := relax.NewDriver(target, []*simspace.Potential{pot}, selfs, cfg.Relax.Indices)
			if err != nil {
				return err
			}
			trajectory := cfg.Relax.Trajectory
			if trajectory == "" {
				trajectory = cfg.Output.Prefix + ".opt.xyz"
			}

			converged, res, err := relax.Relax(d, relax.NewCG(cfg.Relax), trajectory)
			if err != nil {
				return err
			}
			if !converged {
				slog.Warn("[Relax] minimizer did not converge", "run", d.RunID(), "status", res.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run=%s converged=%t energy=%.10e evals=%d/%d status=%s\n",
				d.RunID(), converged, res.F, res.FuncEvals, res.GradEvals, res.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "XYZ file with the source ensemble")
	cmd.Flags().StringVarP(&weightsPath, "weights", "w", "", "table of regression weights, one per source row (overrides kernel.alpha)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
