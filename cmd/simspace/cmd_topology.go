package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sanonone/simspace/pkg/simspace"
)

func newTopologyCmd(a *app) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "topology [xyz file...]",
		Short: "Build a descriptor ensemble and dump its feature and kernel matrices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := readFrames(args...)
			if err != nil {
				return err
			}
			top, err := simspace.NewTopology(a.cfg.Descriptor, a.cfg.Kernel)
			if err != nil {
				return err
			}
			for _, s := range frames {
				if _, err := top.CreateNode(s); err != nil {
					return fmt.Errorf("structure %q: %w", s.Label, err)
				}
			}
			slog.Info("[Topology] ensemble built", "nodes", top.Len(), "dim", top.Engine().Dim())

			if summary {
				if err := top.Summarize(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return top.WriteData(a.cfg.Output.Prefix + ".top")
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print every node's particles")
	return cmd
}
