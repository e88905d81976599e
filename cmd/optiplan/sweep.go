package main

import (
	"io"

	"github.com/spf13/cobra"

	"optiplan/internal/export"
	"optiplan/internal/production"
)

type sweepCmd struct {
	*Context
}

// NewSweepCmd builds the "optiplan sweep" command.
func NewSweepCmd(cxt *Context) *cobra.Command {
	sweepCmd := &sweepCmd{Context: cxt}
	return &cobra.Command{
		Use:   "sweep",
		Short: "Measure the profit of extra machine hours plant by plant",
		Example: `
  optiplan sweep
  optiplan sweep --plants 1 --sweep-to 50 --sweep-step 5 -o json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sweepCmd.run(cmd)
		},
	}
}

func (c *sweepCmd) run(cmd *cobra.Command) error {
	in, err := c.Settings.ProductionInstance()
	if err != nil {
		return err
	}
	f, err := production.Build(in)
	if err != nil {
		return err
	}

	sweep := c.Settings.Sweep
	reports, err := production.SweepPlants(cmd.Context(), c.Solver, f, sweep.Plants, sweep.Range)
	if err != nil {
		return err
	}
	if err := c.export(func(e *export.Exporter) ([]string, error) { return e.Sweep(reports) }); err != nil {
		return err
	}
	return c.print(reports, func(w io.Writer) error { return writeSweepReports(w, reports) })
}
