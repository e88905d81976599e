package main

import (
	"io"

	"github.com/spf13/cobra"

	"optiplan/internal/export"
	"optiplan/internal/production"
)

type productionCmd struct {
	*Context
	shadowPrices bool
}

// NewProductionCmd builds the "optiplan production" command.
func NewProductionCmd(cxt *Context) *cobra.Command {
	productionCmd := &productionCmd{Context: cxt}
	cmd := &cobra.Command{
		Use:     "production",
		Aliases: []string{"prod"},
		Short:   "Plan production and shipments for maximum profit",
		Example: `
  optiplan production
  optiplan production --scenario expanded-demand --shadow-prices
  optiplan production --instance data/production_baseline.yaml --export out/
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return productionCmd.run(cmd)
		},
	}
	cmd.Flags().BoolVar(
		&productionCmd.shadowPrices,
		"shadow-prices",
		false,
		"Also report machine-hour shadow prices from the continuous relaxation",
	)
	return cmd
}

func (c *productionCmd) run(cmd *cobra.Command) error {
	in, err := c.Settings.ProductionInstance()
	if err != nil {
		return err
	}
	f, err := production.Build(in)
	if err != nil {
		return err
	}

	res, err := production.SolveFormulation(cmd.Context(), c.Solver, f)
	if err != nil {
		return err
	}
	if c.shadowPrices {
		if res.ShadowPrices, err = production.MachineShadowPrices(cmd.Context(), c.Solver, f); err != nil {
			return err
		}
	}
	if err := c.export(func(e *export.Exporter) ([]string, error) { return e.Production(res) }); err != nil {
		return err
	}
	return c.print(res, func(w io.Writer) error { return writeProductionResult(w, res) })
}
