package main

import (
	"io"

	"github.com/spf13/cobra"

	"optiplan/internal/export"
	"optiplan/internal/hub"
)

type hubCmd struct {
	*Context
}

// NewHubCmd builds the "optiplan hub" command.
func NewHubCmd(cxt *Context) *cobra.Command {
	hubCmd := &hubCmd{Context: cxt}
	return &cobra.Command{
		Use:   "hub",
		Short: "Open p hubs and route every origin/destination pair at minimum cost",
		Example: `
  optiplan hub --matrix data/cost_matrix_multi_hub.csv --hubs 5
  optiplan hub --hubs 1 --single-hub-routes -o json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return hubCmd.run(cmd)
		},
	}
}

func (c *hubCmd) run(cmd *cobra.Command) error {
	in, p, err := c.Settings.HubInstance()
	if err != nil {
		return err
	}
	if err := in.CheckHubCount(p); err != nil {
		return err
	}

	res, err := hub.Solve(cmd.Context(), c.Solver, in, p)
	if err != nil {
		return err
	}
	if err := c.export(func(e *export.Exporter) ([]string, error) { return e.Hub(res) }); err != nil {
		return err
	}
	return c.print(res, func(w io.Writer) error { return writeHubResult(w, res) })
}
