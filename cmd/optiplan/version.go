package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// NewVersionCmd builds the "optiplan version" command.
func NewVersionCmd(cxt *Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the optiplan version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(cxt.Output, "optiplan %s (solver %s)\n", version, cxt.Solver.Name())
			return err
		},
	}
}
