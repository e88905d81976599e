package main

import (
	"flag"
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"optiplan/internal/config"
	"optiplan/internal/export"
	"optiplan/internal/lp"
)

// Context is shared by every subcommand. It is completed from flags, the
// config file and the environment before a subcommand runs.
type Context struct {
	Output io.Writer

	configPath string
	format     string
	exportDir  string
	viper      *viper.Viper

	Settings *config.Settings
	Solver   lp.Solver
}

// NewRootCmd builds the "optiplan" command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	cxt := &Context{Output: out, viper: config.New()}
	cmd := &cobra.Command{
		Use:   "optiplan",
		Short: "Solve hub location and production planning models",
		Long: `optiplan builds mixed-integer models for multi-allocation hub location
and for production and shipping planning, solves them with CBC or the
in-process simplex relaxation, and reports the plans.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cxt.complete(cmd)
		},
	}
	cmd.SetOut(out)

	fs := cmd.PersistentFlags()
	fs.StringVar(&cxt.configPath, "config", "", "config file (YAML)")
	fs.StringVarP(&cxt.format, "output", "o", "table", `output format, "table" or "json"`)
	fs.StringVar(&cxt.exportDir, "export", "", "also write result tables as CSV files into this directory")
	config.AddFlags(fs)
	// The server address has no meaning here.
	_ = fs.MarkHidden("addr")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	fs.AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		NewHubCmd(cxt),
		NewProductionCmd(cxt),
		NewSweepCmd(cxt),
		NewVersionCmd(cxt),
	)
	return cmd
}

func (c *Context) complete(cmd *cobra.Command) error {
	if c.format != "table" && c.format != "json" {
		return errors.Errorf("unknown output format %q", c.format)
	}
	if err := config.BindFlags(c.viper, cmd.Flags()); err != nil {
		return err
	}
	settings, err := config.Load(c.viper, c.configPath)
	if err != nil {
		return err
	}
	solver, err := lp.NewSolver(settings.Solver)
	if err != nil {
		return err
	}
	c.Settings = settings
	c.Solver = solver
	klog.V(1).InfoS("Settings resolved", "backend", solver.Name(), "config", c.configPath)
	return nil
}

// print writes v as indented JSON, or calls table for the table format.
func (c *Context) print(v interface{}, table func(io.Writer) error) error {
	if c.format == "json" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode result")
		}
		_, err = c.Output.Write(append(data, '\n'))
		return err
	}
	return table(c.Output)
}

// export runs write against the --export directory, if one was given.
func (c *Context) export(write func(*export.Exporter) ([]string, error)) error {
	if c.exportDir == "" {
		return nil
	}
	paths, err := write(export.NewExporter(c.exportDir))
	if err != nil {
		return err
	}
	klog.InfoS("Exported result tables", "dir", c.exportDir, "files", len(paths))
	return nil
}
