// Package config resolves optiplan settings from defaults, an optional YAML
// file, OPTIPLAN_* environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"optiplan/internal/engine"
	"optiplan/internal/hub"
	"optiplan/internal/lp"
	"optiplan/internal/production"
)

const EnvPrefix = "OPTIPLAN"

const (
	KeySolverBackend      = "solver.backend"
	KeySolverCBCPath      = "solver.cbcPath"
	KeySolverWorkDir      = "solver.workDir"
	KeySolverKeepFiles    = "solver.keepFiles"
	KeyServerAddr         = "server.addr"
	KeyHubMatrix          = "hub.matrix"
	KeyHubHubs            = "hub.hubs"
	KeyHubSingleHubRoutes = "hub.singleHubRoutes"
	KeyProductionInstance = "production.instance"
	KeyProductionScenario = "production.scenario"
	KeySweepFrom          = "sweep.from"
	KeySweepTo            = "sweep.to"
	KeySweepStep          = "sweep.step"
	KeySweepPlants        = "sweep.plants"
)

const (
	DefaultBackend    = "cbc"
	DefaultCBCPath    = "cbc"
	DefaultServerAddr = ":8080"
	DefaultHubMatrix  = "data/cost_matrix_multi_hub.csv"
	DefaultScenario   = production.ScenarioBaseline
)

type Settings struct {
	Solver     lp.Options
	Server     ServerSettings
	Hub        HubSettings
	Production ProductionSettings
	Sweep      SweepSettings
}

type ServerSettings struct {
	Addr string
}

type HubSettings struct {
	Matrix string
	// Hubs is the number of hubs to open. Zero picks the instance default.
	Hubs            int
	SingleHubRoutes bool
}

// ProductionSettings name the instance to solve. A non-empty Instance file
// wins over Scenario.
type ProductionSettings struct {
	Instance string
	Scenario string
}

type SweepSettings struct {
	Range  production.SweepRange
	Plants []string
}

// flag name -> viper key
var flagKeys = []struct{ flag, key string }{
	{"backend", KeySolverBackend},
	{"cbc-path", KeySolverCBCPath},
	{"work-dir", KeySolverWorkDir},
	{"keep-files", KeySolverKeepFiles},
	{"addr", KeyServerAddr},
	{"matrix", KeyHubMatrix},
	{"hubs", KeyHubHubs},
	{"single-hub-routes", KeyHubSingleHubRoutes},
	{"instance", KeyProductionInstance},
	{"scenario", KeyProductionScenario},
	{"sweep-from", KeySweepFrom},
	{"sweep-to", KeySweepTo},
	{"sweep-step", KeySweepStep},
	{"plants", KeySweepPlants},
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	sweep := production.DefaultSweepRange()

	v.SetDefault(KeySolverBackend, DefaultBackend)
	v.SetDefault(KeySolverCBCPath, DefaultCBCPath)
	v.SetDefault(KeySolverWorkDir, "")
	v.SetDefault(KeySolverKeepFiles, false)
	v.SetDefault(KeyServerAddr, DefaultServerAddr)
	v.SetDefault(KeyHubMatrix, DefaultHubMatrix)
	v.SetDefault(KeyHubHubs, 0)
	v.SetDefault(KeyHubSingleHubRoutes, false)
	v.SetDefault(KeyProductionInstance, "")
	v.SetDefault(KeyProductionScenario, DefaultScenario)
	v.SetDefault(KeySweepFrom, sweep.From)
	v.SetDefault(KeySweepTo, sweep.To)
	v.SetDefault(KeySweepStep, sweep.Step)
	v.SetDefault(KeySweepPlants, production.DefaultSweepPlants)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags registers one flag per setting. Flag defaults match New.
func AddFlags(fs *pflag.FlagSet) {
	sweep := production.DefaultSweepRange()

	fs.String("backend", DefaultBackend, `solver backend, "cbc" or "simplex"`)
	fs.String("cbc-path", DefaultCBCPath, "path to the cbc binary")
	fs.String("work-dir", "", "parent directory for solver scratch files")
	fs.Bool("keep-files", false, "keep solver model and solution files")
	fs.String("addr", DefaultServerAddr, "HTTP listen address")
	fs.String("matrix", DefaultHubMatrix, "hub cost matrix, CSV or .xlsx")
	fs.Int("hubs", 0, "number of hubs to open (0 picks the default)")
	fs.Bool("single-hub-routes", false, "allow routes through a single hub")
	fs.String("instance", "", "production instance YAML (overrides --scenario)")
	fs.String("scenario", DefaultScenario, "built-in production scenario")
	fs.Float64("sweep-from", sweep.From, "first additional machine hour value")
	fs.Float64("sweep-to", sweep.To, "end of the additional machine hour range (exclusive)")
	fs.Float64("sweep-step", sweep.Step, "additional machine hour step")
	fs.StringSlice("plants", production.DefaultSweepPlants, "plants to sweep, in order")
}

// BindFlags binds every flag AddFlags registered in fs to its key. Flags
// missing from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return errors.Wrapf(err, "bind flag --%s", fk.flag)
		}
	}
	return nil
}

// Load reads the optional config file at path and resolves the settings.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	s := &Settings{
		Solver: lp.Options{
			Backend:   v.GetString(KeySolverBackend),
			CBCPath:   v.GetString(KeySolverCBCPath),
			WorkDir:   v.GetString(KeySolverWorkDir),
			KeepFiles: v.GetBool(KeySolverKeepFiles),
		},
		Server: ServerSettings{Addr: v.GetString(KeyServerAddr)},
		Hub: HubSettings{
			Matrix:          v.GetString(KeyHubMatrix),
			Hubs:            v.GetInt(KeyHubHubs),
			SingleHubRoutes: v.GetBool(KeyHubSingleHubRoutes),
		},
		Production: ProductionSettings{
			Instance: v.GetString(KeyProductionInstance),
			Scenario: v.GetString(KeyProductionScenario),
		},
		Sweep: SweepSettings{
			Range: production.SweepRange{
				From: v.GetFloat64(KeySweepFrom),
				To:   v.GetFloat64(KeySweepTo),
				Step: v.GetFloat64(KeySweepStep),
			},
			Plants: v.GetStringSlice(KeySweepPlants),
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.Hub.Hubs < 0 {
		return errors.Errorf("%s must not be negative, got %d", KeyHubHubs, s.Hub.Hubs)
	}
	if err := s.Sweep.Range.Validate(); err != nil {
		return errors.Wrap(err, "sweep")
	}
	if _, err := lp.NewSolver(s.Solver); err != nil {
		return errors.Wrap(err, KeySolverBackend)
	}
	return nil
}

// ProductionInstance loads the configured instance file, or the named
// scenario when no file is set.
func (s *Settings) ProductionInstance() (*production.Instance, error) {
	if s.Production.Instance != "" {
		return production.LoadInstance(s.Production.Instance)
	}
	return production.Scenario(s.Production.Scenario)
}

// HubInstance loads the configured cost matrix and resolves the hub count.
func (s *Settings) HubInstance() (*hub.Instance, int, error) {
	costs, err := engine.LoadCostMatrix(s.Hub.Matrix)
	if err != nil {
		return nil, 0, err
	}
	if err := hub.CheckSize(costs); err != nil {
		return nil, 0, errors.Wrap(err, s.Hub.Matrix)
	}
	in := hub.NewInstance(costs, s.Hub.SingleHubRoutes)
	p := s.Hub.Hubs
	if p == 0 {
		p = in.DefaultHubCount()
	}
	return in, p, nil
}
