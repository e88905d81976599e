package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"optiplan/internal/api"
	"optiplan/internal/config"
	"optiplan/internal/engine"
	"optiplan/internal/lp"
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	configPath := pflag.String("config", "", "config file (YAML)")
	config.AddFlags(pflag.CommandLine)
	pflag.Parse()
	defer klog.Flush()

	v := config.New()
	if err := config.BindFlags(v, pflag.CommandLine); err != nil {
		fatal(err, "Binding flags")
	}
	settings, err := config.Load(v, *configPath)
	if err != nil {
		fatal(err, "Loading config")
	}

	// 1. Solver, wrapped with metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	backend, err := lp.NewSolver(settings.Solver)
	if err != nil {
		fatal(err, "Creating solver")
	}
	solver := lp.NewMetrics(reg).Instrument(backend)

	// 2. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// The API is live before the default matrix is loaded; hub solves
	// without an upload answer 503 until then.
	h := api.NewHandler(solver, api.Defaults{
		SingleHubRoutes: settings.Hub.SingleHubRoutes,
		Scenario:        settings.Production.Scenario,
		SweepPlants:     settings.Sweep.Plants,
		SweepRange:      settings.Sweep.Range,
	})
	h.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// 3. Load the default cost matrix in the background
	go func() {
		klog.InfoS("Loading default cost matrix", "path", settings.Hub.Matrix)
		t0 := time.Now()

		costs, err := engine.LoadCostMatrix(settings.Hub.Matrix)
		if err != nil {
			klog.ErrorS(err, "Default cost matrix unavailable, hub solves need an upload")
			return
		}
		h.SetMatrix(costs)

		klog.InfoS("Cost matrix ready", "nodes", costs.Rows.Len(), "hubs", costs.Cols.Len(), "elapsed", time.Since(t0))
	}()

	// 4. Serve until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		klog.InfoS("Server starting", "addr", settings.Server.Addr, "backend", backend.Name())
		if err := e.Start(settings.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "Server stopped")
			stop()
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		klog.ErrorS(err, "Shutdown")
	}
}

func fatal(err error, msg string) {
	klog.ErrorS(err, msg)
	klog.FlushAndExit(klog.ExitFlushTimeout, 1)
}
