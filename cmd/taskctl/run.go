package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/taskctl/internal/experiment"
	"github.com/san-kum/taskctl/internal/metrics"
	"github.com/san-kum/taskctl/internal/sim"
	"github.com/san-kum/taskctl/internal/storage"
	"github.com/san-kum/taskctl/internal/tui"
	"github.com/spf13/cobra"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg, cfg.Model)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, reg, logger)
		defer stop()
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(logger), experiment.WithCollector(collector))
	if err != nil {
		return err
	}
	if live {
		r := tui.NewLiveRenderer(exp.Plant(), exp.Target, os.Stdout, frameRate)
		exp.Simulator().AddObserver(r)
		defer r.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Printf("running %s...\n", exp)
	start := time.Now()
	result, runErr := exp.Run(ctx)
	elapsed := time.Since(start)

	if result == nil {
		return runErr
	}
	runID, err := st.Save(cfg, result, runErr)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("failures: %d  regularized ticks: %d  saturated joints: %d\n",
		result.Failures, result.Regularizations, result.Saturations)
	printMetrics(result.Metrics)
	if runErr != nil {
		return fmt.Errorf("run stopped early: %w", runErr)
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

// serveMetrics exposes reg over HTTP until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("addr", addr), slog.Any("error", err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func benchModel(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()

	fmt.Printf("benchmarking %s\n\n", cfg.Model)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DURATION\tDT\tTICKS\tTIME\tTICKS/SEC")

	for _, dur := range []float64{0.5, 1, 2} {
		for _, step := range []float64{0.0005, 0.001, 0.002} {
			c := cfg.Clone()
			c.Dt, c.Duration = step, dur
			exp, err := experiment.New(c, experiment.WithLogger(logger))
			if err != nil {
				return err
			}
			start := time.Now()
			result, err := exp.Run(context.Background())
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			fmt.Fprintf(w, "%.1fs\t%.4fs\t%d\t%v\t%.0f\n",
				dur, step, result.StepsTaken, elapsed, float64(result.StepsTaken)/elapsed.Seconds())
		}
	}
	return w.Flush()
}

func sweepGains(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	arm, err := cfg.Arm()
	if err != nil {
		return err
	}
	trials, err := sim.GainGrid(cfg.Settings(arm), kps, kds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Printf("sweeping %d gain pairs on %s...\n\n", len(trials), cfg.Model)
	start := time.Now()
	outcomes, err := sim.Sweep(ctx, sim.SweepSpec{
		Arm:        arm,
		MassScale:  cfg.MassScale,
		Integrator: cfg.Integrator,
		Config:     cfg.SimConfig(),
		Workers:    workers,
		Logger:     newLogger(),
	}, trials)
	if err != nil {
		return err
	}

	slices.SortStableFunc(outcomes, compareOutcomes)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KP\tKD\tFINAL ERR\tSATURATED\tFAILURES\tSTATUS")
	for _, o := range outcomes {
		if o.Result == nil {
			fmt.Fprintf(w, "%g\t%g\t-\t-\t-\t%v\n", o.Settings.Kp, o.Settings.Kd, o.Err)
			continue
		}
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		fmt.Fprintf(w, "%g\t%g\t%.3e\t%d\t%d\t%s\n", o.Settings.Kp, o.Settings.Kd,
			o.Result.Metrics["tracking_error"], o.Result.Saturations, o.Result.Failures, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\ncompleted in %v\n", time.Since(start))
	return nil
}

// compareOutcomes orders finished runs by final tracking error, with
// failed runs last.
func compareOutcomes(a, b sim.Outcome) int {
	ok := func(o sim.Outcome) bool { return o.Err == nil && o.Result != nil }
	switch {
	case ok(a) && !ok(b):
		return -1
	case !ok(a) && ok(b):
		return 1
	case !ok(a):
		return 0
	}
	ea, eb := a.Result.Metrics["tracking_error"], b.Result.Metrics["tracking_error"]
	switch {
	case ea < eb:
		return -1
	case ea > eb:
		return 1
	}
	return 0
}
