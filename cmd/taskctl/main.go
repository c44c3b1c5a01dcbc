package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/taskctl/internal/config"
	"github.com/san-kum/taskctl/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string

	configFile string
	preset     string
	dt         float64
	duration   float64
	integrator string
	controller string
	massScale  float64
	kp         float64
	kd         float64
	damping    float64
	target     []float64
	hold       bool

	live        bool
	frameRate   int
	metricsAddr string

	kps     []float64
	kds     []float64
	workers int

	column   string
	joint    int
	band     float64
	outPath  string
	outDir   string
	modelArg string
)

// main registers the taskctl commands. With no subcommand it opens the
// interactive terminal UI.
func main() {
	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "operational-space task control lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive(config.DefaultConfig(), newLogger())
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".taskctl", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a closed-loop simulation and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().BoolVar(&live, "live", false, "draw the arm in the terminal while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for --live")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "measure controller ticks per second",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchModel,
	}
	addConfigFlags(benchCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run a grid of gains concurrently",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepGains,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&kps, "kps", []float64{25, 50, 100, 200}, "stiffness gains to try")
	sweepCmd.Flags().Float64SliceVar(&kds, "kds", []float64{10, 20, 40}, "damping gains to try")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "", "single column to plot, e.g. q1 or tau0 (default: task error and joint angles)")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "joint phase portrait (angle vs rate)",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&joint, "joint", 0, "joint index")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "settling and oscillation analysis of the task error",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&band, "band", 0.02, "settling band as a fraction of the initial error")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")

	exportPNGCmd := &cobra.Command{
		Use:   "export-png [run_id]",
		Short: "render run charts and the end-effector path",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPNG,
	}
	exportPNGCmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	tuiCmd := &cobra.Command{
		Use:   "tui [model]",
		Short: "interactive terminal UI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, args)
			if err != nil {
				return err
			}
			return tui.RunInteractive(cfg, newLogger())
		},
	}
	addConfigFlags(tuiCmd)

	rootCmd.AddCommand(runCmd, benchCmd, sweepCmd, listCmd, plotCmd, phaseCmd, analyzeCmd,
		exportCmd, exportCSVCmd, exportPNGCmd, presetsCmd, tuiCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&modelArg, "model", "", "model name (same as the positional argument)")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration")
	f.StringVar(&integrator, "integrator", "rk4", "integrator")
	f.StringVar(&controller, "controller", config.ControllerTaskSpace, "controller")
	f.Float64Var(&massScale, "mass-scale", config.DefaultMassScale, "plant mass relative to the controller's model")
	f.Float64Var(&kp, "kp", 100, "task stiffness")
	f.Float64Var(&kd, "kd", 20, "task damping")
	f.Float64Var(&damping, "damping", 0.1, "joint damping")
	f.Float64SliceVar(&target, "target", nil, "task target x,y,z")
	f.BoolVar(&hold, "hold", false, "hold the last torque through recoverable controller failures")
}

// buildConfig layers defaults, preset, config file and then any flag the
// user set explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := modelArg
	if len(args) > 0 {
		model = args[0]
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		if model == "" {
			return nil, fmt.Errorf("--preset needs a model")
		}
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if model != "" {
		cfg.Model = model
	}

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("time") {
		cfg.Duration = duration
	}
	if f.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if f.Changed("controller") {
		cfg.Controller = controller
	}
	if f.Changed("mass-scale") {
		cfg.MassScale = massScale
	}
	if f.Changed("kp") {
		cfg.ControllerParams.Kp = kp
	}
	if f.Changed("kd") {
		cfg.ControllerParams.Kd = kd
	}
	if f.Changed("damping") {
		cfg.ControllerParams.Damping = damping
	}
	if f.Changed("target") {
		if len(target) != 3 {
			return nil, fmt.Errorf("--target needs three values, got %d", len(target))
		}
		cfg.ControllerParams.Target = &config.Vec3{target[0], target[1], target[2]}
	}
	if f.Changed("hold") {
		cfg.HoldOnRecoverable = hold
	}
	return cfg, cfg.Validate()
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
