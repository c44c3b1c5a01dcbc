package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/taskctl/internal/analysis"
	"github.com/san-kum/taskctl/internal/config"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/export"
	"github.com/san-kum/taskctl/internal/models"
	"github.com/san-kum/taskctl/internal/storage"
	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tINTEG\tCTRL\tSTEPS\tERROR")
	for _, run := range runs {
		status := "-"
		if run.Error != "" {
			status = run.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%d\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Controller,
			run.Steps,
			status,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, *storage.Samples, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(samples.Times) == 0 {
		return nil, nil, fmt.Errorf("run %s has no samples", runID)
	}
	return meta, samples, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(samples.Times))

	columns := []string{column}
	if column == "" {
		columns = []string{"task_error"}
		for j := 0; j < samples.NumCoords() && j < 6; j++ {
			columns = append(columns, fmt.Sprintf("q%d", j))
		}
	}
	for _, name := range columns {
		data, err := samples.Column(name)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption(name)),
		))
		fmt.Println()
	}
	return nil
}

func caption(name string) string {
	switch name {
	case "task_error":
		return "task error |x - x*| (m)"
	case "time":
		return "time (s)"
	}
	switch name[0] {
	case 'q':
		return fmt.Sprintf("joint %s angle (rad)", name[1:])
	case 'u':
		return fmt.Sprintf("joint %s rate (rad/s)", name[1:])
	case 't':
		return fmt.Sprintf("joint %s torque (N m)", name[3:])
	}
	return name
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}
	qs, err := samples.Column(fmt.Sprintf("q%d", joint))
	if err != nil {
		return err
	}
	us, err := samples.Column(fmt.Sprintf("u%d", joint))
	if err != nil {
		return err
	}
	plot, err := analysis.PhasePortrait(qs, us, 70, 20)
	if err != nil {
		return err
	}

	fmt.Printf("phase portrait: %s\n", meta.ID)
	fmt.Printf("model: %s  joint: %d\n", meta.Model, joint)
	fmt.Printf("x: q%d (rad), y: u%d (rad/s)\n\n", joint, joint)
	fmt.Print(plot)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(samples.TaskErrors) == 0 {
		return fmt.Errorf("run %s has no controller ticks", meta.ID)
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("model: %s  kp: %g  kd: %g\n\n", meta.Model, meta.Kp, meta.Kd)

	step, err := analysis.Step(samples.Times, samples.TaskErrors, band)
	if err != nil {
		return err
	}
	fmt.Printf("initial error: %.4e m\n", step.Initial)
	fmt.Printf("final error:   %.4e m\n", step.Final)
	fmt.Printf("peak error:    %.4e m at %.3f s\n", step.Peak, step.PeakTime)
	if step.Settled {
		fmt.Printf("settled within %.0f%% at %.3f s\n", band*100, step.SettlingTime)
	} else {
		fmt.Printf("did not settle within %.0f%%\n", band*100)
	}

	sp, err := analysis.Spectrum(samples.TaskErrors, meta.Dt)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(sp.Power[:max(len(sp.Power)/4, 2)],
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum of task error"),
	))
	if f := sp.Dominant(); f > 0 {
		fmt.Printf("\ndominant frequency: %.3f hz (period %.3f s)\n", f, 1/f)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	in, err := st.OpenSamples(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	if outPath == "" {
		_, err = io.Copy(os.Stdout, in)
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outPath)
	return nil
}

func exportPNG(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	paths, err := export.SaveRunPNGs(outDir, samples)
	if err != nil {
		return err
	}
	svgPath, err := writePathSVG(meta, samples)
	if err != nil {
		return err
	}
	for _, p := range append(paths, svgPath) {
		fmt.Printf("wrote %s\n", p)
	}
	return nil
}

// writePathSVG replays the stored states through a fresh plant to trace
// the end effector, seen from the side (x right, z up).
func writePathSVG(meta *storage.RunMetadata, samples *storage.Samples) (string, error) {
	cfg := config.DefaultConfig()
	cfg.Model = meta.Model
	arm, err := cfg.Arm()
	if err != nil {
		return "", err
	}
	plant, err := models.NewPlant(arm, meta.MassScale)
	if err != nil {
		return "", err
	}

	points := make([]export.Point, 0, len(samples.Q))
	for i := range samples.Q {
		x := append(dynamo.State{}, samples.Q[i]...)
		x = append(x, samples.U[i]...)
		ee, err := plant.EndEffectorAt(x)
		if err != nil {
			return "", fmt.Errorf("sample %d: %w", i, err)
		}
		points = append(points, export.Point{X: ee.X, Y: ee.Z})
	}
	goal := &export.Point{X: meta.Target[0], Y: meta.Target[2]}

	path := filepath.Join(outDir, "path.svg")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := export.PathSVG(f, points, goal, 600, 600, "#1f77b4"); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
