package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/taskctl/internal/storage"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 5 * vg.Inch
	plotDPI    = 150
)

// Series is one named curve.
type Series struct {
	Name string
	X, Y []float64
}

// Chart is a titled set of series sharing axes.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

func (c Chart) plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.Add(plotter.NewGrid())

	for i, s := range c.Series {
		if len(s.X) != len(s.Y) || len(s.X) == 0 {
			return nil, fmt.Errorf("series %q: %d x values, %d y values", s.Name, len(s.X), len(s.Y))
		}
		pts := make(plotter.XYs, len(s.X))
		for j := range s.X {
			pts[j].X, pts[j].Y = s.X[j], s.Y[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		if len(c.Series) > 1 {
			p.Legend.Add(s.Name, line)
		}
	}
	p.Legend.Top = true
	return p, nil
}

// WritePNG renders c to w.
func WritePNG(w io.Writer, c Chart) error {
	p, err := c.plot()
	if err != nil {
		return err
	}
	canvas := vgimg.NewWith(vgimg.UseWH(plotWidth, plotHeight), vgimg.UseDPI(plotDPI))
	p.Draw(draw.New(canvas))

	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(bw); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return bw.Flush()
}

// SavePNG renders c into the file at path, creating its directory.
func SavePNG(path string, c Chart) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WritePNG(f, c); err != nil {
		return err
	}
	return f.Close()
}

// RunCharts are the standard views of a stored run: task error, joint
// torques and joint angles against time.
func RunCharts(s *storage.Samples) []Chart {
	n := s.NumCoords()
	ticks := s.Times
	if len(ticks) > 0 {
		ticks = ticks[:len(ticks)-1]
	}

	var charts []Chart
	if len(s.TaskErrors) > 0 {
		charts = append(charts, Chart{
			Title: "Task error", XLabel: "t (s)", YLabel: "|x* - x| (m)",
			Series: []Series{{Name: "task_error", X: ticks[:len(s.TaskErrors)], Y: s.TaskErrors}},
		})
	}
	torques := Chart{Title: "Joint torques", XLabel: "t (s)", YLabel: "tau (N m)"}
	angles := Chart{Title: "Joint angles", XLabel: "t (s)", YLabel: "q (rad)"}
	for j := 0; j < n; j++ {
		if tau, _ := s.Column(fmt.Sprintf("tau%d", j)); len(tau) > 0 {
			torques.Series = append(torques.Series, Series{Name: fmt.Sprintf("tau%d", j), X: ticks[:len(tau)], Y: tau})
		}
		q, _ := s.Column(fmt.Sprintf("q%d", j))
		angles.Series = append(angles.Series, Series{Name: fmt.Sprintf("q%d", j), X: s.Times, Y: q})
	}
	if len(torques.Series) > 0 {
		charts = append(charts, torques)
	}
	if len(angles.Series) > 0 {
		charts = append(charts, angles)
	}
	return charts
}

// SaveRunPNGs writes every RunCharts chart into dir and returns the paths.
func SaveRunPNGs(dir string, s *storage.Samples) ([]string, error) {
	names := map[string]string{
		"Task error":    "task_error.png",
		"Joint torques": "torques.png",
		"Joint angles":  "angles.png",
	}
	var paths []string
	for _, c := range RunCharts(s) {
		path := filepath.Join(dir, names[c.Title])
		if err := SavePNG(path, c); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
