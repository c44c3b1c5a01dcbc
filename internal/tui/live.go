package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/models"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	liveWidth   = 70
	liveHeight  = 22
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer is a dynamo.Observer that redraws the arm on out at most
// frameRate times per second while a batch run is in progress.
type LiveRenderer struct {
	plant     *models.Plant
	target    func() r3.Vec
	out       io.Writer
	frameRate int
	lastFrame time.Time
	canvas    *canvas
	trail     []r3.Vec
	frames    int
}

func NewLiveRenderer(plant *models.Plant, target func() r3.Vec, out io.Writer, frameRate int) *LiveRenderer {
	return &LiveRenderer{
		plant:     plant,
		target:    target,
		out:       out,
		frameRate: max(frameRate, 1),
		trail:     make([]r3.Vec, 0, 40),
	}
}

// Frames is how many frames have been drawn.
func (r *LiveRenderer) Frames() int { return r.frames }

func (r *LiveRenderer) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	segs, err := r.plant.Skeleton(x)
	if err != nil {
		return
	}
	target := r.target()
	if r.canvas == nil {
		r.canvas = newCanvas(liveWidth, liveHeight, armReach(segs, target))
		fmt.Fprint(r.out, hideCursor)
	}
	ee := segs[len(segs)-1].To
	r.trail = append(r.trail, ee)
	if len(r.trail) > 40 {
		r.trail = r.trail[1:]
	}

	c := r.canvas
	c.clear()
	c.ground()
	for i, p := range r.trail {
		if i < len(r.trail)/2 {
			c.mark(p, '·')
		} else {
			c.mark(p, '•')
		}
	}
	c.drawArm(segs)
	c.mark(target, '✕')

	var sb strings.Builder
	sb.WriteString(clearScreen)
	sb.WriteString(c.String())
	fmt.Fprintf(&sb, "\n t=%6.2fs  error=%.4f m  |tau|max=%.2f\n", t, r3.Norm(r3.Sub(target, ee)), maxAbs(u))
	io.WriteString(r.out, sb.String())
	r.frames++
}

// Close restores the cursor.
func (r *LiveRenderer) Close() {
	if r.canvas != nil {
		fmt.Fprint(r.out, showCursor)
	}
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if x < 0 {
			x = -x
		}
		m = max(m, x)
	}
	return m
}
