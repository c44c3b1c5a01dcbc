package tui

import (
	"math"
	"strings"

	"github.com/san-kum/taskctl/internal/models"
	"gonum.org/v1/gonum/spatial/r3"
)

// canvas is a side view of the arm: ground x to the right, z up. Ground
// origin sits at the centre.
type canvas struct {
	w, h  int
	cells [][]rune
	sx    float64 // columns per metre
	sz    float64 // rows per metre
}

// newCanvas fits a sphere of radius reach around the origin. Terminal
// cells are about twice as tall as wide.
func newCanvas(w, h int, reach float64) *canvas {
	w, h = max(w, 8), max(h, 4)
	if !(reach > 0) {
		reach = 1
	}
	sz := float64(h/2-1) / reach
	sx := math.Min(2*sz, float64(w/2-1)/reach)
	c := &canvas{w: w, h: h, sx: sx, sz: sx / 2}
	c.cells = make([][]rune, h)
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.clear()
	return c
}

func (c *canvas) clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = ' '
		}
	}
}

func (c *canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

func (c *canvas) project(p r3.Vec) (int, int) {
	x := c.w/2 + int(math.Round(p.X*c.sx))
	y := c.h/2 - int(math.Round(p.Z*c.sz))
	return x, y
}

// line draws with Bresenham's algorithm.
func (c *canvas) line(x1, y1, x2, y2 int, r rune) {
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *canvas) ground() {
	_, y := c.project(r3.Vec{})
	if y+1 >= c.h {
		return
	}
	for x := 0; x < c.w; x++ {
		if c.cells[y+1][x] == ' ' {
			c.cells[y+1][x] = '─'
		}
	}
}

func (c *canvas) mark(p r3.Vec, r rune) {
	x, y := c.project(p)
	c.set(x, y, r)
}

func (c *canvas) drawArm(segs []models.Segment) {
	for _, s := range segs {
		x1, y1 := c.project(s.From)
		x2, y2 := c.project(s.To)
		c.line(x1, y1, x2, y2, '█')
	}
	for _, s := range segs {
		c.mark(s.From, '●')
	}
	c.mark(r3.Vec{}, '▲')
	if len(segs) > 0 {
		c.mark(segs[len(segs)-1].To, '◉')
	}
}

func (c *canvas) String() string {
	var sb strings.Builder
	for i, row := range c.cells {
		sb.WriteString(string(row))
		if i < len(c.cells)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// armReach bounds every point of the skeleton and the target.
func armReach(segs []models.Segment, target r3.Vec) float64 {
	reach := 0.0
	for _, s := range segs {
		reach += r3.Norm(r3.Sub(s.To, s.From))
	}
	if len(segs) > 0 {
		reach += r3.Norm(segs[0].From)
	}
	return 1.1 * math.Max(reach, r3.Norm(target))
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
