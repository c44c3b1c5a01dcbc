package analysis

import (
	"errors"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// PhasePortrait plots ys against xs on a width x height character grid.
// Later samples overwrite earlier ones; the axes are drawn where they
// cross the padded bounds.
func PhasePortrait(xs, ys []float64, width, height int) (string, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return "", errors.New("phase portrait needs two non-empty series of equal length")
	}
	if width < 2 || height < 2 {
		return "", errors.New("phase portrait grid too small")
	}

	minX, maxX := padded(floats.Min(xs), floats.Max(xs))
	minY, maxY := padded(floats.Min(ys), floats.Max(ys))
	col := func(x float64) int { return int((x - minX) / (maxX - minX) * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-minY)/(maxY-minY)*float64(height-1)) }

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	if minX <= 0 && maxX >= 0 {
		c := col(0)
		for r := range grid {
			grid[r][c] = '│'
		}
	}
	if minY <= 0 && maxY >= 0 {
		r := row(0)
		for c := range grid[r] {
			grid[r][c] = '─'
		}
	}
	n := len(xs)
	for i := range xs {
		mark := '.'
		switch {
		case i == n-1:
			mark = '@'
		case i >= 2*n/3:
			mark = '•'
		case i >= n/3:
			mark = 'o'
		}
		grid[row(ys[i])][col(xs[i])] = mark
	}

	var sb strings.Builder
	for _, r := range grid {
		sb.WriteString(string(r))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// padded widens [lo, hi] by a tenth of its span on each side.
func padded(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return lo - 0.1*span, hi + 0.1*span
}
