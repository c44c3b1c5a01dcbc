package export

import (
	"fmt"
	"io"
	"strings"
)

// Point is a position in the drawing plane.
type Point struct{ X, Y float64 }

// PathSVG draws points as one polyline scaled to fit a width by height
// image, with target marked when non-nil. Y grows upward.
func PathSVG(w io.Writer, points []Point, target *Point, width, height int, stroke string) error {
	if len(points) < 2 {
		return fmt.Errorf("path needs at least 2 points, got %d", len(points))
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	extend := func(p Point) {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	for _, p := range points {
		extend(p)
	}
	if target != nil {
		extend(*target)
	}

	// Equal scale on both axes so the path is not distorted.
	span := max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	pad := span * 0.1
	minX -= pad
	minY -= pad
	span += 2 * pad
	scale := float64(min(width, height)) / span
	px := func(p Point) (float64, float64) {
		return (p.X - minX) * scale, float64(height) - (p.Y-minY)*scale
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`, width, height, width, height, stroke)
	for i, p := range points {
		x, y := px(p)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")

	x, y := px(points[0])
	fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"3\" fill=\"#888888\"/>\n", x, y)
	if target != nil {
		x, y = px(*target)
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"4\" fill=\"none\" stroke=\"#ff5555\"/>\n", x, y)
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
