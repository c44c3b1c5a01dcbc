package models

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/multibody"
	"gonum.org/v1/gonum/spatial/r3"
)

// Link is one body of an arm, attached to Parent (empty for ground) by
// Joint at Offset in the parent frame.
type Link struct {
	Name   string
	Parent string
	Joint  multibody.Mobilizer
	Offset r3.Vec
	Mass   multibody.MassProperties
}

// Point names a location fixed on a link.
type Point struct {
	Link  string
	Local r3.Vec
}

// Arm describes an actuated serial mechanism with a motor on every joint.
type Arm struct {
	Name         string
	Description  string
	Links        []Link
	EndEffector  Point
	Forearm      Point
	TorqueLimits []float64
	HomeQ        []float64

	// Target and ForearmTarget are sensible default goals in ground.
	Target        r3.Vec
	ForearmTarget r3.Vec
}

// NumCoords counts the arm's joint coordinates.
func (a *Arm) NumCoords() int {
	n := 0
	for _, l := range a.Links {
		n += l.Joint.NumQ()
	}
	return n
}

// Build creates a fresh body tree for the arm with every link mass and
// inertia multiplied by massScale.
func (a *Arm) Build(massScale float64) (*multibody.Tree, error) {
	if massScale <= 0 || math.IsNaN(massScale) || math.IsInf(massScale, 0) {
		return nil, fmt.Errorf("build %s: mass scale %g: %w", a.Name, massScale, dynamo.ErrParameterBounds)
	}
	if len(a.TorqueLimits) != a.NumCoords() {
		return nil, fmt.Errorf("build %s: %d torque limits for %d coordinates: %w",
			a.Name, len(a.TorqueLimits), a.NumCoords(), dynamo.ErrDimensionMismatch)
	}

	tree := multibody.NewTree()
	for _, l := range a.Links {
		parent := multibody.Ground
		if l.Parent != "" {
			p, err := tree.FindBody(l.Parent)
			if err != nil {
				return nil, fmt.Errorf("build %s: link %s: %w", a.Name, l.Name, err)
			}
			parent = p
		}
		mp := l.Mass
		mp.Mass *= massScale
		mp.Inertia = mp.Inertia.Scale(massScale)
		if _, err := tree.AddBody(l.Name, parent, l.Joint, multibody.Translation(l.Offset), mp); err != nil {
			return nil, fmt.Errorf("build %s: %w", a.Name, err)
		}
	}
	return tree, nil
}

// Station resolves p against a tree built from this arm.
func (a *Arm) Station(t *multibody.Tree, p Point) (multibody.Station, error) {
	b, err := t.FindBody(p.Link)
	if err != nil {
		return multibody.Station{}, fmt.Errorf("%s: %w", a.Name, err)
	}
	return multibody.Station{Body: b, Point: p.Local}, nil
}

// ClampToLimits saturates tau in place and returns how many joints hit
// their limit.
func (a *Arm) ClampToLimits(tau []float64) int {
	return ClampToLimits(tau, a.TorqueLimits)
}

// ClampToLimits saturates each tau[i] to ±limits[i].
func ClampToLimits(tau, limits []float64) int {
	saturated := 0
	for i := range tau {
		if i >= len(limits) {
			break
		}
		lim := limits[i]
		switch {
		case tau[i] > lim:
			tau[i] = lim
			saturated++
		case tau[i] < -lim:
			tau[i] = -lim
			saturated++
		}
	}
	return saturated
}

var registry = map[string]func() *Arm{
	"pendulum": NewPendulum,
	"two-link": NewTwoLinkArm,
	"spatial4": NewSpatialArm,
	"ur10":     NewUR10,
}

// Lookup returns a new instance of the named arm.
func Lookup(name string) (*Arm, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %v)", name, Names())
	}
	return f(), nil
}

// Names lists the registered arms in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
