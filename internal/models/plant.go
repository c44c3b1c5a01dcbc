package models

import (
	"fmt"
	"math"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/multibody"
	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plant is the simulated "real" arm. Its state is x = [q; u] and its
// dynamics are the arm's forward dynamics under the applied joint torque.
// Its masses may differ from the arm description by MassScale so that a
// controller's internal model does not match it exactly.
type Plant struct {
	arm       *Arm
	mech      *multibody.Mechanism
	ee        multibody.Station
	massScale float64
	n         int
	x         dynamo.State
}

// NewPlant builds the plant for arm. A massScale of 1 reproduces the arm
// exactly.
func NewPlant(arm *Arm, massScale float64) (*Plant, error) {
	tree, err := arm.Build(massScale)
	if err != nil {
		return nil, err
	}
	mech, err := multibody.NewMechanism(tree, multibody.StandardGravity)
	if err != nil {
		return nil, err
	}
	ee, err := arm.Station(tree, arm.EndEffector)
	if err != nil {
		return nil, err
	}
	p := &Plant{
		arm:       arm,
		mech:      mech,
		ee:        ee,
		massScale: massScale,
		n:         mech.NumQ(),
	}
	p.x = p.InitialState()
	return p, nil
}

func (p *Plant) Arm() *Arm                       { return p.arm }
func (p *Plant) Mechanism() *multibody.Mechanism { return p.mech }
func (p *Plant) MassScale() float64              { return p.massScale }
func (p *Plant) StateDim() int                   { return 2 * p.n }
func (p *Plant) ControlDim() int                 { return p.n }
func (p *Plant) NumCoords() int                  { return p.n }

// InitialState is the arm's home pose at rest.
func (p *Plant) InitialState() dynamo.State {
	x := make(dynamo.State, 2*p.n)
	copy(x, p.arm.HomeQ)
	return x
}

// State returns a copy of the current plant state.
func (p *Plant) State() dynamo.State { return p.x.Clone() }

// SetState replaces the plant state that the sensors report.
func (p *Plant) SetState(x dynamo.State) error {
	if len(x) != 2*p.n {
		return fmt.Errorf("plant %s: state of length %d, want %d: %w", p.arm.Name, len(x), 2*p.n, dynamo.ErrDimensionMismatch)
	}
	if !x.IsValid() {
		return fmt.Errorf("plant %s: %w", p.arm.Name, dynamo.ErrInvalidState)
	}
	p.x = x.Clone()
	return nil
}

func (p *Plant) load(x dynamo.State, through stage.Stage) error {
	if len(x) != 2*p.n {
		return fmt.Errorf("plant %s: state of length %d, want %d: %w", p.arm.Name, len(x), 2*p.n, dynamo.ErrDimensionMismatch)
	}
	if err := p.mech.SetQ(x[:p.n]); err != nil {
		return err
	}
	if err := p.mech.SetU(x[p.n:]); err != nil {
		return err
	}
	return p.mech.Realize(through)
}

// Derive returns ẋ = [u; u̇]. A state the mechanism cannot be evaluated
// at yields NaN so the simulator's state check stops the run.
func (p *Plant) Derive(x dynamo.State, tau dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, 2*p.n)
	torque := make([]float64, p.n)
	copy(torque, tau)

	if err := p.load(x, stage.Velocity); err != nil {
		return nanState(dx)
	}
	udot, err := p.mech.CalcForwardDynamics(torque)
	if err != nil {
		return nanState(dx)
	}
	copy(dx, x[p.n:])
	copy(dx[p.n:], udot)
	return dx
}

// Energy is kinetic plus gravitational potential energy.
func (p *Plant) Energy(x dynamo.State) float64 {
	if err := p.load(x, stage.Velocity); err != nil {
		return math.NaN()
	}
	ke, err := p.mech.KineticEnergy()
	if err != nil {
		return math.NaN()
	}
	pe, err := p.mech.PotentialEnergy()
	if err != nil {
		return math.NaN()
	}
	return ke + pe
}

// SenseJointAngle reads coordinate i of the current state.
func (p *Plant) SenseJointAngle(i int) (float64, error) {
	return p.sense("joint angle", i, 0)
}

// SenseJointRate reads velocity i of the current state.
func (p *Plant) SenseJointRate(i int) (float64, error) {
	return p.sense("joint rate", i, p.n)
}

func (p *Plant) sense(what string, i, offset int) (float64, error) {
	if i < 0 || i >= p.n {
		return 0, fmt.Errorf("plant %s: %s %d of %d: %w", p.arm.Name, what, i, p.n, dynamo.ErrSensorRead)
	}
	v := p.x[offset+i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("plant %s: %s %d is %g: %w", p.arm.Name, what, i, v, dynamo.ErrSensorRead)
	}
	return v, nil
}

// SenseEndEffectorPosition returns where the real end effector is.
func (p *Plant) SenseEndEffectorPosition() (r3.Vec, error) {
	pos, err := p.EndEffectorAt(p.x)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("plant %s: end effector: %v: %w", p.arm.Name, err, dynamo.ErrSensorRead)
	}
	return pos, nil
}

// EndEffectorAt returns the end effector location in state x.
func (p *Plant) EndEffectorAt(x dynamo.State) (r3.Vec, error) {
	if err := p.load(x, stage.Position); err != nil {
		return r3.Vec{}, err
	}
	return p.mech.FindStationLocation(p.ee)
}

// Segment is a straight piece of the arm drawn between two ground points.
type Segment struct{ From, To r3.Vec }

// Skeleton returns one segment per link, from its parent's frame origin to
// its own, followed by the segment from the last link to the end effector.
func (p *Plant) Skeleton(x dynamo.State) ([]Segment, error) {
	if err := p.load(x, stage.Position); err != nil {
		return nil, err
	}
	tree := p.mech.Tree()
	origin := func(b multibody.BodyIndex) (r3.Vec, error) {
		if b == multibody.Ground {
			return r3.Vec{}, nil
		}
		xf, err := p.mech.BodyTransform(b)
		return xf.P, err
	}
	segs := make([]Segment, 0, tree.NumBodies())
	for b := multibody.BodyIndex(1); int(b) < tree.NumBodies(); b++ {
		body, err := tree.Body(b)
		if err != nil {
			return nil, err
		}
		from, err := origin(body.Parent)
		if err != nil {
			return nil, err
		}
		to, err := origin(b)
		if err != nil {
			return nil, err
		}
		segs = append(segs, Segment{From: from, To: to})
	}
	from, err := origin(p.ee.Body)
	if err != nil {
		return nil, err
	}
	to, err := p.mech.FindStationLocation(p.ee)
	if err != nil {
		return nil, err
	}
	return append(segs, Segment{From: from, To: to}), nil
}

func nanState(x dynamo.State) dynamo.State {
	for i := range x {
		x[i] = math.NaN()
	}
	return x
}
