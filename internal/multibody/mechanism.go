package multibody

import (
	"fmt"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// StandardGravity points down the ground z axis.
var StandardGravity = r3.Vec{Z: -9.80665}

// DefaultMassRegularization is added to the diagonal of M when M cannot be
// factorized as it stands.
const DefaultMassRegularization = 1e-6

// Mechanism binds a sealed Tree to one stage.State and the cache entries
// that the tree's kinematics and dynamics are computed into. A Mechanism
// must not be shared between goroutines.
type Mechanism struct {
	tree    *Tree
	state   *stage.State
	gravity *stage.Variable[r3.Vec]
	massEps *stage.Variable[float64]

	massRegularizations int

	topo      *stage.Entry[*topology]
	model     *stage.Entry[*modelCache]
	pos       *stage.Entry[*positionCache]
	vel       *stage.Entry[*velocityCache]
	composite *stage.Entry[[]SpatialInertia]
	mass      *stage.Entry[*mat.SymDense]
	chol      *stage.Entry[*mat.Cholesky]
	gravTau   *stage.Entry[*mat.VecDense]
	biasTau   *stage.Entry[*mat.VecDense]
}

// NewMechanism seals t and allocates a fresh state with every coordinate at
// zero. The state is realized through Model before returning.
func NewMechanism(t *Tree, gravity r3.Vec) (*Mechanism, error) {
	if t.NumQ() == 0 {
		return nil, fmt.Errorf("new mechanism: tree has no coordinates: %w", dynamo.ErrDimensionMismatch)
	}
	t.sealed = true

	st := stage.NewState(t.NumQ(), t.NumQ())
	m := &Mechanism{
		tree:    t,
		state:   st,
		gravity: stage.AddVariable(st, stage.Model, gravity),
		massEps: stage.AddVariable(st, stage.Velocity, DefaultMassRegularization),
	}

	var err error
	m.topo = register(st, &err, stage.Topology, "topology", func(*stage.State) (*topology, error) {
		return t.buildTopology(), nil
	})
	m.model = register(st, &err, stage.Model, "model", m.calcModel)
	m.pos = register(st, &err, stage.Position, "body positions", m.calcPositions)
	m.vel = register(st, &err, stage.Velocity, "body velocities", m.calcVelocities)
	m.composite = register(st, &err, stage.Velocity, "composite inertias", m.calcCompositeInertias)
	m.mass = register(st, &err, stage.Velocity, "mass matrix", m.calcMassMatrix)
	m.chol = register(st, &err, stage.Velocity, "mass matrix factorization", m.calcMassFactorization, stage.Lazy())
	m.gravTau = register(st, &err, stage.Velocity, "gravity torque", m.calcGravityTorque)
	m.biasTau = register(st, &err, stage.Velocity, "bias torque", m.calcBiasTorque)
	if err != nil {
		return nil, err
	}

	if err := st.RealizeThrough(stage.Model); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T any](st *stage.State, errp *error, stg stage.Stage, name string, fn func(*stage.State) (T, error), opts ...stage.Option) *stage.Entry[T] {
	if *errp != nil {
		return nil
	}
	e, err := stage.Register[T](st, stage.Func[T]{Stage: stg, Fn: fn}, append(opts, stage.Named(name))...)
	*errp = err
	return e
}

func (m *Mechanism) Tree() *Tree            { return m.tree }
func (m *Mechanism) State() *stage.State    { return m.state }
func (m *Mechanism) NumQ() int              { return m.tree.NumQ() }
func (m *Mechanism) Gravity() r3.Vec        { return m.gravity.Get() }
func (m *Mechanism) SetGravity(g r3.Vec)    { m.gravity.Set(g) }
func (m *Mechanism) SetQ(q []float64) error { return m.state.SetQ(q) }
func (m *Mechanism) SetU(u []float64) error { return m.state.SetU(u) }

// SetMassRegularization sets ε, the diagonal shift tried when M is not
// positive definite. Zero disables it, so a singular M is reported as a
// numerical failure instead.
func (m *Mechanism) SetMassRegularization(eps float64) error {
	if !(eps >= 0) {
		return fmt.Errorf("mass regularization %g: %w", eps, dynamo.ErrParameterBounds)
	}
	m.massEps.Set(eps)
	return nil
}

func (m *Mechanism) MassRegularization() float64 { return m.massEps.Get() }

// MassRegularizations counts factorizations that needed the ε shift.
func (m *Mechanism) MassRegularizations() int { return m.massRegularizations }

// Realize brings the state up through stg.
func (m *Mechanism) Realize(stg stage.Stage) error {
	return m.state.RealizeThrough(stg)
}

// Entries exposes the recompute counters of the built-in cache entries,
// keyed by entry name.
func (m *Mechanism) Entries() map[string]interface{ Computations() int } {
	return map[string]interface{ Computations() int }{
		m.topo.Name():      m.topo,
		m.model.Name():     m.model,
		m.pos.Name():       m.pos,
		m.vel.Name():       m.vel,
		m.composite.Name(): m.composite,
		m.mass.Name():      m.mass,
		m.chol.Name():      m.chol,
		m.gravTau.Name():   m.gravTau,
		m.biasTau.Name():   m.biasTau,
	}
}

type modelCache struct {
	gravity   r3.Vec
	totalMass float64
}

func (m *Mechanism) calcModel(*stage.State) (*modelCache, error) {
	mc := &modelCache{gravity: m.gravity.Get()}
	for _, b := range m.tree.bodies {
		mc.totalMass += b.Mass.Mass
	}
	return mc, nil
}

// TotalMass returns the summed body mass. Requires Model.
func (m *Mechanism) TotalMass() (float64, error) {
	mc, err := m.model.Get()
	if err != nil {
		return 0, err
	}
	return mc.totalMass, nil
}
