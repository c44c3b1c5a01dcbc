// Package stage implements the realization-stage cache that every dynamics
// query in taskctl is built on.
//
// A [State] owns the generalized coordinates Q, generalized velocities U,
// time, and any number of typed cache entries. Each entry depends on exactly
// one [Stage]; it can be computed only once every lower stage is realized:
//
//	Empty < Topology < Model < Instance < Time < Position < Velocity < Dynamics < Acceleration
//
// Writing Q invalidates Position and everything above it, writing U
// invalidates Velocity and above. A valid entry is never recomputed.
//
// # Example
//
//	st := stage.NewState(2, 2)
//	ke, _ := stage.Register[float64](st, stage.Func[float64]{
//		Stage: stage.Velocity,
//		Fn:    func(s *stage.State) (float64, error) { return kinetic(s.U()), nil },
//	})
//	_ = st.RealizeThrough(stage.Velocity)
//	v, err := ke.Get()
//
// # Thread Safety
//
// A State is NOT safe for concurrent use. Realization mutates cache validity
// in place; each goroutine needs its own State.
package stage
