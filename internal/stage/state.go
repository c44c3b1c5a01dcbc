package stage

import (
	"fmt"

	"github.com/san-kum/taskctl/internal/dynamo"
)

// entry is the type-erased view of an Entry that State iterates over.
type entry interface {
	dependsOn() Stage
	lazy() bool
	invalidate()
	realize() error
}

// State holds the mutable variables of a mechanism together with every
// cache entry computed from them.
type State struct {
	q []float64
	u []float64
	t float64

	realized  Stage
	realizing Stage
	entries   []entry
}

// NewState allocates a State with nq generalized coordinates and nu
// generalized velocities, all zero. Nothing is realized.
func NewState(nq, nu int) *State {
	return &State{
		q:         make([]float64, nq),
		u:         make([]float64, nu),
		realized:  Empty,
		realizing: Empty,
	}
}

func (s *State) NQ() int { return len(s.q) }
func (s *State) NU() int { return len(s.u) }

// Q returns the generalized coordinates. The slice is owned by the State and
// must not be modified; use SetQ.
func (s *State) Q() []float64 { return s.q }

// U returns the generalized velocities. The slice is owned by the State and
// must not be modified; use SetU.
func (s *State) U() []float64 { return s.u }

func (s *State) Time() float64 { return s.t }

// Realized returns the highest stage for which every entry is valid.
func (s *State) Realized() Stage { return s.realized }

// SetQ overwrites all coordinates and invalidates Position and above.
func (s *State) SetQ(q []float64) error {
	if len(q) != len(s.q) {
		return fmt.Errorf("set q: got %d values for %d coordinates: %w", len(q), len(s.q), dynamo.ErrDimensionMismatch)
	}
	copy(s.q, q)
	s.Invalidate(Position)
	return nil
}

// SetU overwrites all velocities and invalidates Velocity and above.
func (s *State) SetU(u []float64) error {
	if len(u) != len(s.u) {
		return fmt.Errorf("set u: got %d values for %d velocities: %w", len(u), len(s.u), dynamo.ErrDimensionMismatch)
	}
	copy(s.u, u)
	s.Invalidate(Velocity)
	return nil
}

// SetQi sets a single coordinate.
func (s *State) SetQi(i int, v float64) error {
	if i < 0 || i >= len(s.q) {
		return fmt.Errorf("set q[%d] of %d: %w", i, len(s.q), dynamo.ErrDimensionMismatch)
	}
	s.q[i] = v
	s.Invalidate(Position)
	return nil
}

// SetUi sets a single velocity.
func (s *State) SetUi(i int, v float64) error {
	if i < 0 || i >= len(s.u) {
		return fmt.Errorf("set u[%d] of %d: %w", i, len(s.u), dynamo.ErrDimensionMismatch)
	}
	s.u[i] = v
	s.Invalidate(Velocity)
	return nil
}

// SetTime sets the time variable and invalidates Time and above.
func (s *State) SetTime(t float64) {
	s.t = t
	s.Invalidate(Time)
}

// Invalidate clears every entry whose depends-on stage is at or above from
// and lowers the realized stage accordingly.
func (s *State) Invalidate(from Stage) {
	if from <= Empty {
		from = Topology
	}
	for _, e := range s.entries {
		if e.dependsOn() >= from {
			e.invalidate()
		}
	}
	if s.realized >= from {
		s.realized = from - 1
	}
}

// Realize computes every eager entry that depends on stg. All lower stages
// must already be realized. Realizing a stage that is already realized does
// nothing.
func (s *State) Realize(stg Stage) error {
	if !stg.Valid() || stg == Empty {
		return &StageError{Op: "realize", Want: stg, Have: s.realized, Wrapped: ErrInvalidStage}
	}
	if stg <= s.realized {
		return nil
	}
	if stg != s.realized+1 {
		return &StageError{Op: "realize", Want: stg - 1, Have: s.realized, Wrapped: ErrStageViolation}
	}

	s.realizing = stg
	defer func() { s.realizing = Empty }()

	for _, e := range s.entries {
		if e.dependsOn() != stg || e.lazy() {
			continue
		}
		if err := e.realize(); err != nil {
			return fmt.Errorf("realize %s: %w", stg, err)
		}
	}
	s.realized = stg
	return nil
}

// RealizeThrough realizes every stage from the current one up to stg.
func (s *State) RealizeThrough(stg Stage) error {
	for next := s.realized + 1; next <= stg; next++ {
		if err := s.Realize(next); err != nil {
			return err
		}
	}
	return nil
}

// computable reports whether an entry depending on stg may be evaluated now.
func (s *State) computable(stg Stage) bool {
	return stg <= s.realized || (s.realizing != Empty && stg == s.realizing)
}
