package stage

import "fmt"

// Stage is a totally ordered realization level.
type Stage int

const (
	Empty Stage = iota
	Topology
	Model
	Instance
	Time
	Position
	Velocity
	Dynamics
	Acceleration
)

var stageNames = [...]string{
	Empty:        "Empty",
	Topology:     "Topology",
	Model:        "Model",
	Instance:     "Instance",
	Time:         "Time",
	Position:     "Position",
	Velocity:     "Velocity",
	Dynamics:     "Dynamics",
	Acceleration: "Acceleration",
}

func (s Stage) String() string {
	if s.Valid() {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Valid reports whether s is one of the declared stages.
func (s Stage) Valid() bool {
	return s >= Empty && s <= Acceleration
}

// Next returns the stage after s, saturating at Acceleration.
func (s Stage) Next() Stage {
	if s >= Acceleration {
		return Acceleration
	}
	return s + 1
}

// Prev returns the stage before s, saturating at Empty.
func (s Stage) Prev() Stage {
	if s <= Empty {
		return Empty
	}
	return s - 1
}
