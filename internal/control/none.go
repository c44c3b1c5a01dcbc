package control

// None commands zero torque on every joint.
type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Torque(s Sensors) ([]float64, error) {
	return make([]float64, n.dim), nil
}
