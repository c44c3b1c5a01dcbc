package multibody

import (
	"fmt"
)

// Tree is the static description of a mechanism: bodies, their parents, and
// the coordinates their mobilizers contribute. Bodies are added parent
// first, so body order is a valid root-to-leaf traversal.
type Tree struct {
	bodies   []Body
	children [][]BodyIndex
	nq       int
	sealed   bool
}

// NewTree returns a tree containing only Ground.
func NewTree() *Tree {
	return &Tree{
		bodies:   []Body{{Name: "ground", Parent: -1, Inboard: IdentityTransform()}},
		children: [][]BodyIndex{nil},
	}
}

// AddBody attaches a new body to parent and returns its index.
func (t *Tree) AddBody(name string, parent BodyIndex, mob Mobilizer, inboard Transform, mp MassProperties) (BodyIndex, error) {
	if t.sealed {
		return -1, fmt.Errorf("add body %q: %w", name, ErrTreeSealed)
	}
	if parent < 0 || int(parent) >= len(t.bodies) {
		return -1, fmt.Errorf("add body %q: parent %d: %w", name, parent, ErrUnknownBody)
	}
	if mp.Mass < 0 {
		return -1, fmt.Errorf("add body %q: negative mass %g", name, mp.Mass)
	}
	if mob.Kind != Weld && nearlyZero(mob.Axis) {
		return -1, fmt.Errorf("add body %q: %s mobilizer needs a non-zero axis", name, mob.Kind)
	}

	idx := BodyIndex(len(t.bodies))
	t.bodies = append(t.bodies, Body{
		Name:      name,
		Parent:    parent,
		Mobilizer: mob,
		Inboard:   inboard,
		Mass:      mp,
		firstQ:    t.nq,
	})
	t.children = append(t.children, nil)
	t.children[parent] = append(t.children[parent], idx)
	t.nq += mob.NumQ()
	return idx, nil
}

func (t *Tree) NumBodies() int { return len(t.bodies) }
func (t *Tree) NumQ() int      { return t.nq }

// Body returns a copy of the body at i.
func (t *Tree) Body(i BodyIndex) (Body, error) {
	if i < 0 || int(i) >= len(t.bodies) {
		return Body{}, fmt.Errorf("body %d: %w", i, ErrUnknownBody)
	}
	return t.bodies[i], nil
}

// Children returns the direct children of body i.
func (t *Tree) Children(i BodyIndex) []BodyIndex {
	if i < 0 || int(i) >= len(t.children) {
		return nil
	}
	return t.children[i]
}

// FindBody returns the index of the body with the given name.
func (t *Tree) FindBody(name string) (BodyIndex, error) {
	for i, b := range t.bodies {
		if b.Name == name {
			return BodyIndex(i), nil
		}
	}
	return -1, fmt.Errorf("body %q: %w", name, ErrUnknownBody)
}

func (t *Tree) validBody(i BodyIndex) error {
	if i < 0 || int(i) >= len(t.bodies) {
		return fmt.Errorf("body %d: %w", i, ErrUnknownBody)
	}
	return nil
}

// topology is the Topology-stage cache: for every body, the coordinates that
// can move it (its own and all its ancestors'), in increasing order, and the
// coordinate-to-body map.
type topology struct {
	support  [][]int
	coordOf  []BodyIndex
	maxDepth int
}

func (t *Tree) buildTopology() *topology {
	top := &topology{
		support: make([][]int, len(t.bodies)),
		coordOf: make([]BodyIndex, t.nq),
	}
	for i := 1; i < len(t.bodies); i++ {
		b := t.bodies[i]
		parentSupport := top.support[b.Parent]
		own := make([]int, 0, len(parentSupport)+b.NumQ())
		own = append(own, parentSupport...)
		for k := 0; k < b.NumQ(); k++ {
			own = append(own, b.firstQ+k)
			top.coordOf[b.firstQ+k] = BodyIndex(i)
		}
		top.support[i] = own
		if len(own) > top.maxDepth {
			top.maxDepth = len(own)
		}
	}
	return top
}
