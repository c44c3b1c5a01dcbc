// Package integrators advances a dynamo.System over one control tick with
// the control input held constant.
package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/taskctl/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"euler":         func() dynamo.Integrator { return NewEuler() },
	"semi-implicit": func() dynamo.Integrator { return NewSemiImplicitEuler() },
	"rk4":           func() dynamo.Integrator { return NewRK4() },
	"adaptive":      func() dynamo.Integrator { return NewAdaptive(DefaultAccuracy) },
}

// New returns a fresh integrator by name.
func New(name string) (dynamo.Integrator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator %q (available: %v)", name, Names())
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// axpy sets dst = x + a·k.
func axpy(dst, x dynamo.State, a float64, k dynamo.State) {
	for i := range dst {
		dst[i] = x[i] + a*k[i]
	}
}
