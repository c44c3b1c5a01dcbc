// Package taskspace computes operational-space operators for a set of
// station tasks that share one priority level: the task Jacobian, the
// task-space inertia Λ, the bias and gravity forces μ and p, and the
// null-space projector N. Every operator is a lazy Velocity-stage cache
// entry on the mechanism's state, so it is computed at most once per
// realized state.
package taskspace
