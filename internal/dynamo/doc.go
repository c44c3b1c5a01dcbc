// Package dynamo provides the shared primitives of the taskctl control lab.
//
// The package defines the small vocabulary every other package speaks:
//
//   - [State]: flat state vector, for a mechanism x = [q; u]
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Metric] and [Observer]: per-step instrumentation
//   - the error taxonomy shared by the model and the controller
//
// # Errors
//
// Every failure the core can raise is one of the sentinel errors below,
// possibly wrapped. [Classify] tells the control loop whether it may carry
// on ([Recoverable]) or must halt ([Fatal]).
//
// # Thread Safety
//
// Nothing here is synchronized except [ParallelFor], which only partitions
// an index range; callers must ensure the partitions touch disjoint memory.
package dynamo
