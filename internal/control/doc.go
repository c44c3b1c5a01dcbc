// Package control turns sensor readings from an arm into joint torques.
//
// [Controller] is a prioritized operational-space controller. It owns an
// internal model of the arm, refreshes it from [Sensors] on every call,
// and combines three objectives in priority order:
//
//   - reaching: PD tracking of a target point by the end effector
//   - gravity compensation, projected into the reaching null space
//   - joint damping, projected the same way
//
// An optional secondary reaching task on the forearm sits between the
// first two. Objectives can be switched on and off while running; the
// change applies on the next call.
//
// # Usage
//
//	ctrl, err := control.NewController(arm, control.DefaultSettings(arm))
//	tau, err := ctrl.Torque(plant) // once per control tick
//
// Controllers implement [dynamo.Configurable] for live tuning. [None]
// always commands zero torque and serves as a baseline.
package control
