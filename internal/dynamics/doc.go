// Package dynamics computes the joint torques a motion requires.
//
// [Engine.RequiredTorque] runs the two-pass recursive Newton-Euler
// algorithm over a [robot.Model]:
//
//   - outward pass (base → tip): each link's angular velocity, angular
//     acceleration and linear acceleration are propagated from its parent;
//     gravity enters as a fictitious upward acceleration of the base
//   - inward pass (tip → base): the force and moment each link needs are
//     accumulated back towards the base, and the component of the moment
//     along each joint axis is that joint's torque
//
// Both passes are linear in the joint count.
//
//	eng := dynamics.New()
//	tau, err := eng.RequiredTorque(model, state)
//
// With zero velocity and acceleration the result is the pure gravity
// compensation torque; see [Engine.GravityTorque].
//
// # Thread Safety
//
// An Engine holds only its gravity vector. All working storage is per call,
// so one Engine may serve any number of goroutines.
package dynamics
