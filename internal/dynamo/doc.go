// Package dynamo provides the shared primitives of the torque feasibility core.
//
// The package defines the value types passed between the other packages:
//
//   - [Vector]: per-joint ordered sequence (torques, limits, ratios)
//   - [JointState]: position, velocity and acceleration of every joint
//
// and the error taxonomy every layer reports through:
//
//   - [ErrUnknownRobot]: robot id absent from the store
//   - [ErrDimensionMismatch]: joint vector length differs from the model dof
//   - [ErrInvalidMargin]: safety margin outside (0, 1]
//   - [ErrStillInfeasible]: bounded rescale refinement did not converge
//
// Structured error types ([UnknownRobotError], [DimensionMismatchError],
// [InvalidMarginError]) unwrap to the sentinels, so callers match with
// errors.Is and read the context with errors.As.
//
// # Thread Safety
//
// All types are values. A [JointState] is owned by whoever built it; methods
// that transform it return fresh copies.
package dynamo
