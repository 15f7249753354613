// Package scaler turns robot-independent task intentions into
// robot-specific joint-space parameters that stay within the robot's
// derated limits.
//
// A [TaskIntention] states motion intensity as percentages ("80 % of
// maximum acceleration"). [Scaler.Scale] maps those percentages onto the
// chosen robot's own velocity and acceleration limits, asks the dynamics
// solver for the required torque, and checks torque, velocity and
// acceleration together. An infeasible candidate is shrunk by one uniform
// factor applied to the whole motion profile:
//
//  1. the first correction is the checker's 1/max(ratio)
//  2. while the re-check still fails, the gravity torque is held fixed and
//     the remaining torque is treated as linear in the factor, which puts
//     the worst joint back on its limit
//
// At most [DefaultMaxRefinements] passes are tried (see
// [WithMaxRefinements]) before a [*StillInfeasibleError] carrying the last
// verdict is returned. A posture that cannot be held against gravity fails
// at once, since no motion scale can fix it.
//
//	store := robot.NewDefaultStore()
//	s := scaler.New(store, scaler.WithLogger(logger))
//	in, _ := scaler.NewTaskIntention(scaler.TaskPick, map[string]float64{"accel_percent": 80})
//	params, err := s.Scale("Robot_A", in, scaler.DefaultSafetyMargin)
//
// # Thread Safety
//
// A Scaler keeps no per-call state. Robot models are shared read-only, so
// any number of evaluations may run at once; [Scaler.ScaleBatch],
// [Scaler.Compare] and [Scaler.Sweep] fan out over an errgroup.
package scaler
