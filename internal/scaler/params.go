package scaler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/feasibility"
)

// Version tags the robot-specific output format.
const Version = "v2"

// TaskParameters is the robot-specific result of a scaling call. It is
// created once per call and not modified afterwards.
type TaskParameters struct {
	ID      uuid.UUID `json:"id"`
	Version string    `json:"tdl_version"`
	Task    TaskKind  `json:"task"`
	RobotID string    `json:"robot_id"`
	Targets []Target  `json:"targets,omitempty"`

	Posture      dynamo.Vector `json:"posture"`
	Velocity     dynamo.Vector `json:"velocity"`
	Acceleration dynamo.Vector `json:"acceleration"`
	// Torque is the required torque of the emitted profile.
	Torque dynamo.Vector `json:"torque"`

	ScaleFactor float64 `json:"scale_factor"`
	// Feasible reports whether the unscaled candidate was already within
	// limits. The emitted profile always is.
	Feasible    bool    `json:"feasible"`
	Scaled      bool    `json:"scaled"`
	Refinements int     `json:"refinements"`
	Margin      float64 `json:"safety_margin"`
	Approximate bool    `json:"approximate"`

	OriginalPercent  map[Param]float64 `json:"original_percent"`
	EffectivePercent map[Param]float64 `json:"effective_percent"`

	Initial feasibility.Verdict `json:"initial_report"`
	Report  feasibility.Verdict `json:"report"`
}

// Profile returns the emitted joint-space profile.
func (p *TaskParameters) Profile() dynamo.JointState {
	return dynamo.JointState{
		Position:     p.Posture.Clone(),
		Velocity:     p.Velocity.Clone(),
		Acceleration: p.Acceleration.Clone(),
	}
}

// StillInfeasibleError is returned when the refinement bound is reached, or
// when holding the posture against gravity alone already breaks a limit.
// Verdict is the last one computed.
type StillInfeasibleError struct {
	RobotID string
	Passes  int
	Scale   float64
	Verdict feasibility.Verdict
	// Static is set when gravity alone exceeds the derated limit, so no
	// motion scale can help.
	Static bool
}

func (e *StillInfeasibleError) Error() string {
	if e.Static {
		return fmt.Sprintf("%s: robot %q cannot hold the posture (joints %v, max ratio %.3f)",
			dynamo.ErrStillInfeasible, e.RobotID, e.Verdict.Exceeded, e.Verdict.MaxRatio)
	}
	return fmt.Sprintf("%s: robot %q after %d passes at scale %.4f (joints %v, max ratio %.3f)",
		dynamo.ErrStillInfeasible, e.RobotID, e.Passes, e.Scale, e.Verdict.Exceeded, e.Verdict.MaxRatio)
}

func (e *StillInfeasibleError) Unwrap() error {
	return dynamo.ErrStillInfeasible
}
