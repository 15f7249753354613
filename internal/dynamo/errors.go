package dynamo

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for feasibility evaluation.
var (
	// ErrUnknownRobot indicates a robot id no provider can resolve.
	ErrUnknownRobot = errors.New("dynamo: unknown robot")

	// ErrDimensionMismatch indicates a joint vector whose length differs from the model dof.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between joint vector and model")

	// ErrInvalidMargin indicates a safety margin outside (0, 1].
	ErrInvalidMargin = errors.New("dynamo: safety margin outside (0, 1]")

	// ErrStillInfeasible indicates the rescale refinement did not reach a feasible profile.
	ErrStillInfeasible = errors.New("dynamo: motion still infeasible after scale refinement")

	// ErrInvalidModel indicates a robot model violating its structural invariants.
	ErrInvalidModel = errors.New("dynamo: invalid robot model")

	// ErrInvalidIntention indicates a task intention rejected at the boundary.
	ErrInvalidIntention = errors.New("dynamo: invalid task intention")

	// ErrInvalidState indicates a joint state with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid joint state (NaN or Inf detected)")

	// ErrUnsupportedJoint indicates a joint type the dynamics engine cannot model.
	ErrUnsupportedJoint = errors.New("dynamo: unsupported joint type")
)

// UnknownRobotError reports the id that failed to resolve and what was available.
type UnknownRobotError struct {
	RobotID   string
	Available []string
}

func (e *UnknownRobotError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s: %q", ErrUnknownRobot, e.RobotID)
	}
	return fmt.Sprintf("%s: %q (available: %s)", ErrUnknownRobot, e.RobotID, strings.Join(e.Available, ", "))
}

func (e *UnknownRobotError) Unwrap() error {
	return ErrUnknownRobot
}

// DimensionMismatchError names the offending vector and both lengths.
type DimensionMismatchError struct {
	Field string
	Want  int
	Got   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %s has length %d, want %d", ErrDimensionMismatch, e.Field, e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

// InvalidMarginError carries the rejected margin.
type InvalidMarginError struct {
	Margin float64
}

func (e *InvalidMarginError) Error() string {
	return fmt.Sprintf("%s: got %g", ErrInvalidMargin, e.Margin)
}

func (e *InvalidMarginError) Unwrap() error {
	return ErrInvalidMargin
}

// ValidateMargin returns an *InvalidMarginError unless 0 < margin <= 1.
func ValidateMargin(margin float64) error {
	if !(margin > 0 && margin <= 1) {
		return &InvalidMarginError{Margin: margin}
	}
	return nil
}

// CheckDim returns a *DimensionMismatchError when len(v) != want.
func CheckDim(field string, v Vector, want int) error {
	if len(v) != want {
		return &DimensionMismatchError{Field: field, Want: want, Got: len(v)}
	}
	return nil
}
