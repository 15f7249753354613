package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector is an ordered per-joint sequence in consistent SI units.
type Vector []float64

func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) Len() int { return len(v) }

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Scale(factor float64) Vector {
	result := v.Clone()
	floats.Scale(factor, result)
	return result
}

func (v Vector) Abs() Vector {
	result := make(Vector, len(v))
	for i, x := range v {
		result[i] = math.Abs(x)
	}
	return result
}

// Max returns the largest entry and its index, or (0, -1) for an empty vector.
func (v Vector) Max() (float64, int) {
	if len(v) == 0 {
		return 0, -1
	}
	idx := floats.MaxIdx(v)
	return v[idx], idx
}

// Zeros returns a zero vector of length n.
func Zeros(n int) Vector {
	return make(Vector, n)
}

// JointState is one sample of a joint-space motion: radians, rad/s, rad/s².
type JointState struct {
	Position     Vector `json:"position" yaml:"position"`
	Velocity     Vector `json:"velocity" yaml:"velocity"`
	Acceleration Vector `json:"acceleration" yaml:"acceleration"`
}

// NewJointState builds a state after checking the three vectors agree in length.
func NewJointState(q, qd, qdd Vector) (JointState, error) {
	s := JointState{Position: q.Clone(), Velocity: qd.Clone(), Acceleration: qdd.Clone()}
	if err := s.Validate(len(q)); err != nil {
		return JointState{}, err
	}
	return s, nil
}

// ZeroState is the zero configuration at rest.
func ZeroState(dof int) JointState {
	return JointState{Position: Zeros(dof), Velocity: Zeros(dof), Acceleration: Zeros(dof)}
}

func (s JointState) Dim() int { return len(s.Position) }

// Validate checks every vector has length dof and finite entries.
func (s JointState) Validate(dof int) error {
	if err := CheckDim("position", s.Position, dof); err != nil {
		return err
	}
	if err := CheckDim("velocity", s.Velocity, dof); err != nil {
		return err
	}
	if err := CheckDim("acceleration", s.Acceleration, dof); err != nil {
		return err
	}
	if !s.Position.IsValid() || !s.Velocity.IsValid() || !s.Acceleration.IsValid() {
		return ErrInvalidState
	}
	return nil
}

func (s JointState) Clone() JointState {
	return JointState{
		Position:     s.Position.Clone(),
		Velocity:     s.Velocity.Clone(),
		Acceleration: s.Acceleration.Clone(),
	}
}

// ScaleMotion multiplies velocity and acceleration by factor. Position is kept.
func (s JointState) ScaleMotion(factor float64) JointState {
	return JointState{
		Position:     s.Position.Clone(),
		Velocity:     s.Velocity.Scale(factor),
		Acceleration: s.Acceleration.Scale(factor),
	}
}

// Static returns the same posture at rest.
func (s JointState) Static() JointState {
	n := len(s.Position)
	return JointState{Position: s.Position.Clone(), Velocity: Zeros(n), Acceleration: Zeros(n)}
}
