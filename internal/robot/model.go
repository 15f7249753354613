// Package robot is the read-only catalog of per-robot dynamic parameters.
//
// Models come from [Provider] implementations selected when the [Store] is
// built: the built-in [CatalogProvider], the description-driven
// [PreciseModelProvider] and the lumped-mass [ApproximateModelProvider].
// Models produced by the estimator carry Approximate = true so downstream
// reports can flag reduced confidence.
package robot

import (
	"fmt"
	"math"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

const symmetryTol = 1e-9

// Joint is one revolute joint of a serial chain. The joint frame is reached
// from the previous joint frame (or the base) by Origin, followed by a
// rotation of q+Offset about Axis.
type Joint struct {
	Name   string       `json:"name"`
	Origin spatial.Pose `json:"origin"`
	Axis   r3.Vec       `json:"axis"`
	Offset float64      `json:"offset"`
}

// Link is the rigid body moved by the joint of the same index, expressed in
// that joint's frame.
type Link struct {
	Name string `json:"name"`
	spatial.Inertia
}

// Model holds the dynamic parameters of one robot. Models handed out by a
// Store are shared and must not be mutated.
type Model struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	DOF          int    `json:"dof"`

	Chain []Joint `json:"chain"`
	Links []Link  `json:"links"`

	TorqueLimit       dynamo.Vector `json:"torque_limit"`
	VelocityLimit     dynamo.Vector `json:"velocity_limit"`
	AccelerationLimit dynamo.Vector `json:"acceleration_limit"`

	// Friction is an optional viscous coefficient per joint (N·m·s/rad).
	Friction dynamo.Vector `json:"friction,omitempty"`

	Approximate bool   `json:"approximate"`
	Source      string `json:"source"`
}

// TotalMass sums the link masses.
func (m *Model) TotalMass() float64 {
	total := 0.0
	for _, l := range m.Links {
		total += l.Mass
	}
	return total
}

// Validate checks the structural invariants every consumer relies on.
func (m *Model) Validate() error {
	if m.DOF < 1 {
		return fmt.Errorf("%w: robot %q: dof %d < 1", dynamo.ErrInvalidModel, m.ID, m.DOF)
	}
	if len(m.Chain) != m.DOF {
		return m.dimError("chain", len(m.Chain))
	}
	if len(m.Links) != m.DOF {
		return m.dimError("links", len(m.Links))
	}

	limits := []struct {
		field string
		v     dynamo.Vector
	}{
		{"torque_limit", m.TorqueLimit},
		{"velocity_limit", m.VelocityLimit},
		{"acceleration_limit", m.AccelerationLimit},
	}
	for _, l := range limits {
		if len(l.v) != m.DOF {
			return m.dimError(l.field, len(l.v))
		}
		for i, x := range l.v {
			if !(x > 0) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: robot %q: %s[%d] = %g must be positive", dynamo.ErrInvalidModel, m.ID, l.field, i, x)
			}
		}
	}

	if m.Friction != nil {
		if len(m.Friction) != m.DOF {
			return m.dimError("friction", len(m.Friction))
		}
		for i, x := range m.Friction {
			if x < 0 || math.IsNaN(x) {
				return fmt.Errorf("%w: robot %q: friction[%d] = %g is negative", dynamo.ErrInvalidModel, m.ID, i, x)
			}
		}
	}

	for i, j := range m.Chain {
		if r3.Norm(j.Axis) < 1e-12 {
			return fmt.Errorf("%w: robot %q: joint %d has a zero axis", dynamo.ErrInvalidModel, m.ID, i)
		}
	}
	for i, l := range m.Links {
		if !(l.Mass > 0) {
			return fmt.Errorf("%w: robot %q: link %d mass %g must be positive", dynamo.ErrInvalidModel, m.ID, i, l.Mass)
		}
		if !l.Tensor.IsSymmetric(symmetryTol) {
			return fmt.Errorf("%w: robot %q: link %d inertia tensor is not symmetric", dynamo.ErrInvalidModel, m.ID, i)
		}
	}
	return nil
}

func (m *Model) dimError(field string, got int) error {
	return fmt.Errorf("%w: robot %q: %w", dynamo.ErrInvalidModel, m.ID,
		&dynamo.DimensionMismatchError{Field: field, Want: m.DOF, Got: got})
}

// Clone returns a deep copy that may be modified freely.
func (m *Model) Clone() *Model {
	c := *m
	c.Chain = append([]Joint(nil), m.Chain...)
	c.Links = append([]Link(nil), m.Links...)
	c.TorqueLimit = m.TorqueLimit.Clone()
	c.VelocityLimit = m.VelocityLimit.Clone()
	c.AccelerationLimit = m.AccelerationLimit.Clone()
	c.Friction = m.Friction.Clone()
	return &c
}

// normalizeAxes rescales every joint axis to unit length.
func (m *Model) normalizeAxes() {
	for i := range m.Chain {
		if n := r3.Norm(m.Chain[i].Axis); n > 0 {
			m.Chain[i].Axis = r3.Scale(1/n, m.Chain[i].Axis)
		}
	}
}

// Degrees converts a list of degree values to radians.
func Degrees(v ...float64) dynamo.Vector {
	out := make(dynamo.Vector, len(v))
	for i, x := range v {
		out[i] = x * math.Pi / 180
	}
	return out
}
