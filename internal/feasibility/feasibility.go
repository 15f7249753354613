// Package feasibility compares required joint quantities against derated
// robot limits.
//
// Each [Check] covers one [Constraint] (torque, velocity or acceleration)
// and yields a [Report] with per-joint utilization ratios. [Combine] folds
// several reports into a [Verdict]: the binding constraint is whichever
// demands the smallest scale factor, and the exceeded joints are the union
// across checks.
//
//	tau, _ := eng.RequiredTorque(model, state)
//	v, err := feasibility.CheckState(model, tau, state, 0.9)
//	if !v.Feasible {
//		state = state.ScaleMotion(v.ScaleFactor)
//	}
package feasibility

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/robot"
)

// Constraint identifies the quantity a report was computed for.
type Constraint int

const (
	Torque Constraint = iota
	Velocity
	Acceleration
)

var constraintNames = map[Constraint]string{
	Torque:       "torque",
	Velocity:     "velocity",
	Acceleration: "acceleration",
}

func (c Constraint) String() string {
	if name, ok := constraintNames[c]; ok {
		return name
	}
	return fmt.Sprintf("constraint(%d)", int(c))
}

func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Constraint) UnmarshalText(b []byte) error {
	for k, name := range constraintNames {
		if name == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("feasibility: unknown constraint %q", b)
}

// Status is the coarse outcome of a check.
type Status string

const (
	StatusFeasible               Status = "feasible"
	StatusInfeasibleTorque       Status = "infeasible_torque"
	StatusInfeasibleVelocity     Status = "infeasible_velocity"
	StatusInfeasibleAcceleration Status = "infeasible_acceleration"
)

func (c Constraint) infeasible() Status {
	switch c {
	case Velocity:
		return StatusInfeasibleVelocity
	case Acceleration:
		return StatusInfeasibleAcceleration
	default:
		return StatusInfeasibleTorque
	}
}

// Report is the outcome of one constraint check. Required holds magnitudes
// and Limit the effective (derated) bound.
type Report struct {
	Constraint  Constraint    `json:"constraint"`
	Status      Status        `json:"status"`
	Feasible    bool          `json:"feasible"`
	Margin      float64       `json:"safety_margin"`
	Required    dynamo.Vector `json:"required"`
	Limit       dynamo.Vector `json:"limit"`
	Ratio       dynamo.Vector `json:"ratio"`
	MaxRatio    float64       `json:"max_ratio"`
	Exceeded    []int         `json:"exceeded_joints"`
	ScaleFactor float64       `json:"scale_factor"`
}

// Check compares |required| against limit·margin joint by joint.
func Check(kind Constraint, required, limit dynamo.Vector, margin float64) (Report, error) {
	if err := dynamo.ValidateMargin(margin); err != nil {
		return Report{}, err
	}
	if err := dynamo.CheckDim(kind.String(), required, len(limit)); err != nil {
		return Report{}, err
	}
	if !required.IsValid() {
		return Report{}, fmt.Errorf("feasibility: required %s: %w", kind, dynamo.ErrInvalidState)
	}

	n := len(required)
	r := Report{
		Constraint: kind,
		Margin:     margin,
		Required:   required.Abs(),
		Limit:      make(dynamo.Vector, n),
		Ratio:      make(dynamo.Vector, n),
		Exceeded:   []int{},
	}
	for i := range required {
		if !(limit[i] > 0) {
			return Report{}, fmt.Errorf("%w: %s limit of joint %d is %g", dynamo.ErrInvalidModel, kind, i, limit[i])
		}
		r.Limit[i] = limit[i] * margin
		r.Ratio[i] = r.Required[i] / r.Limit[i]
		if r.Ratio[i] > 1 {
			r.Exceeded = append(r.Exceeded, i)
		}
	}

	r.MaxRatio, _ = r.Ratio.Max()
	r.Feasible = len(r.Exceeded) == 0
	r.ScaleFactor = 1
	r.Status = StatusFeasible
	if !r.Feasible {
		r.ScaleFactor = 1 / r.MaxRatio
		r.Status = kind.infeasible()
	}
	return r, nil
}

// Verdict combines the reports of every active constraint.
type Verdict struct {
	Feasible    bool       `json:"feasible"`
	Status      Status     `json:"status"`
	ScaleFactor float64    `json:"scale_factor"`
	Binding     Constraint `json:"binding"`
	MaxRatio    float64    `json:"max_ratio"`
	Exceeded    []int      `json:"exceeded_joints"`
	Reports     []Report   `json:"reports"`
	// Approximate is set when the limits or dynamics came from an
	// estimated model.
	Approximate bool `json:"approximate"`
}

// Combine folds reports into a verdict. The binding constraint is the one
// with the highest utilization, which is also the one with the smallest
// scale factor whenever any check fails.
func Combine(reports ...Report) Verdict {
	v := Verdict{
		Feasible:    true,
		Status:      StatusFeasible,
		ScaleFactor: 1,
		Exceeded:    []int{},
		Reports:     reports,
	}

	for i, r := range reports {
		if i == 0 || r.MaxRatio > v.MaxRatio {
			v.MaxRatio = r.MaxRatio
			v.Binding = r.Constraint
		}
		if r.Feasible {
			continue
		}
		if v.Feasible {
			v.Status = r.Status
		}
		v.Feasible = false
		v.ScaleFactor = math.Min(v.ScaleFactor, r.ScaleFactor)
		for _, j := range r.Exceeded {
			if !slices.Contains(v.Exceeded, j) {
				v.Exceeded = append(v.Exceeded, j)
			}
		}
	}
	slices.Sort(v.Exceeded)
	return v
}

// Report returns the report for kind, if it was part of the verdict.
func (v Verdict) Report(kind Constraint) (Report, bool) {
	for _, r := range v.Reports {
		if r.Constraint == kind {
			return r, true
		}
	}
	return Report{}, false
}

// CheckState runs the torque check on tau and the velocity and acceleration
// checks on s against m's limits. A nil velocity or acceleration vector
// skips that check.
func CheckState(m *robot.Model, tau dynamo.Vector, s dynamo.JointState, margin float64) (Verdict, error) {
	if err := dynamo.ValidateMargin(margin); err != nil {
		return Verdict{}, err
	}
	if err := dynamo.CheckDim("torque", tau, m.DOF); err != nil {
		return Verdict{}, err
	}

	checks := []struct {
		kind     Constraint
		required dynamo.Vector
		limit    dynamo.Vector
	}{
		{Torque, tau, m.TorqueLimit},
		{Velocity, s.Velocity, m.VelocityLimit},
		{Acceleration, s.Acceleration, m.AccelerationLimit},
	}

	reports := make([]Report, 0, len(checks))
	for _, c := range checks {
		if c.required == nil || c.limit == nil {
			continue
		}
		r, err := Check(c.kind, c.required, c.limit, margin)
		if err != nil {
			return Verdict{}, err
		}
		reports = append(reports, r)
	}

	v := Combine(reports...)
	v.Approximate = m.Approximate
	return v, nil
}
