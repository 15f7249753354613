package dynamics

import (
	"math"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// StandardGravity is the magnitude of the default gravity vector (m/s²).
const StandardGravity = 9.81

// Engine evaluates inverse dynamics for serial revolute chains.
type Engine struct {
	// Gravity is the gravitational acceleration in base coordinates.
	Gravity r3.Vec
}

// New returns an engine with gravity along −z of the base frame.
func New() *Engine {
	return &Engine{Gravity: r3.Vec{Z: -StandardGravity}}
}

// WithoutGravity returns an engine that ignores gravity.
func WithoutGravity() *Engine {
	return &Engine{}
}

// RequiredTorque returns the torque each joint must produce so the robot
// follows state. It fails with a *dynamo.DimensionMismatchError when a
// state vector does not have one entry per joint.
func (e *Engine) RequiredTorque(m *robot.Model, s dynamo.JointState) (dynamo.Vector, error) {
	if err := s.Validate(m.DOF); err != nil {
		return nil, err
	}

	n := m.DOF
	rot := make([]spatial.Mat3, n)
	force := make([]r3.Vec, n)
	moment := make([]r3.Vec, n)

	// outward: kinematics of every link and the net force/moment on it
	var w, wd r3.Vec
	vd := r3.Scale(-1, e.Gravity)
	for i := 0; i < n; i++ {
		j := m.Chain[i]
		qd, qdd := s.Velocity[i], s.Acceleration[i]
		rot[i] = j.Origin.R.Mul(spatial.RotAxis(j.Axis, s.Position[i]+j.Offset))
		r := rot[i]
		p := j.Origin.P

		// the origin of link i is fixed in the parent link
		vd = r.MulVecT(r3.Add(r3.Add(r3.Cross(wd, p), r3.Cross(w, r3.Cross(w, p))), vd))

		wp := r.MulVecT(w)
		w = r3.Add(wp, r3.Scale(qd, j.Axis))
		wd = r3.Add(r3.Add(r.MulVecT(wd), r3.Cross(wp, r3.Scale(qd, j.Axis))), r3.Scale(qdd, j.Axis))

		l := m.Links[i]
		vdc := r3.Add(r3.Add(r3.Cross(wd, l.COM), r3.Cross(w, r3.Cross(w, l.COM))), vd)
		force[i] = r3.Scale(l.Mass, vdc)
		moment[i] = r3.Add(l.Tensor.MulVec(wd), r3.Cross(w, l.Tensor.MulVec(w)))
	}

	// inward: accumulate what each joint transmits to its child
	tau := make(dynamo.Vector, n)
	var f, nn r3.Vec
	for i := n - 1; i >= 0; i-- {
		l := m.Links[i]
		var fc, nc r3.Vec
		if i < n-1 {
			fc = rot[i+1].MulVec(f)
			nc = r3.Add(rot[i+1].MulVec(nn), r3.Cross(m.Chain[i+1].Origin.P, fc))
		}
		f = r3.Add(fc, force[i])
		nn = r3.Add(r3.Add(moment[i], nc), r3.Cross(l.COM, force[i]))

		tau[i] = r3.Dot(nn, m.Chain[i].Axis)
		if m.Friction != nil {
			tau[i] += m.Friction[i] * s.Velocity[i]
		}
	}
	if !tau.IsValid() {
		return nil, dynamo.ErrInvalidState
	}
	return tau, nil
}

// GravityTorque is the torque needed to hold the robot still at q.
func (e *Engine) GravityTorque(m *robot.Model, q dynamo.Vector) (dynamo.Vector, error) {
	if err := dynamo.CheckDim("position", q, m.DOF); err != nil {
		return nil, err
	}
	return e.RequiredTorque(m, dynamo.JointState{Position: q, Velocity: dynamo.Zeros(m.DOF), Acceleration: dynamo.Zeros(m.DOF)})
}

// TorqueTrajectory evaluates RequiredTorque at every sample.
func (e *Engine) TorqueTrajectory(m *robot.Model, samples []dynamo.JointState) ([]dynamo.Vector, error) {
	out := make([]dynamo.Vector, len(samples))
	for k, s := range samples {
		tau, err := e.RequiredTorque(m, s)
		if err != nil {
			return nil, err
		}
		out[k] = tau
	}
	return out, nil
}

// PeakTorque returns, per joint, the largest |τ| over all samples.
func (e *Engine) PeakTorque(m *robot.Model, samples []dynamo.JointState) (dynamo.Vector, error) {
	traj, err := e.TorqueTrajectory(m, samples)
	if err != nil {
		return nil, err
	}
	return Peak(m.DOF, traj), nil
}

// Peak reduces a torque trajectory to its per-joint maximum magnitude.
func Peak(dof int, traj []dynamo.Vector) dynamo.Vector {
	peak := dynamo.Zeros(dof)
	for _, tau := range traj {
		for i := 0; i < dof && i < len(tau); i++ {
			peak[i] = math.Max(peak[i], math.Abs(tau[i]))
		}
	}
	return peak
}
