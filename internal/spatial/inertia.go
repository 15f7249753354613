package spatial

import "gonum.org/v1/gonum/spatial/r3"

// Inertia describes a rigid body: its mass, centre of mass and the inertia
// tensor about the centre of mass, all in one frame's coordinates.
type Inertia struct {
	Mass   float64
	COM    r3.Vec
	Tensor Mat3
}

// Transform re-expresses the body in the parent frame of pose.
func (b Inertia) Transform(pose Pose) Inertia {
	return Inertia{
		Mass:   b.Mass,
		COM:    pose.Apply(b.COM),
		Tensor: pose.R.Mul(b.Tensor).Mul(pose.R.T()),
	}
}

// Merge lumps two bodies expressed in the same frame into one.
func (b Inertia) Merge(o Inertia) Inertia {
	m := b.Mass + o.Mass
	if m == 0 {
		return Inertia{}
	}
	com := r3.Scale(1/m, r3.Add(r3.Scale(b.Mass, b.COM), r3.Scale(o.Mass, o.COM)))
	tensor := b.Tensor.Add(steiner(b.Mass, r3.Sub(b.COM, com))).
		Add(o.Tensor).Add(steiner(o.Mass, r3.Sub(o.COM, com)))
	return Inertia{Mass: m, COM: com, Tensor: tensor}
}

// steiner is the parallel-axis term m(|d|²E − d·dᵀ).
func steiner(m float64, d r3.Vec) Mat3 {
	dd := r3.Dot(d, d)
	return Mat3{
		{m * (dd - d.X*d.X), -m * d.X * d.Y, -m * d.X * d.Z},
		{-m * d.Y * d.X, m * (dd - d.Y*d.Y), -m * d.Y * d.Z},
		{-m * d.Z * d.X, -m * d.Z * d.Y, m * (dd - d.Z*d.Z)},
	}
}
