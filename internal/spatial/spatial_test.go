package spatial

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-12

func vecClose(a, b r3.Vec) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func TestRotAxisMatchesElementaryRotations(t *testing.T) {
	angles := []float64{0, 0.3, -1.2, math.Pi / 2, 2.9}
	for _, a := range angles {
		pairs := []struct {
			name string
			got  Mat3
			want Mat3
		}{
			{"x", RotAxis(r3.Vec{X: 1}, a), RotX(a)},
			{"y", RotAxis(r3.Vec{Y: 1}, a), RotY(a)},
			{"z", RotAxis(r3.Vec{Z: 1}, a), RotZ(a)},
		}
		for _, p := range pairs {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					if math.Abs(p.got[i][j]-p.want[i][j]) > tol {
						t.Fatalf("axis %s angle %v: entry (%d,%d) = %v, want %v", p.name, a, i, j, p.got[i][j], p.want[i][j])
					}
				}
			}
		}
	}
}

func TestRotationTransposeIsInverse(t *testing.T) {
	r := RPY(0.2, -0.7, 1.1)
	v := r3.Vec{X: 0.3, Y: -1, Z: 2}
	back := r.MulVecT(r.MulVec(v))
	if !vecClose(back, v) {
		t.Errorf("expected %v, got %v", v, back)
	}
}

func TestPoseCompose(t *testing.T) {
	a := Pose{R: RotZ(math.Pi / 2), P: r3.Vec{X: 1}}
	b := Pose{R: Identity(), P: r3.Vec{X: 2}}

	c := a.Compose(b)
	want := r3.Vec{X: 1, Y: 2}
	if !vecClose(c.P, want) {
		t.Errorf("expected origin %v, got %v", want, c.P)
	}

	p := r3.Vec{X: 0.5}
	if !vecClose(c.Apply(p), a.Apply(b.Apply(p))) {
		t.Error("Compose does not agree with sequential Apply")
	}
}

func TestInertiaMergePointMasses(t *testing.T) {
	a := Inertia{Mass: 1, COM: r3.Vec{X: -1}}
	b := Inertia{Mass: 1, COM: r3.Vec{X: 1}}

	m := a.Merge(b)
	if m.Mass != 2 {
		t.Errorf("expected mass 2, got %f", m.Mass)
	}
	if !vecClose(m.COM, r3.Vec{}) {
		t.Errorf("expected COM at origin, got %v", m.COM)
	}
	// two unit masses at ±1 on x: Iyy = Izz = 2, Ixx = 0
	if math.Abs(m.Tensor[1][1]-2) > tol || math.Abs(m.Tensor[2][2]-2) > tol || math.Abs(m.Tensor[0][0]) > tol {
		t.Errorf("unexpected tensor %v", m.Tensor)
	}
	if !m.Tensor.IsSymmetric(tol) {
		t.Error("merged tensor should be symmetric")
	}
}

func TestInertiaTransformRotatesTensor(t *testing.T) {
	b := Inertia{Mass: 2, Tensor: Diag(1, 2, 3)}
	out := b.Transform(Pose{R: RotZ(math.Pi / 2), P: r3.Vec{Z: 1}})

	if math.Abs(out.Tensor[0][0]-2) > tol || math.Abs(out.Tensor[1][1]-1) > tol {
		t.Errorf("expected x/y moments swapped, got %v", out.Tensor)
	}
	if !vecClose(out.COM, r3.Vec{Z: 1}) {
		t.Errorf("expected COM moved to z=1, got %v", out.COM)
	}
}
