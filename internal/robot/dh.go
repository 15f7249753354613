package robot

import (
	"math"

	"github.com/san-kum/torquescale/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// Convention selects how a DH table is read.
type Convention string

const (
	// Modified is Craig's convention: row i holds (alpha_{i-1}, a_{i-1}, d_i, theta_i).
	Modified Convention = "modified"
	// Standard is the distal convention: row i holds (theta_i, d_i, a_i, alpha_i).
	Standard Convention = "standard"
)

// DH is one row of a Denavit-Hartenberg table. Theta is the constant joint offset.
type DH struct {
	Alpha float64 `yaml:"alpha"`
	A     float64 `yaml:"a"`
	D     float64 `yaml:"d"`
	Theta float64 `yaml:"theta"`
}

// ModifiedDH builds a chain from a modified DH table. Link inertials for
// this convention are already expressed in the joint frames.
func ModifiedDH(rows []DH) []Joint {
	chain := make([]Joint, len(rows))
	for i, r := range rows {
		sa, ca := math.Sincos(r.Alpha)
		chain[i] = Joint{
			Origin: spatial.Pose{R: spatial.RotX(r.Alpha), P: r3.Vec{X: r.A, Y: -sa * r.D, Z: ca * r.D}},
			Axis:   r3.Vec{Z: 1},
			Offset: r.Theta,
		}
	}
	return chain
}

// StandardDH builds a chain from a standard DH table and re-expresses the
// link inertials, given in the distal DH frames, in the joint frames.
func StandardDH(rows []DH, links []Link) ([]Joint, []Link) {
	chain := make([]Joint, len(rows))
	out := make([]Link, len(links))
	for i, r := range rows {
		origin := spatial.IdentityPose()
		if i > 0 {
			origin = distal(rows[i-1])
		}
		chain[i] = Joint{Origin: origin, Axis: r3.Vec{Z: 1}, Offset: r.Theta}
		if i < len(links) {
			out[i] = Link{Name: links[i].Name, Inertia: links[i].Inertia.Transform(distal(r))}
		}
	}
	return chain, out
}

// distal is the fixed part Tz(d)·Tx(a)·Rx(alpha) of a standard DH row.
func distal(r DH) spatial.Pose {
	return spatial.Pose{R: spatial.RotX(r.Alpha), P: r3.Vec{X: r.A, Z: r.D}}
}
