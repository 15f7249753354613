package robot

import (
	"fmt"
	"io"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	// estimatorLinkRadius is the cylinder radius used for every estimated link.
	estimatorLinkRadius = 0.05
	// estimatorFriction is the viscous coefficient assumed for every joint.
	estimatorFriction = 0.5
)

// SpecSheet is the coarse data sheet the estimator works from.
type SpecSheet struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Manufacturer      string        `yaml:"manufacturer"`
	DOF               int           `yaml:"dof"`
	TotalMass         float64       `yaml:"total_mass"`
	Reach             float64       `yaml:"reach"`
	TorqueLimit       dynamo.Vector `yaml:"torque_limit"`
	VelocityLimit     dynamo.Vector `yaml:"velocity_limit"`
	AccelerationLimit dynamo.Vector `yaml:"acceleration_limit"`
	// Degrees marks velocity and acceleration limits given in deg/s and deg/s².
	Degrees bool `yaml:"degrees"`
}

// LoadSpecSheets decodes a YAML list of spec sheets, rejecting unknown fields.
func LoadSpecSheets(r io.Reader) ([]SpecSheet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sheets []SpecSheet
	if err := dec.Decode(&sheets); err != nil && err != io.EOF {
		return nil, fmt.Errorf("robot: decode spec sheets: %w", err)
	}
	return sheets, nil
}

// ApproximateModelProvider estimates a lumped-mass model from a SpecSheet.
// The result is a best-effort estimate, never a certified physical model,
// and is always marked Approximate.
type ApproximateModelProvider struct {
	sheets map[string]SpecSheet
}

func NewApproximateModelProvider(sheets ...SpecSheet) *ApproximateModelProvider {
	p := &ApproximateModelProvider{sheets: make(map[string]SpecSheet, len(sheets))}
	for _, s := range sheets {
		p.sheets[s.ID] = s
	}
	return p
}

func (p *ApproximateModelProvider) Name() string { return "approximate" }

func (p *ApproximateModelProvider) IDs() []string { return sortedKeys(p.sheets) }

func (p *ApproximateModelProvider) Provide(id string) (*Model, error) {
	sheet, ok := p.sheets[id]
	if !ok {
		return nil, &dynamo.UnknownRobotError{RobotID: id, Available: p.IDs()}
	}
	return Estimate(sheet)
}

// Estimate builds a serial arm of equal cylindrical links: a vertical yaw
// column followed by alternating pitch and roll joints, every link of length
// Reach/DOF and mass TotalMass/DOF.
func Estimate(s SpecSheet) (*Model, error) {
	if s.DOF < 1 || !(s.TotalMass > 0) || !(s.Reach > 0) {
		return nil, fmt.Errorf("%w: spec sheet %q needs dof >= 1, total_mass > 0 and reach > 0", dynamo.ErrInvalidModel, s.ID)
	}

	n := s.DOF
	l := s.Reach / float64(n)
	mass := s.TotalMass / float64(n)
	r := estimatorLinkRadius
	axial := mass * r * r / 2
	transverse := mass * (3*r*r + l*l) / 12

	chain := make([]Joint, n)
	links := make([]Link, n)
	for i := 0; i < n; i++ {
		switch {
		case i == 0:
			chain[i] = Joint{Origin: spatial.IdentityPose(), Axis: r3.Vec{Z: 1}}
			links[i] = link(mass, r3.Vec{Z: l / 2}, spatial.Diag(transverse, transverse, axial))
			continue
		case i == 1:
			chain[i] = Joint{Origin: spatial.Pose{R: spatial.Identity(), P: r3.Vec{Z: l}}, Axis: r3.Vec{Y: 1}}
		case i%2 == 1:
			chain[i] = Joint{Origin: spatial.Pose{R: spatial.Identity(), P: r3.Vec{X: l}}, Axis: r3.Vec{Y: 1}}
		default:
			chain[i] = Joint{Origin: spatial.Pose{R: spatial.Identity(), P: r3.Vec{X: l}}, Axis: r3.Vec{X: 1}}
		}
		links[i] = link(mass, r3.Vec{X: l / 2}, spatial.Diag(axial, transverse, transverse))
	}

	vel, acc := s.VelocityLimit.Clone(), s.AccelerationLimit.Clone()
	if s.Degrees {
		vel, acc = Degrees(vel...), Degrees(acc...)
	}

	friction := make(dynamo.Vector, n)
	for i := range friction {
		friction[i] = estimatorFriction
	}

	m := &Model{
		ID:                s.ID,
		Name:              s.Name,
		Manufacturer:      s.Manufacturer,
		DOF:               n,
		Chain:             chain,
		Links:             links,
		TorqueLimit:       s.TorqueLimit.Clone(),
		VelocityLimit:     vel,
		AccelerationLimit: acc,
		Friction:          friction,
		Approximate:       true,
		Source:            "approximate",
	}
	for i := range m.Chain {
		m.Chain[i].Name = fmt.Sprintf("joint_%d", i+1)
	}
	return m, nil
}
