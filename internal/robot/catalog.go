package robot

import (
	"maps"
	"math"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// catalog holds the hand-curated models, keyed by robot id.
var catalog = map[string]func() *Model{
	"Robot_A":    ur5e,
	"Robot_B":    panda,
	"ABB_IRB140": irb140,
}

// CatalogProvider is the predefined strategy: exact values for the
// hand-curated robots.
type CatalogProvider struct {
	entries map[string]func() *Model
}

func NewCatalogProvider() *CatalogProvider {
	return &CatalogProvider{entries: maps.Clone(catalog)}
}

func (p *CatalogProvider) Name() string { return "catalog" }

func (p *CatalogProvider) IDs() []string { return sortedKeys(p.entries) }

func (p *CatalogProvider) Provide(id string) (*Model, error) {
	fn, ok := p.entries[id]
	if !ok {
		return nil, &dynamo.UnknownRobotError{RobotID: id, Available: p.IDs()}
	}
	m := fn()
	m.Source = "catalog"
	return m, nil
}

func link(mass float64, com r3.Vec, tensor spatial.Mat3) Link {
	return Link{Inertia: spatial.Inertia{Mass: mass, COM: com, Tensor: tensor}}
}

// ur5e is the Universal Robots UR5e, standard DH with the vendor's link
// masses and centres of mass.
func ur5e() *Model {
	rows := []DH{
		{Alpha: math.Pi / 2, D: 0.1625},
		{A: -0.425},
		{A: -0.3922},
		{Alpha: math.Pi / 2, D: 0.1333},
		{Alpha: -math.Pi / 2, D: 0.0997},
		{D: 0.0996},
	}
	links := []Link{
		link(3.761, r3.Vec{Y: -0.02561, Z: 0.00193}, spatial.Diag(0.0103, 0.0103, 0.0067)),
		link(8.058, r3.Vec{X: 0.2125, Z: 0.11336}, spatial.Diag(0.0152, 0.1330, 0.1330)),
		link(2.846, r3.Vec{X: 0.15, Z: 0.0265}, spatial.Diag(0.0041, 0.0312, 0.0312)),
		link(1.37, r3.Vec{Y: -0.0018, Z: 0.01634}, spatial.Diag(0.0018, 0.0018, 0.0013)),
		link(1.3, r3.Vec{Y: 0.0018, Z: 0.01634}, spatial.Diag(0.0018, 0.0018, 0.0013)),
		link(0.365, r3.Vec{Z: -0.001159}, spatial.Diag(0.0002, 0.0002, 0.0002)),
	}
	chain, links := StandardDH(rows, links)

	m := &Model{
		ID:                "Robot_A",
		Name:              "UR5e",
		Manufacturer:      "Universal Robots",
		DOF:               6,
		Chain:             chain,
		Links:             links,
		TorqueLimit:       dynamo.Vector{150, 150, 150, 28, 28, 28},
		VelocityLimit:     Degrees(180, 180, 180, 360, 360, 360),
		AccelerationLimit: Degrees(300, 300, 300, 600, 600, 600),
	}
	nameJoints(m, "shoulder_pan", "shoulder_lift", "elbow", "wrist_1", "wrist_2", "wrist_3")
	return m
}

// panda is the Franka Emika Panda, modified DH with identified inertials.
func panda() *Model {
	rows := []DH{
		{D: 0.333},
		{Alpha: -math.Pi / 2},
		{Alpha: math.Pi / 2, D: 0.316},
		{Alpha: math.Pi / 2, A: 0.0825},
		{Alpha: -math.Pi / 2, A: -0.0825, D: 0.384},
		{Alpha: math.Pi / 2},
		{Alpha: math.Pi / 2, A: 0.088},
	}
	links := []Link{
		link(4.970684, r3.Vec{X: 0.003875, Y: 0.002081, Z: -0.04762},
			spatial.Symmetric(0.70337, 0.70661, 0.009117, -0.000139, 0.006772, 0.019169)),
		link(0.646926, r3.Vec{X: -0.003141, Y: -0.02872, Z: 0.003495},
			spatial.Symmetric(0.007962, 0.02811, 0.025995, -0.003925, 0.010254, 0.000704)),
		link(3.228604, r3.Vec{X: 0.027518, Y: 0.039252, Z: -0.066502},
			spatial.Symmetric(0.037242, 0.036155, 0.01083, -0.004761, -0.011396, -0.012805)),
		link(3.587895, r3.Vec{X: -0.05317, Y: 0.104419, Z: 0.027454},
			spatial.Symmetric(0.025853, 0.019552, 0.028323, 0.007796, -0.001332, 0.008641)),
		link(1.225946, r3.Vec{X: -0.011953, Y: 0.041065, Z: -0.038437},
			spatial.Symmetric(0.035549, 0.029474, 0.008627, -0.002117, -0.004037, 0.000229)),
		link(1.666555, r3.Vec{X: 0.060149, Y: -0.014117, Z: -0.010517},
			spatial.Symmetric(0.001964, 0.004354, 0.005433, 0.000109, -0.001158, 0.000341)),
		link(0.735522, r3.Vec{X: 0.010517, Y: -0.004252, Z: 0.061597},
			spatial.Symmetric(0.012516, 0.010027, 0.004815, -0.000428, -0.001196, -0.000741)),
	}

	m := &Model{
		ID:                "Robot_B",
		Name:              "Panda",
		Manufacturer:      "Franka Emika",
		DOF:               7,
		Chain:             ModifiedDH(rows),
		Links:             links,
		TorqueLimit:       dynamo.Vector{87, 87, 87, 87, 12, 12, 12},
		VelocityLimit:     Degrees(150, 150, 150, 150, 180, 180, 180),
		AccelerationLimit: Degrees(500, 500, 500, 500, 600, 600, 600),
	}
	nameJoints(m, "panda_joint1", "panda_joint2", "panda_joint3", "panda_joint4", "panda_joint5", "panda_joint6", "panda_joint7")
	return m
}

// irb140 is the ABB IRB 140. Torque limits are estimates; inertials are
// distributed over the arm to match the 98 kg shipping mass less the base.
func irb140() *Model {
	rows := []DH{
		{Alpha: -math.Pi / 2, A: 0.070, D: 0.352},
		{A: 0.360, Theta: -math.Pi / 2},
		{Alpha: math.Pi / 2},
		{Alpha: -math.Pi / 2, D: 0.380},
		{Alpha: math.Pi / 2},
		{D: 0.065},
	}
	links := []Link{
		link(20.0, r3.Vec{X: -0.03, Y: 0.06}, spatial.Diag(0.50, 0.45, 0.40)),
		link(17.0, r3.Vec{X: -0.18, Z: 0.05}, spatial.Diag(0.08, 0.45, 0.45)),
		link(12.0, r3.Vec{Z: 0.05}, spatial.Diag(0.15, 0.15, 0.05)),
		link(6.0, r3.Vec{Y: 0.15}, spatial.Diag(0.06, 0.01, 0.06)),
		link(2.0, r3.Vec{}, spatial.Diag(0.005, 0.005, 0.005)),
		link(0.5, r3.Vec{Z: -0.02}, spatial.Diag(0.001, 0.001, 0.001)),
	}
	chain, links := StandardDH(rows, links)

	m := &Model{
		ID:                "ABB_IRB140",
		Name:              "ABB IRB 140",
		Manufacturer:      "ABB",
		DOF:               6,
		Chain:             chain,
		Links:             links,
		TorqueLimit:       dynamo.Vector{200, 200, 100, 50, 50, 30},
		VelocityLimit:     Degrees(180, 180, 260, 320, 320, 420),
		AccelerationLimit: Degrees(400, 400, 500, 700, 700, 900),
	}
	nameJoints(m, "axis_1", "axis_2", "axis_3", "axis_4", "axis_5", "axis_6")
	return m
}

func nameJoints(m *Model, names ...string) {
	for i := range m.Chain {
		if i < len(names) {
			m.Chain[i].Name = names[i]
			m.Links[i].Name = names[i] + "_link"
		}
	}
}
