package scaler_test

import (
	"math"
	"sync/atomic"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
)

func TestScaler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scaler Suite")
}

// fakeModels serves hand-built models and counts lookups.
type fakeModels struct {
	models map[string]*robot.Model
	loads  atomic.Int32
}

func (f *fakeModels) Load(id string) (*robot.Model, error) {
	f.loads.Add(1)
	m, ok := f.models[id]
	if !ok {
		return nil, &dynamo.UnknownRobotError{RobotID: id}
	}
	return m, nil
}

// linearSolver returns gravity + gain·qdd per joint and counts calls.
type linearSolver struct {
	gravity dynamo.Vector
	gain    dynamo.Vector
	calls   atomic.Int32
}

func (l *linearSolver) RequiredTorque(m *robot.Model, s dynamo.JointState) (dynamo.Vector, error) {
	l.calls.Add(1)
	if err := s.Validate(m.DOF); err != nil {
		return nil, err
	}
	tau := make(dynamo.Vector, m.DOF)
	for i := range tau {
		tau[i] = l.gravity[i] + l.gain[i]*s.Acceleration[i]
	}
	return tau, nil
}

// scenarioModel is a six-joint arm with UR5e torque limits and generous
// velocity and acceleration limits, so only torque can bind.
func scenarioModel() *robot.Model {
	return &robot.Model{
		ID:                "scenario",
		DOF:               6,
		TorqueLimit:       dynamo.Vector{150, 150, 150, 28, 28, 28},
		VelocityLimit:     dynamo.Vector{3, 3, 3, 3, 3, 3},
		AccelerationLimit: dynamo.Vector{20, 20, 20, 20, 20, 20},
	}
}

// scenarioSolver holds [40,45,40,10,9,8] N·m against gravity; at 10 rad/s²
// joint 3 needs 31.4 N·m.
func scenarioSolver() *linearSolver {
	return &linearSolver{
		gravity: dynamo.Vector{40, 45, 40, 10, 9, 8},
		gain:    dynamo.Vector{1, 1, 1, 2.14, 0.5, 0.5},
	}
}

var heavySheets = []robot.SpecSheet{
	{
		ID:                "Heavy_2",
		Name:              "two-joint test arm",
		DOF:               2,
		TotalMass:         10,
		Reach:             1,
		TorqueLimit:       dynamo.Vector{80, 22},
		VelocityLimit:     dynamo.Vector{3, 3},
		AccelerationLimit: dynamo.Vector{100, 100},
	},
	{
		ID:                "Weak_2",
		Name:              "arm that cannot hold itself",
		DOF:               2,
		TotalMass:         10,
		Reach:             1,
		TorqueLimit:       dynamo.Vector{80, 10},
		VelocityLimit:     dynamo.Vector{3, 3},
		AccelerationLimit: dynamo.Vector{100, 100},
	},
}

// flipped points the heavy arm's outer link along -x so gravity and the
// commanded acceleration load joint 1 in the same direction.
var flipped = dynamo.Vector{0, math.Pi}

func newStore() *robot.Store {
	store, err := robot.NewStore(robot.NewCatalogProvider(), robot.NewApproximateModelProvider(heavySheets...))
	Expect(err).NotTo(HaveOccurred())
	return store
}

func intention(accel, vel float64, posture dynamo.Vector) scaler.TaskIntention {
	percent := map[string]float64{"accel_percent": accel}
	if vel > 0 {
		percent["vel_percent"] = vel
	}
	in, err := scaler.NewTaskIntention(scaler.TaskMove, percent)
	Expect(err).NotTo(HaveOccurred())
	in.Posture = posture
	return in
}

func maxTorqueRatio(m *robot.Model, tau dynamo.Vector, margin float64) float64 {
	worst := 0.0
	for i := range tau {
		worst = math.Max(worst, math.Abs(tau[i])/(m.TorqueLimit[i]*margin))
	}
	return worst
}
