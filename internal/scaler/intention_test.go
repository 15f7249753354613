package scaler_test

import (
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
)

var _ = Describe("TaskIntention", func() {
	It("accepts speed_percent as vel_percent", func() {
		in, err := scaler.NewTaskIntention(scaler.TaskPick, map[string]float64{"accel_percent": 95, "speed_percent": 90})
		Expect(err).NotTo(HaveOccurred())
		Expect(in.Percent).To(Equal(map[scaler.Param]float64{scaler.AccelPercent: 95, scaler.VelPercent: 90}))
	})

	DescribeTable("rejects bad intentions at the boundary",
		func(task scaler.TaskKind, percent map[string]float64) {
			_, err := scaler.NewTaskIntention(task, percent)
			Expect(err).To(MatchError(dynamo.ErrInvalidIntention))
		},
		Entry("unknown task", scaler.TaskKind("juggle"), map[string]float64{"accel_percent": 50}),
		Entry("missing task", scaler.TaskKind(""), map[string]float64{"accel_percent": 50}),
		Entry("unknown parameter", scaler.TaskMove, map[string]float64{"accel_percent": 50, "jerk_percent": 10}),
		Entry("missing accel_percent", scaler.TaskMove, map[string]float64{"vel_percent": 50}),
		Entry("above 100", scaler.TaskMove, map[string]float64{"accel_percent": 120}),
		Entry("negative", scaler.TaskMove, map[string]float64{"accel_percent": -1}),
		Entry("NaN", scaler.TaskMove, map[string]float64{"accel_percent": math.NaN()}),
		Entry("alias given twice", scaler.TaskMove, map[string]float64{"accel_percent": 50, "vel_percent": 10, "speed_percent": 20}),
	)

	It("maps percentages onto each joint's own limits", func() {
		m, err := robot.NewDefaultStore().Load("Robot_A")
		Expect(err).NotTo(HaveOccurred())

		in, err := scaler.NewTaskIntention(scaler.TaskMove, map[string]float64{"accel_percent": 80, "vel_percent": 25})
		Expect(err).NotTo(HaveOccurred())

		s, err := in.Candidate(m)
		Expect(err).NotTo(HaveOccurred())
		for i := range m.AccelerationLimit {
			Expect(s.Acceleration[i]).To(BeNumerically("~", 0.8*m.AccelerationLimit[i], 1e-12))
			Expect(s.Velocity[i]).To(BeNumerically("~", 0.25*m.VelocityLimit[i], 1e-12))
		}
		Expect(s.Position).To(Equal(dynamo.Zeros(6)))
	})

	It("copies the percent map in WithPercent", func() {
		in, _ := scaler.NewTaskIntention(scaler.TaskMove, map[string]float64{"accel_percent": 80})
		out := in.WithPercent(scaler.AccelPercent, 20)
		Expect(in.Percent[scaler.AccelPercent]).To(Equal(80.0))
		Expect(out.Percent[scaler.AccelPercent]).To(Equal(20.0))
	})

	Describe("DecodeIntention", func() {
		It("reads targets and a posture in degrees", func() {
			doc := `
task: pick
robot: Robot_A
percent:
  accel_percent: 95
  speed_percent: 90
targets:
  - object: apple
    weight: 0.2
posture: [0, -90, 90, 0, 0, 0]
degrees: true
`
			in, err := scaler.DecodeIntention(strings.NewReader(doc))
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Task).To(Equal(scaler.TaskPick))
			Expect(in.RobotID).To(Equal("Robot_A"))
			Expect(in.Percent[scaler.VelPercent]).To(Equal(90.0))
			Expect(in.Targets).To(Equal([]scaler.Target{{Object: "apple", Weight: 0.2}}))
			Expect(in.Posture[1]).To(BeNumerically("~", -math.Pi/2, 1e-12))
		})

		It("rejects unknown fields", func() {
			_, err := scaler.DecodeIntention(strings.NewReader("task: move\npercent: {accel_percent: 50}\ncolour: red\n"))
			Expect(err).To(MatchError(dynamo.ErrInvalidIntention))
		})
	})
})
