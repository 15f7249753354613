package scaler_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/san-kum/torquescale/internal/dynamics"
	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
)

const eps = 1e-9

var _ = Describe("Scale", func() {
	Describe("the six-joint torque scenario", func() {
		var (
			models *fakeModels
			solver *linearSolver
			s      *scaler.Scaler
			logs   *bytes.Buffer
		)

		BeforeEach(func() {
			models = &fakeModels{models: map[string]*robot.Model{"scenario": scenarioModel()}}
			solver = scenarioSolver()
			logs = &bytes.Buffer{}
			logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
			s = scaler.New(models, scaler.WithSolver(solver), scaler.WithLogger(logger))
		})

		It("reports joint 3 as the only exceeded joint with scale 25.2/31.4", func() {
			p, err := s.Scale("scenario", intention(50, 0, nil), scaler.DefaultSafetyMargin)
			Expect(err).NotTo(HaveOccurred())

			Expect(p.Feasible).To(BeFalse())
			Expect(p.Initial.Feasible).To(BeFalse())
			Expect(p.Initial.Exceeded).To(Equal([]int{3}))
			Expect(p.Initial.ScaleFactor).To(BeNumerically("~", 25.2/31.4, eps))
			Expect(p.Initial.ScaleFactor).To(BeNumerically("~", 0.802, 1e-3))
			Expect(p.Initial.Binding).To(Equal(feasibility.Torque))

			torque, ok := p.Initial.Report(feasibility.Torque)
			Expect(ok).To(BeTrue())
			Expect(torque.Required[3]).To(BeNumerically("~", 31.4, eps))
			Expect(torque.Limit[3]).To(BeNumerically("~", 25.2, eps))
		})

		It("lands joint 3 at or below 25.2 N·m on re-check", func() {
			p, err := s.Scale("scenario", intention(50, 0, nil), scaler.DefaultSafetyMargin)
			Expect(err).NotTo(HaveOccurred())

			Expect(p.Report.Feasible).To(BeTrue())
			Expect(p.Scaled).To(BeTrue())
			Expect(p.Torque[3]).To(BeNumerically("<=", 25.2))
			Expect(p.Torque[3]).To(BeNumerically("~", 25.2, 1e-6))

			// gravity stays at 10 N·m, so only 15.2 of the 21.4 N·m motion
			// torque fits
			Expect(p.ScaleFactor).To(BeNumerically("~", 15.2/21.4, 1e-6))
			Expect(p.Refinements).To(Equal(2))
			Expect(p.Acceleration[3]).To(BeNumerically("~", 10*p.ScaleFactor, eps))
			Expect(p.EffectivePercent[scaler.AccelPercent]).To(BeNumerically("~", 50*p.ScaleFactor, eps))
			Expect(p.OriginalPercent[scaler.AccelPercent]).To(Equal(50.0))
			Expect(logs.String()).To(ContainSubstring("scaler: refinement pass"))
		})

		It("gives up with the last verdict once the pass bound is hit", func() {
			s = scaler.New(models, scaler.WithSolver(solver), scaler.WithMaxRefinements(1))

			p, err := s.Scale("scenario", intention(50, 0, nil), scaler.DefaultSafetyMargin)
			Expect(p).To(BeNil())
			Expect(err).To(MatchError(dynamo.ErrStillInfeasible))

			var still *scaler.StillInfeasibleError
			Expect(errors.As(err, &still)).To(BeTrue())
			Expect(still.RobotID).To(Equal("scenario"))
			Expect(still.Passes).To(Equal(1))
			Expect(still.Static).To(BeFalse())
			Expect(still.Verdict.Exceeded).To(Equal([]int{3}))
		})

		It("fails before loading anything when the margin is out of range", func() {
			p, err := s.Scale("scenario", intention(50, 0, nil), 1.4)
			Expect(p).To(BeNil())
			Expect(err).To(MatchError(dynamo.ErrInvalidMargin))

			var me *dynamo.InvalidMarginError
			Expect(errors.As(err, &me)).To(BeTrue())
			Expect(me.Margin).To(Equal(1.4))
			Expect(solver.calls.Load()).To(BeZero())
			Expect(models.loads.Load()).To(BeZero())
		})

		It("rejects an invalid intention before any dynamics", func() {
			in := intention(50, 0, nil)
			in.Percent[scaler.AccelPercent] = 120

			_, err := s.Scale("scenario", in, 0.9)
			Expect(err).To(MatchError(dynamo.ErrInvalidIntention))
			Expect(solver.calls.Load()).To(BeZero())
		})

		It("is idempotent on its own output", func() {
			p, err := s.Scale("scenario", intention(50, 0, nil), scaler.DefaultSafetyMargin)
			Expect(err).NotTo(HaveOccurred())

			again, err := s.Rescale(p, scaler.DefaultSafetyMargin)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ScaleFactor).To(Equal(1.0))
			Expect(again.Feasible).To(BeTrue())
			Expect(again.Refinements).To(BeZero())
			Expect(again.Acceleration).To(Equal(p.Acceleration))
			Expect(again.Task).To(Equal(p.Task))
		})
	})

	Describe("against the robot store", func() {
		var (
			store *robot.Store
			s     *scaler.Scaler
		)

		BeforeEach(func() {
			store = newStore()
			s = scaler.New(store)
		})

		It("fails on an unknown robot without partial parameters", func() {
			p, err := s.Scale("Robot_Z", intention(50, 0, nil), 0.9)
			Expect(p).To(BeNil())
			Expect(err).To(MatchError(dynamo.ErrUnknownRobot))

			var unknown *dynamo.UnknownRobotError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.RobotID).To(Equal("Robot_Z"))
			Expect(unknown.Available).To(ContainElement("Robot_A"))
		})

		It("falls back to the intention's robot id", func() {
			in := intention(30, 0, nil)
			in.RobotID = "Robot_B"

			p, err := s.Scale("", in, 0.9)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.RobotID).To(Equal("Robot_B"))
			Expect(p.Acceleration).To(HaveLen(7))
		})

		It("rejects a posture of the wrong length", func() {
			_, err := s.Scale("Robot_A", intention(30, 0, dynamo.Vector{0, 0, 0}), 0.9)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		DescribeTable("leaves feasible candidates untouched",
			func(id string, accel, vel float64) {
				m, err := store.Load(id)
				Expect(err).NotTo(HaveOccurred())

				p, err := s.Scale(id, intention(accel, vel, nil), 0.9)
				Expect(err).NotTo(HaveOccurred())
				Expect(p.Feasible).To(BeTrue())
				Expect(p.Scaled).To(BeFalse())
				Expect(p.ScaleFactor).To(Equal(1.0))
				Expect(p.Refinements).To(BeZero())
				Expect(p.Acceleration).To(Equal(m.AccelerationLimit.Scale(accel / 100)))
				Expect(p.Velocity).To(Equal(m.VelocityLimit.Scale(vel / 100)))
				Expect(p.Posture).To(Equal(dynamo.Zeros(m.DOF)))
				Expect(p.Version).To(Equal(scaler.Version))
			},
			Entry("UR5e gentle", "Robot_A", 30.0, 0.0),
			Entry("UR5e brisk", "Robot_A", 85.0, 50.0),
			Entry("Panda nominal", "Robot_B", 50.0, 50.0),
			Entry("IRB 140 brisk", "ABB_IRB140", 85.0, 80.0),
		)

		DescribeTable("brings infeasible candidates within limits",
			func(id string, accel, vel float64, posture dynamo.Vector, margin float64) {
				m, err := store.Load(id)
				Expect(err).NotTo(HaveOccurred())

				p, err := s.Scale(id, intention(accel, vel, posture), margin)
				Expect(err).NotTo(HaveOccurred())
				Expect(p.Feasible).To(BeFalse())
				Expect(p.ScaleFactor).To(And(BeNumerically(">", 0), BeNumerically("<", 1)))
				Expect(p.Refinements).To(And(BeNumerically(">=", 1), BeNumerically("<=", scaler.DefaultMaxRefinements)))

				Expect(p.Report.Feasible).To(BeTrue())
				Expect(p.Report.MaxRatio).To(BeNumerically("<=", 1+eps))
				Expect(maxTorqueRatio(m, p.Torque, margin)).To(BeNumerically("<=", 1+eps))

				recomputed, err := dynamics.New().RequiredTorque(m, p.Profile())
				Expect(err).NotTo(HaveOccurred())
				Expect(maxTorqueRatio(m, recomputed, margin)).To(BeNumerically("<=", 1+eps))
			},
			Entry("UR5e flat out", "Robot_A", 100.0, 100.0, dynamo.Vector(nil), 0.9),
			Entry("Panda flat out", "Robot_B", 100.0, 95.0, dynamo.Vector(nil), 0.9),
			Entry("heavy arm at rest posture", "Heavy_2", 80.0, 0.0, dynamo.Vector(nil), 0.9),
			Entry("heavy arm against gravity", "Heavy_2", 80.0, 0.0, flipped, 0.9),
			Entry("heavy arm against gravity while moving", "Heavy_2", 80.0, 80.0, flipped, 0.9),
			Entry("heavy arm with a tight margin", "Heavy_2", 80.0, 0.0, flipped, 0.7),
		)

		It("needs a second pass when gravity adds to the motion torque", func() {
			p, err := s.Scale("Heavy_2", intention(80, 0, flipped), 0.9)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Initial.ScaleFactor).To(BeNumerically("~", 0.4319, 1e-3))
			Expect(p.Refinements).To(Equal(2))
			Expect(p.ScaleFactor).To(BeNumerically("~", 0.2244, 1e-3))
			Expect(p.Approximate).To(BeTrue())
			Expect(p.Report.Approximate).To(BeTrue())
		})

		It("never grows the scale factor as the margin shrinks", func() {
			prev := 1.0
			for _, margin := range []float64{1, 0.95, 0.9, 0.8, 0.7} {
				p, err := s.Scale("Heavy_2", intention(80, 0, flipped), margin)
				Expect(err).NotTo(HaveOccurred())
				Expect(p.ScaleFactor).To(BeNumerically("<=", prev+eps), "margin %.2f", margin)
				prev = p.ScaleFactor
			}
		})

		It("fails at once when gravity alone breaks a limit", func() {
			p, err := s.Scale("Weak_2", intention(80, 0, nil), 0.9)
			Expect(p).To(BeNil())
			Expect(err).To(MatchError(dynamo.ErrStillInfeasible))

			var still *scaler.StillInfeasibleError
			Expect(errors.As(err, &still)).To(BeTrue())
			Expect(still.Static).To(BeTrue())
			Expect(still.Verdict.Exceeded).To(Equal([]int{1}))
			Expect(still.Verdict.Approximate).To(BeTrue())
		})

		It("never lowers required torque as accel_percent rises", func() {
			s = scaler.New(store, scaler.WithSolver(dynamics.WithoutGravity()))

			for _, id := range []string{"Robot_A", "Robot_B", "ABB_IRB140"} {
				var prev dynamo.Vector
				for pct := 0.0; pct <= 100; pct += 10 {
					v, err := s.Check(id, intention(pct, 0, nil), 0.9)
					Expect(err).NotTo(HaveOccurred())

					torque, ok := v.Report(feasibility.Torque)
					Expect(ok).To(BeTrue())
					for i := range prev {
						Expect(torque.Required[i]).To(BeNumerically(">=", prev[i]-eps), "%s joint %d at %.0f%%", id, i, pct)
					}
					prev = torque.Required
				}
			}
		})
	})
})

var _ = Describe("ScaleProfile", func() {
	It("validates the profile against the model", func() {
		s := scaler.New(robot.NewDefaultStore())
		_, err := s.ScaleProfile("Robot_A", dynamo.ZeroState(5), 0.9)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("holds a feasible profile as is", func() {
		s := scaler.New(robot.NewDefaultStore())
		profile := dynamo.ZeroState(6)
		profile.Acceleration[0] = 1

		p, err := s.ScaleProfile("Robot_A", profile, 0.9)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.ScaleFactor).To(Equal(1.0))
		Expect(p.Acceleration).To(Equal(profile.Acceleration))
		Expect(p.OriginalPercent).To(BeNil())
	})
})

var _ = Describe("ScaleTrajectory", func() {
	var s *scaler.Scaler

	BeforeEach(func() {
		s = scaler.New(newStore())
	})

	It("applies one factor to every sample and keeps positions", func() {
		samples := make([]dynamo.JointState, 0, 3)
		for _, f := range []float64{20, 50, 80} {
			samples = append(samples, dynamo.JointState{
				Position:     flipped.Clone(),
				Velocity:     dynamo.Vector{0.5, 0.5},
				Acceleration: dynamo.Vector{f, f},
			})
		}

		res, err := s.ScaleTrajectory("Heavy_2", samples, 0.9)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Feasible).To(BeFalse())
		Expect(res.Scaled).To(BeTrue())
		Expect(res.Report.Feasible).To(BeTrue())
		Expect(res.Samples).To(HaveLen(3))
		Expect(res.Torques).To(HaveLen(3))

		for k, sample := range res.Samples {
			Expect(sample.Position).To(Equal(samples[k].Position))
			for i := range sample.Acceleration {
				Expect(sample.Acceleration[i]).To(BeNumerically("~", samples[k].Acceleration[i]*res.ScaleFactor, eps))
				Expect(sample.Velocity[i]).To(BeNumerically("~", samples[k].Velocity[i]*res.ScaleFactor, eps))
			}
		}
		Expect(res.PeakTorque[1]).To(BeNumerically("<=", 22*0.9*(1+eps)))
		Expect(samples[2].Acceleration[0]).To(Equal(80.0))
	})

	It("rejects an empty trajectory", func() {
		_, err := s.ScaleTrajectory("Heavy_2", nil, 0.9)
		Expect(err).To(MatchError(dynamo.ErrInvalidState))
	})

	It("rejects a malformed sample", func() {
		bad := []dynamo.JointState{dynamo.ZeroState(2), dynamo.ZeroState(3)}
		_, err := s.ScaleTrajectory("Heavy_2", bad, 0.9)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})

var _ = Describe("batch evaluation", func() {
	var s *scaler.Scaler

	BeforeEach(func() {
		s = scaler.New(newStore(), scaler.WithConcurrency(2))
	})

	It("compares robots independently and in order", func() {
		ids := []string{"Robot_A", "Robot_Z", "Heavy_2", "Robot_B"}
		results, err := s.Compare(context.Background(), intention(80, 0, nil), ids, 0.9)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(len(ids)))

		for i, r := range results {
			Expect(r.Request.RobotID).To(Equal(ids[i]))
		}
		Expect(results[0].Err).NotTo(HaveOccurred())
		Expect(results[0].Params.Feasible).To(BeTrue())
		Expect(results[1].Params).To(BeNil())
		Expect(results[1].Err).To(MatchError(dynamo.ErrUnknownRobot))
		Expect(results[2].Params.Scaled).To(BeTrue())
		Expect(results[3].Params.RobotID).To(Equal("Robot_B"))
	})

	It("stops when the context is already done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.ScaleBatch(ctx, []scaler.Request{{RobotID: "Robot_A", Intention: intention(10, 0, nil), Margin: 0.9}})
		Expect(err).To(MatchError(context.Canceled))
	})

	It("sweeps accel_percent in order", func() {
		percents := []float64{0, 25, 50, 75, 100}
		points, err := s.Sweep(context.Background(), "Robot_A", intention(50, 0, nil), 0.9, percents)
		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(HaveLen(len(percents)))

		for i, pt := range points[:4] {
			Expect(pt.Percent).To(Equal(percents[i]))
			Expect(pt.Err).NotTo(HaveOccurred())
			Expect(pt.Feasible).To(BeTrue())
			Expect(pt.ScaleFactor).To(Equal(1.0))
		}

		// 100 % of the acceleration limit is over a 90 % margin
		last := points[4]
		Expect(last.Feasible).To(BeFalse())
		Expect(last.MaxRatio).To(BeNumerically("~", 1/0.9, 1e-9))
		Expect(last.ScaleFactor).To(BeNumerically("~", 0.9, 1e-6))
	})

	It("reports invalid sweep points per point", func() {
		points, err := s.Sweep(context.Background(), "Robot_A", intention(50, 0, nil), 0.9, []float64{50, 150})
		Expect(err).NotTo(HaveOccurred())
		Expect(points[0].Err).NotTo(HaveOccurred())
		Expect(points[1].Err).To(MatchError(dynamo.ErrInvalidIntention))
	})
})

var _ = Describe("metrics", func() {
	It("counts evaluations by outcome", func() {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		DeferCleanup(func() { _ = provider.Shutdown(context.Background()) })

		s := scaler.New(newStore(), scaler.WithMeter(provider.Meter("scaler-test")))
		_, _ = s.Scale("Robot_A", intention(30, 0, nil), 0.9)
		_, _ = s.Scale("Heavy_2", intention(80, 0, flipped), 0.9)
		_, _ = s.Scale("Weak_2", intention(80, 0, nil), 0.9)
		_, _ = s.Scale("Robot_Z", intention(30, 0, nil), 0.9)

		var rm metricdata.ResourceMetrics
		Expect(reader.Collect(context.Background(), &rm)).To(Succeed())

		counts := countsByOutcome(rm, "torquescale.scaler.evaluations")
		Expect(counts).To(Equal(map[string]int64{
			scaler.OutcomeFeasible:   1,
			scaler.OutcomeScaled:     1,
			scaler.OutcomeInfeasible: 1,
			scaler.OutcomeRejected:   1,
		}))
	})
})

func countsByOutcome(rm metricdata.ResourceMetrics, name string) map[string]int64 {
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("outcome")
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}
