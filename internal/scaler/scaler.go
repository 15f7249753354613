package scaler

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/torquescale/internal/dynamics"
	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/robot"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	// DefaultSafetyMargin derates every limit to 90 % of its rated value.
	DefaultSafetyMargin = 0.9
	// DefaultMaxRefinements bounds the rescale-and-verify loop.
	DefaultMaxRefinements = 5

	// backoff keeps a refined profile strictly inside the boundary it was
	// solved for.
	backoff = 1e-9
)

// Solver computes the joint torque a state requires. *dynamics.Engine is
// the production implementation.
type Solver interface {
	RequiredTorque(m *robot.Model, s dynamo.JointState) (dynamo.Vector, error)
}

// Models resolves robot ids. *robot.Store is the production implementation.
type Models interface {
	Load(id string) (*robot.Model, error)
}

// Scaler turns intentions into robot-specific parameters. It holds no
// per-call state and is safe for concurrent use.
type Scaler struct {
	models         Models
	solver         Solver
	logger         *slog.Logger
	meter          metric.Meter
	inst           *instruments
	maxRefinements int
	concurrency    int
}

type Option func(*Scaler)

func WithSolver(solver Solver) Option {
	return func(s *Scaler) { s.solver = solver }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scaler) { s.logger = logger }
}

// WithMeter records evaluation metrics on meter instead of discarding them.
func WithMeter(meter metric.Meter) Option {
	return func(s *Scaler) { s.meter = meter }
}

// WithMaxRefinements sets how many rescale passes are tried before giving
// up. Negative values are treated as zero.
func WithMaxRefinements(n int) Option {
	return func(s *Scaler) { s.maxRefinements = max(n, 0) }
}

// WithConcurrency bounds the goroutines used by batch operations.
func WithConcurrency(n int) Option {
	return func(s *Scaler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(models Models, opts ...Option) *Scaler {
	s := &Scaler{
		models:         models,
		solver:         dynamics.New(),
		logger:         slog.New(slog.DiscardHandler),
		meter:          noop.NewMeterProvider().Meter(instrumentationScope),
		maxRefinements: DefaultMaxRefinements,
		concurrency:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inst = newInstruments(s.meter)
	return s
}

// Scale maps in onto robotID's limits and, when the result is infeasible,
// shrinks the whole motion profile until it is not. An empty robotID falls
// back to in.RobotID. The margin is validated before anything else runs.
func (s *Scaler) Scale(robotID string, in TaskIntention, margin float64) (*TaskParameters, error) {
	start := time.Now()
	if robotID == "" {
		robotID = in.RobotID
	}

	p, err := s.scale(robotID, in, margin)
	s.observe(robotID, p, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Scaler) scale(robotID string, in TaskIntention, margin float64) (*TaskParameters, error) {
	if err := dynamo.ValidateMargin(margin); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m, err := s.models.Load(robotID)
	if err != nil {
		return nil, err
	}

	candidate, err := in.Candidate(m)
	if err != nil {
		return nil, err
	}
	st, err := s.settle(m, []dynamo.JointState{candidate}, margin)
	if err != nil {
		return nil, err
	}

	p := s.build(m, st, margin)
	p.Task = in.Task
	p.Targets = in.Targets
	p.OriginalPercent = maps.Clone(in.Percent)
	p.EffectivePercent = make(map[Param]float64, len(in.Percent))
	for k, v := range in.Percent {
		p.EffectivePercent[k] = v * st.scale
	}
	return p, nil
}

// ScaleProfile runs the same pipeline on an explicit joint-space profile.
func (s *Scaler) ScaleProfile(robotID string, profile dynamo.JointState, margin float64) (*TaskParameters, error) {
	start := time.Now()
	p, err := s.scaleProfile(robotID, profile, margin)
	s.observe(robotID, p, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Scaler) scaleProfile(robotID string, profile dynamo.JointState, margin float64) (*TaskParameters, error) {
	if err := dynamo.ValidateMargin(margin); err != nil {
		return nil, err
	}
	m, err := s.models.Load(robotID)
	if err != nil {
		return nil, err
	}
	if err := profile.Validate(m.DOF); err != nil {
		return nil, err
	}

	st, err := s.settle(m, []dynamo.JointState{profile.Clone()}, margin)
	if err != nil {
		return nil, err
	}
	return s.build(m, st, margin), nil
}

// Rescale feeds the profile of an earlier result back through the
// pipeline, keeping its task and targets.
func (s *Scaler) Rescale(p *TaskParameters, margin float64) (*TaskParameters, error) {
	out, err := s.ScaleProfile(p.RobotID, p.Profile(), margin)
	if err != nil {
		return nil, err
	}
	out.Task = p.Task
	out.Targets = p.Targets
	return out, nil
}

// Check evaluates the unscaled candidate for in and reports the verdict.
func (s *Scaler) Check(robotID string, in TaskIntention, margin float64) (feasibility.Verdict, error) {
	if err := dynamo.ValidateMargin(margin); err != nil {
		return feasibility.Verdict{}, err
	}
	if err := in.Validate(); err != nil {
		return feasibility.Verdict{}, err
	}
	if robotID == "" {
		robotID = in.RobotID
	}
	m, err := s.models.Load(robotID)
	if err != nil {
		return feasibility.Verdict{}, err
	}
	candidate, err := in.Candidate(m)
	if err != nil {
		return feasibility.Verdict{}, err
	}
	_, v, err := s.evaluate(m, []dynamo.JointState{candidate}, margin)
	return v, err
}

// TrajectoryResult is the outcome of scaling a sampled trajectory with one
// uniform factor.
type TrajectoryResult struct {
	ID          uuid.UUID           `json:"id"`
	RobotID     string              `json:"robot_id"`
	Samples     []dynamo.JointState `json:"samples"`
	Torques     []dynamo.Vector     `json:"torques"`
	PeakTorque  dynamo.Vector       `json:"peak_torque"`
	ScaleFactor float64             `json:"scale_factor"`
	Feasible    bool                `json:"feasible"`
	Scaled      bool                `json:"scaled"`
	Refinements int                 `json:"refinements"`
	Margin      float64             `json:"safety_margin"`
	Approximate bool                `json:"approximate"`
	Initial     feasibility.Verdict `json:"initial_report"`
	Report      feasibility.Verdict `json:"report"`
}

// ScaleTrajectory checks the per-joint peaks over all samples and applies
// a single scale to every sample's velocity and acceleration. Positions are
// kept.
func (s *Scaler) ScaleTrajectory(robotID string, samples []dynamo.JointState, margin float64) (*TrajectoryResult, error) {
	if err := dynamo.ValidateMargin(margin); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("scaler: empty trajectory: %w", dynamo.ErrInvalidState)
	}
	m, err := s.models.Load(robotID)
	if err != nil {
		return nil, err
	}

	cloned := make([]dynamo.JointState, len(samples))
	for k, sample := range samples {
		if err := sample.Validate(m.DOF); err != nil {
			return nil, fmt.Errorf("scaler: sample %d: %w", k, err)
		}
		cloned[k] = sample.Clone()
	}

	st, err := s.settle(m, cloned, margin)
	if err != nil {
		return nil, err
	}
	return &TrajectoryResult{
		ID:          uuid.New(),
		RobotID:     m.ID,
		Samples:     st.samples,
		Torques:     st.torques,
		PeakTorque:  dynamics.Peak(m.DOF, st.torques),
		ScaleFactor: st.scale,
		Feasible:    st.initial.Feasible,
		Scaled:      st.scale < 1,
		Refinements: st.passes,
		Margin:      margin,
		Approximate: m.Approximate,
		Initial:     st.initial,
		Report:      st.final,
	}, nil
}

// settlement is a feasible set of samples and how it was reached.
type settlement struct {
	samples        []dynamo.JointState
	torques        []dynamo.Vector
	initial, final feasibility.Verdict
	scale          float64
	passes         int
}

// settle finds a uniform motion scale that makes every sample feasible. The
// first correction is the checker's 1/max(ratio); later passes hold the
// gravity torque fixed and treat the rest as linear in the scale. This step
// differs from repeating 1/ratio, which only creeps toward the limit while
// gravity holds a fixed share of the torque.
func (s *Scaler) settle(m *robot.Model, candidate []dynamo.JointState, margin float64) (settlement, error) {
	torques, v, err := s.evaluate(m, candidate, margin)
	if err != nil {
		return settlement{}, err
	}
	initial := v
	if v.Feasible {
		return settlement{samples: candidate, torques: torques, initial: v, final: v, scale: 1}, nil
	}

	gravity := make([]dynamo.Vector, len(candidate))
	for k, c := range candidate {
		if gravity[k], err = s.solver.RequiredTorque(m, c.Static()); err != nil {
			return settlement{}, err
		}
	}
	static, err := feasibility.Check(feasibility.Torque, dynamics.Peak(m.DOF, gravity), m.TorqueLimit, margin)
	if err != nil {
		return settlement{}, err
	}
	if !static.Feasible {
		sv := feasibility.Combine(static)
		sv.Approximate = m.Approximate
		return settlement{}, &StillInfeasibleError{RobotID: m.ID, Verdict: sv, Static: true}
	}

	scale := v.ScaleFactor
	passes := 0
	for passes < s.maxRefinements {
		passes++
		samples := scaleAll(candidate, scale)
		if torques, v, err = s.evaluate(m, samples, margin); err != nil {
			return settlement{}, err
		}
		s.logger.Debug("scaler: refinement pass",
			"robot", m.ID, "pass", passes, "scale", scale, "max_ratio", v.MaxRatio, "binding", v.Binding.String())
		if v.Feasible {
			return settlement{samples: samples, torques: torques, initial: initial, final: v, scale: scale, passes: passes}, nil
		}

		k := nextStep(m, torques, gravity, v, margin)
		if !(k > 0) {
			break
		}
		scale *= k
	}
	return settlement{}, &StillInfeasibleError{RobotID: m.ID, Passes: passes, Scale: scale, Verdict: v}
}

// evaluate computes every sample's torque and checks the per-joint peaks.
func (s *Scaler) evaluate(m *robot.Model, samples []dynamo.JointState, margin float64) ([]dynamo.Vector, feasibility.Verdict, error) {
	torques := make([]dynamo.Vector, len(samples))
	vel := make([]dynamo.Vector, len(samples))
	acc := make([]dynamo.Vector, len(samples))
	for k, sample := range samples {
		tau, err := s.solver.RequiredTorque(m, sample)
		if err != nil {
			return nil, feasibility.Verdict{}, err
		}
		torques[k] = tau
		vel[k] = sample.Velocity
		acc[k] = sample.Acceleration
	}

	peak := dynamo.JointState{Velocity: dynamics.Peak(m.DOF, vel), Acceleration: dynamics.Peak(m.DOF, acc)}
	v, err := feasibility.CheckState(m, dynamics.Peak(m.DOF, torques), peak, margin)
	if err != nil {
		return nil, feasibility.Verdict{}, err
	}
	return torques, v, nil
}

// nextStep returns the extra factor that puts the worst joint on its
// limit, assuming gravity torque stays fixed while the rest of the torque
// scales linearly with the profile.
func nextStep(m *robot.Model, torques, gravity []dynamo.Vector, v feasibility.Verdict, margin float64) float64 {
	k := 1.0
	for n, tau := range torques {
		for i := range tau {
			limit := m.TorqueLimit[i] * margin
			g := gravity[n][i]
			switch d := tau[i] - g; {
			case d > 0:
				k = min(k, (limit-g)/d)
			case d < 0:
				k = min(k, (-limit-g)/d)
			}
		}
	}
	for _, kind := range []feasibility.Constraint{feasibility.Velocity, feasibility.Acceleration} {
		if r, ok := v.Report(kind); ok && r.MaxRatio > 1 {
			k = min(k, 1/r.MaxRatio)
		}
	}
	return k * (1 - backoff)
}

func scaleAll(samples []dynamo.JointState, factor float64) []dynamo.JointState {
	out := make([]dynamo.JointState, len(samples))
	for k, sample := range samples {
		out[k] = sample.ScaleMotion(factor)
	}
	return out
}

func (s *Scaler) build(m *robot.Model, st settlement, margin float64) *TaskParameters {
	final := st.samples[0]
	return &TaskParameters{
		ID:           uuid.New(),
		Version:      Version,
		RobotID:      m.ID,
		Posture:      final.Position,
		Velocity:     final.Velocity,
		Acceleration: final.Acceleration,
		Torque:       st.torques[0],
		ScaleFactor:  st.scale,
		Feasible:     st.initial.Feasible,
		Scaled:       st.scale < 1,
		Refinements:  st.passes,
		Margin:       margin,
		Approximate:  m.Approximate,
		Initial:      st.initial,
		Report:       st.final,
	}
}

func (s *Scaler) observe(robotID string, p *TaskParameters, err error, elapsed time.Duration) {
	outcome := outcomeOf(p, err)
	scale, passes := 0.0, 0
	if p != nil {
		scale, passes = p.ScaleFactor, p.Refinements
	}
	s.inst.record(robotID, outcome, scale, passes, elapsed)

	switch {
	case err == nil:
		s.logger.Debug("scaler: evaluated",
			"robot", robotID, "outcome", outcome, "scale", scale, "refinements", passes, "max_ratio", p.Report.MaxRatio)
	case errors.Is(err, dynamo.ErrStillInfeasible):
		s.logger.Warn("scaler: no feasible scale", "robot", robotID, "error", err)
	default:
		s.logger.Debug("scaler: rejected", "robot", robotID, "error", err)
	}
}
