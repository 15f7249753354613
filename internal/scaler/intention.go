package scaler

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/robot"
	"gopkg.in/yaml.v3"
)

// TaskKind names what the robot is asked to do. It is carried through to
// the output untouched.
type TaskKind string

const (
	TaskPick       TaskKind = "pick"
	TaskPlace      TaskKind = "place"
	TaskMove       TaskKind = "move"
	TaskMoveLinear TaskKind = "move_linear"
	TaskInspect    TaskKind = "inspect"
)

var taskKinds = []TaskKind{TaskPick, TaskPlace, TaskMove, TaskMoveLinear, TaskInspect}

// TaskKinds lists the accepted task kinds.
func TaskKinds() []TaskKind { return slices.Clone(taskKinds) }

// Param is a normalized percentage parameter of an intention.
type Param string

const (
	AccelPercent Param = "accel_percent"
	VelPercent   Param = "vel_percent"
)

// paramAliases maps accepted spellings onto canonical parameters.
var paramAliases = map[string]Param{
	"accel_percent": AccelPercent,
	"vel_percent":   VelPercent,
	"speed_percent": VelPercent,
}

// Target is a task-specific geometric target. Targets are passed through
// to TaskParameters unmodified.
type Target struct {
	Object   string    `json:"object,omitempty" yaml:"object,omitempty"`
	Position []float64 `json:"position,omitempty" yaml:"position,omitempty"`
	Weight   float64   `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// TaskIntention is the robot-independent request: a task kind and the
// motion intensity as a percentage of whatever robot ends up running it.
type TaskIntention struct {
	Task    TaskKind          `json:"task" yaml:"task"`
	RobotID string            `json:"robot,omitempty" yaml:"robot,omitempty"`
	Percent map[Param]float64 `json:"percent" yaml:"percent"`
	Targets []Target          `json:"targets,omitempty" yaml:"targets,omitempty"`
	// Posture is the reference joint configuration in radians. Empty means
	// the zero configuration.
	Posture dynamo.Vector `json:"posture,omitempty" yaml:"posture,omitempty"`
}

// NewTaskIntention builds and validates an intention. Percent keys may use
// any accepted spelling.
func NewTaskIntention(task TaskKind, percent map[string]float64, targets ...Target) (TaskIntention, error) {
	in := TaskIntention{Task: task, Percent: make(map[Param]float64, len(percent)), Targets: targets}
	for key, value := range percent {
		p, ok := paramAliases[key]
		if !ok {
			return TaskIntention{}, fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidIntention, key)
		}
		if _, dup := in.Percent[p]; dup {
			return TaskIntention{}, fmt.Errorf("%w: parameter %q given twice", dynamo.ErrInvalidIntention, p)
		}
		in.Percent[p] = value
	}
	if err := in.Validate(); err != nil {
		return TaskIntention{}, err
	}
	return in, nil
}

// Validate enforces the boundary rules: a known task kind, accel_percent
// present, every percentage within [0, 100] and a finite posture.
func (in TaskIntention) Validate() error {
	if !slices.Contains(taskKinds, in.Task) {
		return fmt.Errorf("%w: unknown task kind %q", dynamo.ErrInvalidIntention, in.Task)
	}
	if _, ok := in.Percent[AccelPercent]; !ok {
		return fmt.Errorf("%w: %s is required", dynamo.ErrInvalidIntention, AccelPercent)
	}
	for p, v := range in.Percent {
		if p != AccelPercent && p != VelPercent {
			return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidIntention, p)
		}
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: %s = %g outside [0, 100]", dynamo.ErrInvalidIntention, p, v)
		}
	}
	if !in.Posture.IsValid() {
		return fmt.Errorf("%w: posture: %w", dynamo.ErrInvalidIntention, dynamo.ErrInvalidState)
	}
	return nil
}

// WithPercent returns a copy of in with p set to value.
func (in TaskIntention) WithPercent(p Param, value float64) TaskIntention {
	out := in
	out.Percent = maps.Clone(in.Percent)
	if out.Percent == nil {
		out.Percent = make(map[Param]float64, 1)
	}
	out.Percent[p] = value
	return out
}

// Candidate maps the percentages linearly onto m's own limits at the
// reference posture. A missing vel_percent means the profile starts from
// rest.
func (in TaskIntention) Candidate(m *robot.Model) (dynamo.JointState, error) {
	q := dynamo.Zeros(m.DOF)
	if len(in.Posture) > 0 {
		if err := dynamo.CheckDim("posture", in.Posture, m.DOF); err != nil {
			return dynamo.JointState{}, err
		}
		q = in.Posture.Clone()
	}
	return dynamo.JointState{
		Position:     q,
		Velocity:     m.VelocityLimit.Scale(in.Percent[VelPercent] / 100),
		Acceleration: m.AccelerationLimit.Scale(in.Percent[AccelPercent] / 100),
	}, nil
}

// intentionDoc is the on-disk shape; Percent keys are resolved through
// paramAliases.
type intentionDoc struct {
	Task    TaskKind           `yaml:"task"`
	RobotID string             `yaml:"robot"`
	Percent map[string]float64 `yaml:"percent"`
	Targets []Target           `yaml:"targets"`
	Posture dynamo.Vector      `yaml:"posture"`
	Degrees bool               `yaml:"degrees"`
}

// DecodeIntention reads one YAML (or JSON) intention, rejecting unknown
// fields. With degrees: true the posture is given in degrees.
func DecodeIntention(r io.Reader) (TaskIntention, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc intentionDoc
	if err := dec.Decode(&doc); err != nil {
		return TaskIntention{}, fmt.Errorf("%w: decode: %w", dynamo.ErrInvalidIntention, err)
	}

	in, err := NewTaskIntention(doc.Task, doc.Percent, doc.Targets...)
	if err != nil {
		return TaskIntention{}, err
	}
	in.RobotID = doc.RobotID
	in.Posture = doc.Posture
	if doc.Degrees && doc.Posture != nil {
		in.Posture = robot.Degrees(doc.Posture...)
	}
	return in, in.Validate()
}
