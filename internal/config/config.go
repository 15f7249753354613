package config

import (
	"fmt"
	"os"

	"github.com/san-kum/torquescale/internal/dynamics"
	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRobot        = "Robot_A"
	DefaultAccelPercent = 50.0
	DefaultVelPercent   = 50.0
)

type Config struct {
	Robot          string          `yaml:"robot"`
	SafetyMargin   float64         `yaml:"safety_margin"`
	MaxRefinements int             `yaml:"max_refinements"`
	Gravity        []float64       `yaml:"gravity"`
	DescriptionDir string          `yaml:"description_dir,omitempty"`
	SpecSheets     string          `yaml:"spec_sheets,omitempty"`
	Intention      IntentionConfig `yaml:"intention"`
}

type IntentionConfig struct {
	Task         string    `yaml:"task"`
	AccelPercent float64   `yaml:"accel_percent"`
	VelPercent   float64   `yaml:"vel_percent"`
	Posture      []float64 `yaml:"posture,omitempty"`
	// Degrees marks a posture given in degrees.
	Degrees bool `yaml:"degrees,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Robot:          DefaultRobot,
		SafetyMargin:   scaler.DefaultSafetyMargin,
		MaxRefinements: scaler.DefaultMaxRefinements,
		Gravity:        []float64{0, 0, -dynamics.StandardGravity},
		Intention: IntentionConfig{
			Task:         string(scaler.TaskMove),
			AccelPercent: DefaultAccelPercent,
			VelPercent:   DefaultVelPercent,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the settings that do not depend on a robot model.
func (c *Config) Validate() error {
	if err := dynamo.ValidateMargin(c.SafetyMargin); err != nil {
		return err
	}
	if c.MaxRefinements < 0 {
		return fmt.Errorf("max_refinements must not be negative, got %d", c.MaxRefinements)
	}
	if len(c.Gravity) != 3 {
		return &dynamo.DimensionMismatchError{Field: "gravity", Want: 3, Got: len(c.Gravity)}
	}
	if !dynamo.Vector(c.Gravity).IsValid() {
		return fmt.Errorf("%w: gravity must be finite", dynamo.ErrInvalidModel)
	}
	return nil
}

// GetIntention builds the task intention described by the intention block.
func (c *Config) GetIntention() (scaler.TaskIntention, error) {
	percent := map[string]float64{string(scaler.AccelPercent): c.Intention.AccelPercent}
	if c.Intention.VelPercent != 0 {
		percent[string(scaler.VelPercent)] = c.Intention.VelPercent
	}
	in, err := scaler.NewTaskIntention(scaler.TaskKind(c.Intention.Task), percent)
	if err != nil {
		return scaler.TaskIntention{}, err
	}
	in.RobotID = c.Robot
	if len(c.Intention.Posture) > 0 {
		if c.Intention.Degrees {
			in.Posture = robot.Degrees(c.Intention.Posture...)
		} else {
			in.Posture = dynamo.Vector(c.Intention.Posture).Clone()
		}
	}
	return in, nil
}

// ApplyPreset replaces the intention percentages with a named preset.
func (c *Config) ApplyPreset(name string) error {
	p := GetPreset(name)
	if p == nil {
		return fmt.Errorf("unknown preset %q (have %v)", name, ListPresets())
	}
	c.Intention.AccelPercent = p.AccelPercent
	c.Intention.VelPercent = p.VelPercent
	if p.Task != "" {
		c.Intention.Task = p.Task
	}
	return nil
}

// GetEngine returns a dynamics engine using the configured gravity vector.
func (c *Config) GetEngine() *dynamics.Engine {
	return &dynamics.Engine{Gravity: r3.Vec{X: c.Gravity[0], Y: c.Gravity[1], Z: c.Gravity[2]}}
}

// GetStore assembles the model store: description documents first, then the
// built-in catalog, then estimates from spec sheets.
func (c *Config) GetStore() (*robot.Store, error) {
	var providers []robot.Provider

	if c.DescriptionDir != "" {
		p, err := robot.NewPreciseModelProvider(os.DirFS(c.DescriptionDir))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	providers = append(providers, robot.NewCatalogProvider())

	if c.SpecSheets != "" {
		f, err := os.Open(c.SpecSheets)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheets, err := robot.LoadSpecSheets(f)
		if err != nil {
			return nil, err
		}
		providers = append(providers, robot.NewApproximateModelProvider(sheets...))
	}

	return robot.NewStore(providers...)
}
