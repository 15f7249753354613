package robot

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Description is the structured robot-description document. A document
// either inlines a DH table with link inertials or points at a URDF file;
// limits given here override the URDF ones, and acceleration limits are
// always required because URDF does not carry them.
type Description struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Manufacturer string            `yaml:"manufacturer"`
	Convention   Convention        `yaml:"convention"`
	URDF         string            `yaml:"urdf"`
	Chain        []DH              `yaml:"chain"`
	Links        []LinkDescription `yaml:"links"`
	Limits       LimitDescription  `yaml:"limits"`
	Friction     dynamo.Vector     `yaml:"friction"`
}

type LinkDescription struct {
	Name string    `yaml:"name"`
	Mass float64   `yaml:"mass"`
	COM  []float64 `yaml:"com"`
	// Inertia lists ixx, iyy, izz, ixy, ixz, iyz about the centre of mass.
	Inertia []float64 `yaml:"inertia"`
}

type LimitDescription struct {
	Torque       dynamo.Vector `yaml:"torque"`
	Velocity     dynamo.Vector `yaml:"velocity"`
	Acceleration dynamo.Vector `yaml:"acceleration"`
	// Degrees marks velocity and acceleration given in deg/s and deg/s².
	Degrees bool `yaml:"degrees"`
}

// ParseDescription decodes one YAML description, rejecting unknown fields.
func ParseDescription(r io.Reader) (*Description, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var d Description
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("robot: decode description: %w", err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("%w: description has no id", dynamo.ErrInvalidModel)
	}
	return &d, nil
}

// Build turns a description into a model. Relative URDF paths resolve
// against dir inside fsys.
func (d *Description) Build(fsys fs.FS, dir string) (*Model, error) {
	m := &Model{
		ID:           d.ID,
		Name:         d.Name,
		Manufacturer: d.Manufacturer,
		Friction:     d.Friction.Clone(),
	}

	if d.URDF != "" {
		data, err := fs.ReadFile(fsys, path.Join(dir, d.URDF))
		if err != nil {
			return nil, fmt.Errorf("robot: %s: read urdf: %w", d.ID, err)
		}
		u, err := ParseURDF(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("robot: %s: %w", d.ID, err)
		}
		m.Chain, m.Links = u.Chain, u.Links
		m.TorqueLimit, m.VelocityLimit = u.Effort, u.Velocity
		if m.Name == "" {
			m.Name = u.Name
		}
		m.Source = "urdf:" + d.URDF
	} else {
		links, err := d.links()
		if err != nil {
			return nil, err
		}
		switch d.Convention {
		case Modified, "":
			m.Chain, m.Links = ModifiedDH(d.Chain), links
		case Standard:
			m.Chain, m.Links = StandardDH(d.Chain, links)
		default:
			return nil, fmt.Errorf("%w: %s: unknown convention %q", dynamo.ErrInvalidModel, d.ID, d.Convention)
		}
		m.Source = "description"
	}
	m.DOF = len(m.Chain)

	lim := d.Limits
	vel, acc := lim.Velocity.Clone(), lim.Acceleration.Clone()
	if lim.Degrees && vel != nil {
		vel = Degrees(vel...)
	}
	if lim.Degrees && acc != nil {
		acc = Degrees(acc...)
	}
	if lim.Torque != nil {
		m.TorqueLimit = lim.Torque.Clone()
	}
	if vel != nil {
		m.VelocityLimit = vel
	}
	m.AccelerationLimit = acc

	m.normalizeAxes()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Description) links() ([]Link, error) {
	out := make([]Link, len(d.Links))
	for i, l := range d.Links {
		if len(l.COM) != 3 {
			return nil, fmt.Errorf("%w: %s: link %d com needs 3 values, got %d", dynamo.ErrInvalidModel, d.ID, i, len(l.COM))
		}
		if len(l.Inertia) != 6 {
			return nil, fmt.Errorf("%w: %s: link %d inertia needs 6 values, got %d", dynamo.ErrInvalidModel, d.ID, i, len(l.Inertia))
		}
		in := l.Inertia
		out[i] = Link{
			Name: l.Name,
			Inertia: spatial.Inertia{
				Mass:   l.Mass,
				COM:    r3.Vec{X: l.COM[0], Y: l.COM[1], Z: l.COM[2]},
				Tensor: spatial.Symmetric(in[0], in[1], in[2], in[3], in[4], in[5]),
			},
		}
	}
	return out, nil
}

// PreciseModelProvider is the derived strategy: it builds models from the
// description documents (*.yaml, *.yml) at the root of a file system.
// Documents are parsed once, when the provider is created.
type PreciseModelProvider struct {
	models map[string]*Model
}

func NewPreciseModelProvider(fsys fs.FS) (*PreciseModelProvider, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("robot: list descriptions: %w", err)
	}

	p := &PreciseModelProvider{models: make(map[string]*Model)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("robot: read %s: %w", name, err)
		}
		d, err := ParseDescription(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("robot: %s: %w", name, err)
		}
		if _, dup := p.models[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate description id %q in %s", dynamo.ErrInvalidModel, d.ID, name)
		}
		m, err := d.Build(fsys, ".")
		if err != nil {
			return nil, fmt.Errorf("robot: %s: %w", name, err)
		}
		p.models[d.ID] = m
	}
	return p, nil
}

func (p *PreciseModelProvider) Name() string { return "description" }

func (p *PreciseModelProvider) IDs() []string { return sortedKeys(p.models) }

func (p *PreciseModelProvider) Provide(id string) (*Model, error) {
	m, ok := p.models[id]
	if !ok {
		return nil, &dynamo.UnknownRobotError{RobotID: id, Available: p.IDs()}
	}
	return m, nil
}
