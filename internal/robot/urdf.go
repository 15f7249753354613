package robot

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

type urdfRobot struct {
	Name   string      `xml:"name,attr"`
	Links  []urdfLink  `xml:"link"`
	Joints []urdfJoint `xml:"joint"`
}

type urdfLink struct {
	Name     string        `xml:"name,attr"`
	Inertial *urdfInertial `xml:"inertial"`
}

type urdfInertial struct {
	Origin urdfOrigin `xml:"origin"`
	Mass   struct {
		Value float64 `xml:"value,attr"`
	} `xml:"mass"`
	Inertia struct {
		Ixx float64 `xml:"ixx,attr"`
		Ixy float64 `xml:"ixy,attr"`
		Ixz float64 `xml:"ixz,attr"`
		Iyy float64 `xml:"iyy,attr"`
		Iyz float64 `xml:"iyz,attr"`
		Izz float64 `xml:"izz,attr"`
	} `xml:"inertia"`
}

type urdfOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type urdfJoint struct {
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr"`
	Origin urdfOrigin `xml:"origin"`
	Parent struct {
		Link string `xml:"link,attr"`
	} `xml:"parent"`
	Child struct {
		Link string `xml:"link,attr"`
	} `xml:"child"`
	Axis *struct {
		XYZ string `xml:"xyz,attr"`
	} `xml:"axis"`
	Limit *struct {
		Effort   float64 `xml:"effort,attr"`
		Velocity float64 `xml:"velocity,attr"`
	} `xml:"limit"`
}

// URDFChain is the serial chain extracted from a URDF document.
type URDFChain struct {
	Name     string
	Chain    []Joint
	Links    []Link
	Effort   dynamo.Vector
	Velocity dynamo.Vector
}

// ParseURDF extracts the actuated serial chain from a URDF document.
// Fixed joints are folded into the neighbouring links, side branches
// without actuated joints (sensors, flanges) are merged as rigid mass, and
// prismatic or floating joints are rejected.
func ParseURDF(r io.Reader) (*URDFChain, error) {
	var doc urdfRobot
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("robot: decode urdf: %w", err)
	}

	links := make(map[string]urdfLink, len(doc.Links))
	for _, l := range doc.Links {
		links[l.Name] = l
	}
	children := make(map[string][]urdfJoint)
	isChild := make(map[string]bool)
	for _, j := range doc.Joints {
		children[j.Parent.Link] = append(children[j.Parent.Link], j)
		isChild[j.Child.Link] = true
	}

	var root string
	for _, l := range doc.Links {
		if !isChild[l.Name] {
			if root != "" {
				return nil, fmt.Errorf("%w: urdf has several root links (%s, %s)", dynamo.ErrInvalidModel, root, l.Name)
			}
			root = l.Name
		}
	}
	if root == "" {
		return nil, fmt.Errorf("%w: urdf has no root link", dynamo.ErrInvalidModel)
	}

	w := &urdfWalker{links: links, children: children}
	out := &URDFChain{Name: doc.Name}
	pending := spatial.IdentityPose()
	var body spatial.Inertia
	started := false

	for name := root; ; {
		if started {
			bodies, err := w.rigidBodies(name, spatial.IdentityPose())
			if err != nil {
				return nil, err
			}
			for _, b := range bodies {
				body = body.Merge(b.Transform(pending))
			}
		}

		next, err := w.actuatedChild(name)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}

		origin, err := next.Origin.pose()
		if err != nil {
			return nil, fmt.Errorf("robot: joint %s: %w", next.Name, err)
		}
		switch next.Type {
		case "fixed":
			pending = pending.Compose(origin)
		case "revolute", "continuous":
			if started {
				out.Links = append(out.Links, Link{Name: name, Inertia: body})
			}
			axis := r3.Vec{X: 1}
			if next.Axis != nil && next.Axis.XYZ != "" {
				if axis, err = parseVec(next.Axis.XYZ); err != nil {
					return nil, fmt.Errorf("robot: joint %s axis: %w", next.Name, err)
				}
			}
			out.Chain = append(out.Chain, Joint{Name: next.Name, Origin: pending.Compose(origin), Axis: axis})
			effort, velocity := 0.0, 0.0
			if next.Limit != nil {
				effort, velocity = next.Limit.Effort, next.Limit.Velocity
			}
			out.Effort = append(out.Effort, effort)
			out.Velocity = append(out.Velocity, velocity)
			pending = spatial.IdentityPose()
			body = spatial.Inertia{}
			started = true
		default:
			return nil, fmt.Errorf("%w: joint %s has type %q", dynamo.ErrUnsupportedJoint, next.Name, next.Type)
		}
		name = next.Child.Link
	}

	if !started {
		return nil, fmt.Errorf("%w: urdf has no revolute joints", dynamo.ErrInvalidModel)
	}
	out.Links = append(out.Links, Link{Name: out.Chain[len(out.Chain)-1].Name + "_link", Inertia: body})
	return out, nil
}

type urdfWalker struct {
	links    map[string]urdfLink
	children map[string][]urdfJoint
}

// actuatedChild picks the joint leaving link that continues the actuated
// chain. Branches without actuated joints are ignored here and merged by
// rigidBodies.
func (w *urdfWalker) actuatedChild(link string) (*urdfJoint, error) {
	var found *urdfJoint
	for i := range w.children[link] {
		j := &w.children[link][i]
		if !w.leadsToActuated(j) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: link %s branches into %s and %s", dynamo.ErrInvalidModel, link, found.Name, j.Name)
		}
		found = j
	}
	return found, nil
}

func (w *urdfWalker) leadsToActuated(j *urdfJoint) bool {
	if j.Type != "fixed" {
		return true
	}
	for i := range w.children[j.Child.Link] {
		if w.leadsToActuated(&w.children[j.Child.Link][i]) {
			return true
		}
	}
	return false
}

// rigidBodies returns the inertial of link plus those of every fixed-only
// branch hanging off it, all expressed in link's frame. An inertial or
// mount that does not parse fails the whole model rather than dropping mass.
func (w *urdfWalker) rigidBodies(link string, at spatial.Pose) ([]spatial.Inertia, error) {
	var out []spatial.Inertia
	if l, ok := w.links[link]; ok && l.Inertial != nil {
		b, err := l.Inertial.body()
		if err != nil {
			return nil, fmt.Errorf("%w: link %s inertial: %w", dynamo.ErrInvalidModel, link, err)
		}
		out = append(out, b.Transform(at))
	}
	for i := range w.children[link] {
		j := &w.children[link][i]
		if j.Type != "fixed" || w.leadsToActuated(j) {
			continue
		}
		origin, err := j.Origin.pose()
		if err != nil {
			return nil, fmt.Errorf("%w: joint %s: %w", dynamo.ErrInvalidModel, j.Name, err)
		}
		sub, err := w.rigidBodies(j.Child.Link, at.Compose(origin))
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (in *urdfInertial) body() (spatial.Inertia, error) {
	pose, err := in.Origin.pose()
	if err != nil {
		return spatial.Inertia{}, err
	}
	t := in.Inertia
	b := spatial.Inertia{
		Mass:   in.Mass.Value,
		Tensor: spatial.Symmetric(t.Ixx, t.Iyy, t.Izz, t.Ixy, t.Ixz, t.Iyz),
	}
	return b.Transform(pose), nil
}

func (o urdfOrigin) pose() (spatial.Pose, error) {
	p := spatial.IdentityPose()
	if o.XYZ != "" {
		v, err := parseVec(o.XYZ)
		if err != nil {
			return p, err
		}
		p.P = v
	}
	if o.RPY != "" {
		v, err := parseVec(o.RPY)
		if err != nil {
			return p, err
		}
		p.R = spatial.RPY(v.X, v.Y, v.Z)
	}
	return p, nil
}

func parseVec(s string) (r3.Vec, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return r3.Vec{}, fmt.Errorf("expected 3 values, got %q", s)
	}
	var xyz [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("parse %q: %w", s, err)
		}
		xyz[i] = v
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
