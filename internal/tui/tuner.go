package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
	"github.com/san-kum/torquescale/internal/viz"
)

type state int

const (
	stateMenu state = iota
	stateTune
)

const (
	paramAccel  = "accel %"
	paramVel    = "vel %"
	paramMargin = "margin"
)

var steps = map[string]float64{
	paramAccel:  5,
	paramVel:    5,
	paramMargin: 0.05,
}

// Tuner is the bubbletea model of the interactive tuner: pick a robot, then
// adjust the intention and margin while the result is re-evaluated on every
// change.
type Tuner struct {
	scaler *scaler.Scaler
	models scaler.Models
	styles viz.Styles

	state  state
	cursor int
	robots []string
	robot  *robot.Model

	intention  scaler.TaskIntention
	params     map[string]float64
	initial    map[string]float64
	paramNames []string
	paramIdx   int
	editing    bool
	editBuf    string

	verdict feasibility.Verdict
	result  *scaler.TaskParameters
	err     error

	width  int
	height int
}

func NewTuner(s *scaler.Scaler, models scaler.Models, robotIDs []string, in scaler.TaskIntention, margin float64, theme viz.Theme) *Tuner {
	params := map[string]float64{
		paramAccel:  in.Percent[scaler.AccelPercent],
		paramVel:    in.Percent[scaler.VelPercent],
		paramMargin: margin,
	}
	initial := make(map[string]float64, len(params))
	for k, v := range params {
		initial[k] = v
	}
	return &Tuner{
		scaler:     s,
		models:     models,
		styles:     viz.NewStyles(theme),
		robots:     robotIDs,
		intention:  in,
		params:     params,
		initial:    initial,
		paramNames: []string{paramAccel, paramVel, paramMargin},
		width:      80,
		height:     24,
	}
}

// Select jumps straight to tuning robotID.
func (m *Tuner) Select(robotID string) error {
	rm, err := m.models.Load(robotID)
	if err != nil {
		return err
	}
	m.robot = rm
	m.state = stateTune
	m.evaluate()
	return nil
}

func (m *Tuner) Init() tea.Cmd { return nil }

func (m *Tuner) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m *Tuner) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateTune:
		return m.tuneKey(msg)
	}
	return m, nil
}

func (m *Tuner) menuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.robots)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.robots) == 0 {
			return m, nil
		}
		if err := m.Select(m.robots[m.cursor]); err != nil {
			m.err = err
		}
	}
	return m, nil
}

func (m *Tuner) tuneKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			if _, err := fmt.Sscanf(m.editBuf, "%f", &val); err == nil {
				m.params[m.paramNames[m.paramIdx]] = val
				m.evaluate()
			}
			m.editing = false
			m.editBuf = ""
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.state = stateMenu
		m.robot = nil
	case "up", "k":
		if m.paramIdx > 0 {
			m.paramIdx--
		}
	case "down", "j":
		if m.paramIdx < len(m.paramNames)-1 {
			m.paramIdx++
		}
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "enter", " ":
		m.editing = true
		m.editBuf = fmt.Sprintf("%.2f", m.params[m.paramNames[m.paramIdx]])
	case "r":
		for k, v := range m.initial {
			m.params[k] = v
		}
		m.evaluate()
	}
	return m, nil
}

// adjust moves the selected parameter one step and clamps it to its range.
func (m *Tuner) adjust(dir float64) {
	name := m.paramNames[m.paramIdx]
	v := m.params[name] + dir*steps[name]
	if name == paramMargin {
		v = math.Min(math.Max(v, 0.05), 1)
	} else {
		v = math.Min(math.Max(v, 0), 100)
	}
	m.params[name] = math.Round(v*100) / 100
	m.evaluate()
}

func (m *Tuner) evaluate() {
	if m.robot == nil {
		return
	}
	in := m.intention.
		WithPercent(scaler.AccelPercent, m.params[paramAccel]).
		WithPercent(scaler.VelPercent, m.params[paramVel])
	margin := m.params[paramMargin]

	m.result, m.err = nil, nil
	v, err := m.scaler.Check(m.robot.ID, in, margin)
	if err != nil {
		m.err = err
		return
	}
	m.verdict = v
	m.result, m.err = m.scaler.Scale(m.robot.ID, in, margin)
}

func (m *Tuner) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateTune:
		return m.viewTune()
	}
	return ""
}

func (m *Tuner) viewMenu() string {
	var b strings.Builder
	st := m.styles

	b.WriteString("\n")
	b.WriteString("      " + st.Title.Render("t o r q u e s c a l e") + "\n")
	b.WriteString(st.Separator(34) + "\n\n")

	for i, id := range m.robots {
		if i == m.cursor {
			b.WriteString("    " + st.Selected.Render("▸ "+id) + "\n")
		} else {
			b.WriteString("      " + st.Subtle.Render(id) + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + st.Over.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(st.KeyHint.Render("    ↑↓ select   enter tune   q quit") + "\n")
	return b.String()
}

func (m *Tuner) viewTune() string {
	var b strings.Builder
	st := m.styles

	title := m.robot.ID
	if m.robot.Name != "" {
		title += "  " + st.Subtle.Render(m.robot.Name)
	}
	b.WriteString("\n  " + st.Title.Render(title) + "\n")
	b.WriteString(st.Separator(50) + "\n\n")

	for i, name := range m.paramNames {
		val := fmt.Sprintf("%8.2f", m.params[name])
		if m.editing && i == m.paramIdx {
			val = fmt.Sprintf("%8s", m.editBuf+"▋")
		}
		if i == m.paramIdx {
			b.WriteString("  " + st.Selected.Render(fmt.Sprintf("▸ %-10s%s", name, val)) + "\n")
		} else {
			b.WriteString("    " + st.Subtle.Render(fmt.Sprintf("%-10s%s", name, val)) + "\n")
		}
	}
	b.WriteString("\n")

	if rep, ok := m.verdict.Report(feasibility.Torque); ok {
		b.WriteString("  " + st.Header.Render("requested") + "\n")
		for i := range rep.Ratio {
			b.WriteString(fmt.Sprintf("  J%-2d %s %5.2fx\n", i, st.UtilizationBar(rep.Ratio[i], 24), rep.Ratio[i]))
		}
		b.WriteString("  " + st.MetricLabel.Render("binding") + st.MetricValue.Render(m.verdict.Binding.String()) + "\n\n")
	}

	switch {
	case m.err != nil:
		b.WriteString("  " + st.Over.Render(m.err.Error()) + "\n")
	case m.result != nil:
		b.WriteString("  " + st.MetricLabel.Render("scale") + st.MetricValue.Render(fmt.Sprintf("%.3f", m.result.ScaleFactor)) + "\n")
		b.WriteString("  " + st.MetricLabel.Render("passes") + st.MetricValue.Render(fmt.Sprint(m.result.Refinements)) + "\n")
		b.WriteString("  " + st.MetricLabel.Render("emitted") + st.MetricValue.Render(fmt.Sprintf("%.2fx", m.result.Report.MaxRatio)) + "\n")
		if m.result.Approximate {
			b.WriteString("  " + st.High.Render("approximate model") + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(st.KeyHint.Render("  ↑↓ select  ←→ adjust  enter edit  r reset  esc robots  q quit") + "\n")
	return b.String()
}

// Scale returns the outcome of the last evaluation.
func (m *Tuner) Scale() (*scaler.TaskParameters, error) {
	return m.result, m.err
}

// Percent returns the current setting of a tuned parameter.
func (m *Tuner) Percent(p scaler.Param) float64 {
	switch p {
	case scaler.AccelPercent:
		return m.params[paramAccel]
	case scaler.VelPercent:
		return m.params[paramVel]
	}
	return math.NaN()
}

func (m *Tuner) Margin() float64 { return m.params[paramMargin] }

// Run starts the tuner full screen and returns the final result.
func Run(t *Tuner) (*scaler.TaskParameters, error) {
	p := tea.NewProgram(t, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return nil, err
	}
	return t.Scale()
}
