package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
)

const barWidth = 20

var units = map[feasibility.Constraint]string{
	feasibility.Torque:       "N·m",
	feasibility.Velocity:     "rad/s",
	feasibility.Acceleration: "rad/s²",
}

// Renderer turns verdicts and parameters into styled text.
type Renderer struct {
	Styles Styles
}

func NewRenderer(t Theme) *Renderer {
	return &Renderer{Styles: NewStyles(t)}
}

func (r *Renderer) label(name, value string) string {
	return r.Styles.MetricLabel.Render(name) + r.Styles.MetricValue.Render(value) + "\n"
}

func jointName(m *robot.Model, i int) string {
	if m != nil && i < len(m.Chain) && m.Chain[i].Name != "" {
		return m.Chain[i].Name
	}
	return fmt.Sprintf("joint %d", i)
}

func verdictWord(feasible bool) string {
	if feasible {
		return "OK"
	}
	return "EXCEEDED"
}

// Feasibility renders every constraint report of v. m supplies joint names
// and may be nil.
func (r *Renderer) Feasibility(v feasibility.Verdict, m *robot.Model) string {
	var s strings.Builder
	s.WriteString(r.Styles.Header.Render("Feasibility Check Report") + "\n")

	for _, rep := range v.Reports {
		s.WriteString("\n" + r.Styles.Title.Render(strings.ToUpper(rep.Constraint.String())) + "\n")
		s.WriteString(r.label("Status", string(rep.Status)))
		s.WriteString(r.label("Max ratio", fmt.Sprintf("%.2f (%s)", rep.MaxRatio, verdictWord(rep.Feasible))))
		for i := range rep.Required {
			mark := "✓"
			if rep.Ratio[i] > 1 {
				mark = "✗"
			}
			line := fmt.Sprintf("  %-10s %s %8.2f / %8.2f %s = %.2fx %s",
				jointName(m, i), r.Styles.UtilizationBar(rep.Ratio[i], barWidth),
				rep.Required[i], rep.Limit[i], units[rep.Constraint], rep.Ratio[i], mark)
			s.WriteString(line + "\n")
		}
	}

	s.WriteString("\n" + r.Styles.Separator(60) + "\n")
	overall := r.Styles.Band(v.MaxRatio).Render(fmt.Sprintf("%v", v.Feasible))
	s.WriteString(r.Styles.MetricLabel.Render("Overall") + overall + "\n")
	if !v.Feasible {
		s.WriteString(r.label("Binding", v.Binding.String()))
		s.WriteString(r.label("Exceeded", fmt.Sprint(v.Exceeded)))
		s.WriteString(r.label("Scale factor", fmt.Sprintf("%.3f", v.ScaleFactor)))
	}
	if v.Approximate {
		s.WriteString(r.Styles.High.Render("estimated model: limits and dynamics are approximate") + "\n")
	}
	return s.String()
}

// Scaling renders the outcome of a scaling call.
func (r *Renderer) Scaling(p *scaler.TaskParameters, m *robot.Model) string {
	var s strings.Builder
	s.WriteString(r.Styles.Header.Render("Parameter Scaling Report") + "\n\n")

	s.WriteString(r.label("Robot", p.RobotID))
	s.WriteString(r.label("Task", string(p.Task)))
	s.WriteString(r.label("Margin", fmt.Sprintf("%.2f", p.Margin)))
	s.WriteString(r.label("Requested", formatPercent(p.OriginalPercent)))
	s.WriteString(r.label("Effective", formatPercent(p.EffectivePercent)))

	if p.Scaled {
		s.WriteString(r.Styles.High.Render("original parameters exceed robot limits") + "\n")
		s.WriteString(r.label("Scale factor", fmt.Sprintf("%.3f", p.ScaleFactor)))
		s.WriteString(r.label("Refinements", fmt.Sprint(p.Refinements)))
		s.WriteString(r.label("Initial ratio", fmt.Sprintf("%.2f (%s)", p.Initial.MaxRatio, p.Initial.Binding)))
	}

	s.WriteString("\n" + r.Styles.Title.Render("TORQUE") + "\n")
	if rep, ok := p.Report.Report(feasibility.Torque); ok {
		for i := range rep.Required {
			s.WriteString(fmt.Sprintf("  %-10s %s %8.2f / %8.2f N·m = %.2fx\n",
				jointName(m, i), r.Styles.UtilizationBar(rep.Ratio[i], barWidth),
				rep.Required[i], rep.Limit[i], rep.Ratio[i]))
		}
	}

	s.WriteString("\n" + r.Styles.Title.Render("PROFILE") + "\n")
	s.WriteString(r.label("Velocity", fmt.Sprintf("%.3f", []float64(p.Velocity))))
	s.WriteString(r.label("Acceleration", fmt.Sprintf("%.3f", []float64(p.Acceleration))))
	if p.Approximate {
		s.WriteString(r.Styles.High.Render("estimated model: limits and dynamics are approximate") + "\n")
	}
	return s.String()
}

// Compare renders one line per result.
func (r *Renderer) Compare(results []scaler.Result) string {
	var s strings.Builder
	s.WriteString(r.Styles.Header.Render("Robot Comparison") + "\n\n")
	s.WriteString(r.Styles.Subtle.Render(fmt.Sprintf("  %-12s %-10s %-8s %-8s %s", "robot", "initial", "scale", "passes", "binding")) + "\n")

	for _, res := range results {
		if res.Err != nil {
			s.WriteString(fmt.Sprintf("  %-12s %s\n", res.Request.RobotID, r.Styles.Over.Render(res.Err.Error())))
			continue
		}
		p := res.Params
		line := fmt.Sprintf("  %-12s %-10s %-8.3f %-8d %s",
			p.RobotID, fmt.Sprintf("%.2fx", p.Initial.MaxRatio), p.ScaleFactor, p.Refinements, p.Initial.Binding)
		s.WriteString(r.Styles.Band(p.Initial.MaxRatio).Render(line) + "\n")
	}
	return s.String()
}

func formatPercent(pct map[scaler.Param]float64) string {
	keys := make([]string, 0, len(pct))
	for k := range pct {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.1f%%", k, pct[scaler.Param(k)])
	}
	return strings.Join(parts, " ")
}

// SweepChart plots the unscaled utilization of each sweep point against the
// limit line. Points that failed are skipped.
func SweepChart(points []scaler.SweepPoint, width, height int) string {
	ratios := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Err == nil {
			ratios = append(ratios, p.MaxRatio)
		}
	}
	if len(ratios) < 2 {
		return ""
	}

	limit := make([]float64, len(ratios))
	for i := range limit {
		limit[i] = 1
	}

	caption := fmt.Sprintf("max utilization vs accel_percent (%.0f%%..%.0f%%)", points[0].Percent, points[len(points)-1].Percent)
	return asciigraph.PlotMany([][]float64{ratios, limit},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Red),
		asciigraph.Caption(caption),
	)
}
