package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/scaler"
)

var constraintColors = map[feasibility.Constraint]string{
	feasibility.Torque:       "#00ccff",
	feasibility.Velocity:     "#00ff88",
	feasibility.Acceleration: "#ffcc00",
}

const (
	svgBackground = "#0a0a0a"
	svgLimit      = "#ff4444"
	svgText       = "#888899"
)

func svgHeader(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, svgBackground)
}

// UtilizationSVG draws one group of bars per joint, one bar per constraint,
// scaled so the derated limit sits at a fixed height. Bars past the limit
// are clipped to the top of the chart.
func UtilizationSVG(v feasibility.Verdict, width, height int) string {
	if len(v.Reports) == 0 {
		return ""
	}
	joints := len(v.Reports[0].Ratio)
	if joints == 0 {
		return ""
	}

	top := 1.25
	if v.MaxRatio > top {
		top = v.MaxRatio * 1.05
	}
	plotH := float64(height) * 0.9
	base := float64(height) - 4
	group := float64(width) / float64(joints)
	bar := group * 0.8 / float64(len(v.Reports))

	var sb strings.Builder
	svgHeader(&sb, width, height)

	for k, r := range v.Reports {
		fmt.Fprintf(&sb, `<g fill="%s"><title>%s</title>
`, constraintColors[r.Constraint], r.Constraint)
		for j, ratio := range r.Ratio {
			h := ratio / top * plotH
			if h > plotH {
				h = plotH
			}
			x := float64(j)*group + group*0.1 + float64(k)*bar
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f"/>
`, x, base-h, bar, h)
		}
		sb.WriteString("</g>\n")
	}

	y := base - plotH/top
	fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="4 3"/>
`, y, width, y, svgLimit)
	for j := 0; j < joints; j++ {
		fmt.Fprintf(&sb, `<text x="%.1f" y="%d" fill="%s" font-size="10" text-anchor="middle">J%d</text>
`, (float64(j)+0.5)*group, height-1, svgText, j)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SweepSVG plots max utilization against accel_percent with the limit line.
// Failed points are skipped.
func SweepSVG(points []scaler.SweepPoint, width, height int, strokeColor string) string {
	var xs, ys []float64
	for _, p := range points {
		if p.Err == nil {
			xs = append(xs, p.Percent)
			ys = append(ys, p.MaxRatio)
		}
	}
	if len(xs) < 2 {
		return ""
	}

	minX, maxX := xs[0], xs[0]
	maxY := 1.0
	for i := range xs {
		minX = min(minX, xs[i])
		maxX = max(maxX, xs[i])
		maxY = max(maxY, ys[i])
	}
	rangeX := maxX - minX
	if rangeX == 0 {
		rangeX = 1
	}
	maxY *= 1.1

	px := func(x float64) float64 { return (x - minX) / rangeX * float64(width) }
	py := func(y float64) float64 { return float64(height) - y/maxY*float64(height) }

	var sb strings.Builder
	svgHeader(&sb, width, height)

	fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="4 3"/>
`, py(1), width, py(1), svgLimit)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)
	for i := range xs {
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", px(xs[i]), py(ys[i]))
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", px(xs[i]), py(ys[i]))
		}
	}
	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
