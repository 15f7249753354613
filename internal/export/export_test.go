package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
)

func scaled(t *testing.T) *scaler.TaskParameters {
	t.Helper()
	in, err := scaler.NewTaskIntention(scaler.TaskPick, map[string]float64{"accel_percent": 80, "vel_percent": 40})
	if err != nil {
		t.Fatalf("intention: %v", err)
	}
	p, err := scaler.New(robot.NewDefaultStore()).Scale("Robot_A", in, 0.9)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	return p
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	p := scaled(t)
	runID, err := st.Save(p)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID != p.ID.String() {
		t.Errorf("expected run id %s, got %s", p.ID, runID)
	}

	got, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected id %s, got %s", p.ID, got.ID)
	}
	if got.RobotID != "Robot_A" {
		t.Errorf("expected robot 'Robot_A', got '%s'", got.RobotID)
	}
	if got.Version != scaler.Version {
		t.Errorf("expected version %s, got %s", scaler.Version, got.Version)
	}
	if len(got.Acceleration) != 6 || got.Acceleration[0] != p.Acceleration[0] {
		t.Errorf("acceleration not restored: %v", got.Acceleration)
	}
	if got.Report.Binding != p.Report.Binding {
		t.Errorf("expected binding %s, got %s", p.Report.Binding, got.Report.Binding)
	}

	rows, err := st.LoadUtilization(runID)
	if err != nil {
		t.Fatalf("load utilization failed: %v", err)
	}
	if len(rows) != 18 {
		t.Errorf("expected 18 rows (3 constraints x 6 joints), got %d", len(rows))
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list on empty store failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}

	if _, err := st.Save(scaled(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Save(scaled(t)); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	for _, r := range runs {
		if r.RobotID != "Robot_A" || r.Task != "pick" {
			t.Errorf("unexpected metadata %+v", r)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestUtilizationCSV(t *testing.T) {
	r, err := feasibility.Check(feasibility.Torque,
		dynamo.Vector{40, 45, 40, 31.4, 9, 8},
		dynamo.Vector{150, 150, 150, 28, 28, 28}, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	v := feasibility.Combine(r)

	var buf bytes.Buffer
	if err := WriteUtilizationCSV(&buf, v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "constraint,joint,required,limit,ratio,exceeded\n") {
		t.Errorf("unexpected header in %q", buf.String())
	}

	rows, err := ReadUtilizationCSV(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Constraint != feasibility.Torque || row.Joint != i {
			t.Errorf("row %d: unexpected %+v", i, row)
		}
		if row.Exceeded != (i == 3) {
			t.Errorf("row %d: expected exceeded=%v", i, i == 3)
		}
	}
	if d := rows[3].Limit - 25.2; d > 1e-6 || d < -1e-6 {
		t.Errorf("expected derated limit 25.2, got %f", rows[3].Limit)
	}
}

func TestReadUtilizationCSVRejectsBadRows(t *testing.T) {
	doc := "constraint,joint,required,limit,ratio,exceeded\njerk,0,1,1,1,false\n"
	if _, err := ReadUtilizationCSV(strings.NewReader(doc)); err == nil {
		t.Error("expected error for unknown constraint")
	}
}

func TestWriteSweepCSV(t *testing.T) {
	points := []scaler.SweepPoint{
		{Percent: 50, MaxRatio: 0.5, Feasible: true, ScaleFactor: 1},
		{Percent: 150, Err: dynamo.ErrInvalidIntention},
	}

	var buf bytes.Buffer
	if err := WriteSweepCSV(&buf, points); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[1] != "50.00,0.500000,true,1.000000," {
		t.Errorf("unexpected row %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], dynamo.ErrInvalidIntention.Error()) {
		t.Errorf("expected error message in %q", lines[2])
	}
}

func TestUtilizationSVG(t *testing.T) {
	tau, _ := feasibility.Check(feasibility.Torque, dynamo.Vector{10, 30}, dynamo.Vector{20, 20}, 1)
	acc, _ := feasibility.Check(feasibility.Acceleration, dynamo.Vector{1, 1}, dynamo.Vector{2, 4}, 1)
	svg := UtilizationSVG(feasibility.Combine(tau, acc), 200, 100)

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not an svg document:\n%s", svg)
	}
	if got := strings.Count(svg, "<rect x="); got != 4 {
		t.Errorf("expected 4 bars, got %d", got)
	}
	if !strings.Contains(svg, ">J1</text>") {
		t.Error("expected joint labels")
	}
	if UtilizationSVG(feasibility.Verdict{}, 200, 100) != "" {
		t.Error("expected empty output for an empty verdict")
	}
}

func TestSweepSVG(t *testing.T) {
	points := []scaler.SweepPoint{
		{Percent: 20, MaxRatio: 0.3},
		{Percent: 40, Err: dynamo.ErrInvalidIntention},
		{Percent: 60, MaxRatio: 0.9},
	}
	svg := SweepSVG(points, 100, 50, "#00ffff")
	if !strings.Contains(svg, `d="M0.0,`) || strings.Count(svg, " L") != 1 {
		t.Errorf("expected a two-point path:\n%s", svg)
	}
	if SweepSVG(points[:2], 100, 50, "#00ffff") != "" {
		t.Error("expected empty output for fewer than two points")
	}
}
