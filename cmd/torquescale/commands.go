package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"

	"github.com/san-kum/torquescale/internal/dynamo"
	"github.com/san-kum/torquescale/internal/export"
	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
	"github.com/san-kum/torquescale/internal/tui"
	"github.com/san-kum/torquescale/internal/viz"
	"github.com/spf13/cobra"
)

func listRobots(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOF\tMASS\tSOURCE\tAPPROXIMATE")
	for _, id := range e.store.IDs() {
		m, err := e.store.Load(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\t%v\n", m.ID, m.Name, m.DOF, m.TotalMass(), m.Source, m.Approximate)
	}
	return w.Flush()
}

func runScale(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	in, err := e.cfg.GetIntention()
	if err != nil {
		return err
	}
	robotID := e.robotArg(args)

	p, err := e.scaler.Scale(robotID, in, e.cfg.SafetyMargin)
	var stuck *scaler.StillInfeasibleError
	if errors.As(err, &stuck) {
		m, _ := e.store.Load(robotID)
		fmt.Print(e.renderer.Feasibility(stuck.Verdict, m))
		return err
	}
	if err != nil {
		return err
	}

	if err := writeOutputs(p.Report); err != nil {
		return err
	}
	if save {
		st := export.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(p)
		if err != nil {
			return err
		}
		e.logger.Info("run saved", "id", runID, "dir", dataDir)
	}

	if jsonOut {
		return export.WriteJSON(os.Stdout, p)
	}
	m, err := e.store.Load(p.RobotID)
	if err != nil {
		return err
	}
	fmt.Print(e.renderer.Scaling(p, m))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	in, err := e.cfg.GetIntention()
	if err != nil {
		return err
	}
	robotID := e.robotArg(args)

	v, err := e.scaler.Check(robotID, in, e.cfg.SafetyMargin)
	if err != nil {
		return err
	}

	if err := writeOutputs(v); err != nil {
		return err
	}
	if jsonOut {
		return export.WriteJSON(os.Stdout, v)
	}
	m, err := e.store.Load(robotID)
	if err != nil {
		return err
	}
	fmt.Print(e.renderer.Feasibility(v, m))
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	in, err := e.cfg.GetIntention()
	if err != nil {
		return err
	}
	robotIDs := args
	if len(robotIDs) == 0 {
		robotIDs = e.store.IDs()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := e.scaler.Compare(ctx, in, robotIDs, e.cfg.SafetyMargin)
	if err != nil {
		return err
	}

	if jsonOut {
		return export.WriteJSON(os.Stdout, results)
	}
	fmt.Print(e.renderer.Compare(results))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	in, err := e.cfg.GetIntention()
	if err != nil {
		return err
	}
	if !(sweepStep > 0) || sweepTo < sweepFrom {
		return fmt.Errorf("sweep needs step > 0 and to >= from")
	}

	var percents []float64
	for pct := sweepFrom; pct <= sweepTo+1e-9; pct += sweepStep {
		percents = append(percents, pct)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	points, err := e.scaler.Sweep(ctx, e.robotArg(args), in, e.cfg.SafetyMargin, percents)
	if err != nil {
		return err
	}

	if csvPath != "" {
		if err := writeFile(csvPath, func(w io.Writer) error { return export.WriteSweepCSV(w, points) }); err != nil {
			return err
		}
	}
	if svgPath != "" {
		svg := export.SweepSVG(points, 640, 320, "#00ffff")
		if err := writeFile(svgPath, func(w io.Writer) error { _, err := io.WriteString(w, svg); return err }); err != nil {
			return err
		}
	}
	if jsonOut {
		return export.WriteJSON(os.Stdout, points)
	}

	if chart := viz.SweepChart(points, 60, 10); chart != "" {
		fmt.Println(chart)
		fmt.Println()
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCEL %\tMAX RATIO\tFEASIBLE\tSCALE")
	for _, p := range points {
		if p.Err != nil {
			fmt.Fprintf(w, "%.1f\t-\t-\t%v\n", p.Percent, p.Err)
			continue
		}
		fmt.Fprintf(w, "%.1f\t%.3f\t%v\t%.3f\n", p.Percent, p.MaxRatio, p.Feasible, p.ScaleFactor)
	}
	return w.Flush()
}

func runTune(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	in, err := e.cfg.GetIntention()
	if err != nil {
		return err
	}

	t := tui.NewTuner(e.scaler, e.store, e.store.IDs(), in, e.cfg.SafetyMargin, viz.GetTheme(themeName))
	if len(args) > 0 {
		if err := t.Select(args[0]); err != nil {
			return err
		}
	}

	p, err := tui.Run(t)
	if err != nil || p == nil {
		return err
	}
	if jsonOut {
		return export.WriteJSON(os.Stdout, p)
	}
	fmt.Printf("accel_percent=%.1f vel_percent=%.1f margin=%.2f scale=%.3f\n",
		t.Percent(scaler.AccelPercent), t.Percent(scaler.VelPercent), t.Margin(), p.ScaleFactor)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d, err := robot.ParseDescription(f)
	if err != nil {
		return err
	}
	m, err := d.Build(os.DirFS(filepath.Dir(path)), ".")
	if err != nil {
		return err
	}
	if jsonOut {
		return export.WriteJSON(os.Stdout, m)
	}

	hold, err := e.cfg.GetEngine().GravityTorque(m, dynamo.Zeros(m.DOF))
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s (%s)\n", m.ID, m.Name, m.Source)
	fmt.Printf("dof: %d   mass: %.3f kg\n\n", m.DOF, m.TotalMass())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOINT\tTORQUE\tVELOCITY\tACCELERATION\tGRAVITY@0")
	for i := 0; i < m.DOF; i++ {
		name := m.Chain[i].Name
		if name == "" {
			name = fmt.Sprintf("joint %d", i)
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.3f\t%.3f\t%.2f\n", name,
			m.TorqueLimit[i], m.VelocityLimit[i], m.AccelerationLimit[i], hold[i])
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := export.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROBOT\tTASK\tSCALE\tFEASIBLE\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%v\t%s\n", r.ID, r.RobotID, r.Task, r.ScaleFactor, r.Feasible,
			r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func exportRun(cmd *cobra.Command, args []string) error {
	p, err := export.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	return export.WriteJSON(os.Stdout, p)
}

// writeOutputs writes the utilization table and chart requested by --csv
// and --svg.
func writeOutputs(v feasibility.Verdict) error {
	if csvPath != "" {
		if err := writeFile(csvPath, func(w io.Writer) error { return export.WriteUtilizationCSV(w, v) }); err != nil {
			return err
		}
	}
	if svgPath != "" {
		svg := export.UtilizationSVG(v, 640, 320)
		if err := writeFile(svgPath, func(w io.Writer) error { _, err := io.WriteString(w, svg); return err }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
