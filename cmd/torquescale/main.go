package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/torquescale/internal/config"
	"github.com/san-kum/torquescale/internal/robot"
	"github.com/san-kum/torquescale/internal/scaler"
	"github.com/san-kum/torquescale/internal/viz"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var (
	dataDir        string
	configFile     string
	preset         string
	task           string
	accel          float64
	vel            float64
	margin         float64
	maxRefinements int
	descriptions   string
	specs          string
	jsonOut        bool
	csvPath        string
	svgPath        string
	save           bool
	verbose        bool
	themeName      string

	sweepFrom float64
	sweepTo   float64
	sweepStep float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "torquescale",
		Short:         "scale robot task intentions to dynamically feasible joint parameters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".torquescale", "data directory for saved runs")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", fmt.Sprintf("intention preset %v", config.ListPresets()))
	pf.StringVar(&task, "task", "", "task kind (pick, place, move, move_linear, inspect)")
	pf.Float64Var(&accel, "accel", config.DefaultAccelPercent, "accel_percent of the intention")
	pf.Float64Var(&vel, "vel", config.DefaultVelPercent, "vel_percent of the intention")
	pf.Float64Var(&margin, "margin", scaler.DefaultSafetyMargin, "safety margin in (0, 1]")
	pf.IntVar(&maxRefinements, "max-refinements", scaler.DefaultMaxRefinements, "refinement passes before giving up")
	pf.StringVar(&descriptions, "descriptions", "", "directory of robot description documents")
	pf.StringVar(&specs, "specs", "", "yaml file of spec sheets for estimated models")
	pf.BoolVar(&jsonOut, "json", false, "print json instead of a report")
	pf.StringVar(&csvPath, "csv", "", "also write a csv table to this path")
	pf.StringVar(&svgPath, "svg", "", "also write an svg chart to this path")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&themeName, "theme", viz.ThemeCyberpunk.Name, fmt.Sprintf("report theme %v", viz.ThemeNames()))

	robotsCmd := &cobra.Command{
		Use:   "robots",
		Short: "list known robots",
		Args:  cobra.NoArgs,
		RunE:  listRobots,
	}

	scaleCmd := &cobra.Command{
		Use:   "scale [robot]",
		Short: "scale the intention for a robot",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScale,
	}
	scaleCmd.Flags().BoolVar(&save, "save", false, "save the result under the data directory")

	checkCmd := &cobra.Command{
		Use:   "check [robot]",
		Short: "report feasibility of the unscaled intention",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheck,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [robot...]",
		Short: "scale the same intention for several robots",
		RunE:  runCompare,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [robot]",
		Short: "sweep accel_percent and chart utilization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 10, "first accel_percent")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 100, "last accel_percent")
	sweepCmd.Flags().Float64Var(&sweepStep, "step", 10, "accel_percent increment")

	tuneCmd := &cobra.Command{
		Use:   "tune [robot]",
		Short: "interactive tuner",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect [description.yaml]",
		Short: "build a model from a description document and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print a saved run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(robotsCmd, scaleCmd, checkCmd, compareCmd, sweepCmd, tuneCmd, inspectCmd, listCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is everything a command needs, resolved from config file, preset and
// flags in that order.
type env struct {
	cfg      *config.Config
	store    *robot.Store
	scaler   *scaler.Scaler
	logger   *slog.Logger
	renderer *viz.Renderer
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("task") {
		cfg.Intention.Task = task
	}
	if flags.Changed("accel") {
		cfg.Intention.AccelPercent = accel
	}
	if flags.Changed("vel") {
		cfg.Intention.VelPercent = vel
	}
	if flags.Changed("margin") {
		cfg.SafetyMargin = margin
	}
	if flags.Changed("max-refinements") {
		cfg.MaxRefinements = maxRefinements
	}
	if flags.Changed("descriptions") {
		cfg.DescriptionDir = descriptions
	}
	if flags.Changed("specs") {
		cfg.SpecSheets = specs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := cfg.GetStore()
	if err != nil {
		return nil, err
	}
	logger.Debug("models loaded", "robots", store.IDs())

	s := scaler.New(store,
		scaler.WithSolver(cfg.GetEngine()),
		scaler.WithLogger(logger),
		scaler.WithMeter(otel.GetMeterProvider().Meter("torquescale")),
		scaler.WithMaxRefinements(cfg.MaxRefinements),
	)

	return &env{
		cfg:      cfg,
		store:    store,
		scaler:   s,
		logger:   logger,
		renderer: viz.NewRenderer(viz.GetTheme(themeName)),
	}, nil
}

// robotArg picks the robot named on the command line, falling back to the
// configured one.
func (e *env) robotArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return e.cfg.Robot
}
