// Package export persists scaling results: TaskParameters as indented JSON
// and the per-joint utilization of a verdict as CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/torquescale/internal/feasibility"
	"github.com/san-kum/torquescale/internal/scaler"
)

const (
	metadataFile    = "metadata.json"
	paramsFile      = "params.json"
	utilizationFile = "utilization.csv"
)

var utilizationHeader = []string{"constraint", "joint", "required", "limit", "ratio", "exceeded"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata summarizes one saved evaluation.
type RunMetadata struct {
	ID          string    `json:"id"`
	RobotID     string    `json:"robot_id"`
	Task        string    `json:"task"`
	Timestamp   time.Time `json:"timestamp"`
	ScaleFactor float64   `json:"scale_factor"`
	Feasible    bool      `json:"feasible"`
	Scaled      bool      `json:"scaled"`
	Approximate bool      `json:"approximate"`
	MaxRatio    float64   `json:"max_ratio"`
}

// Save writes p under a directory named after its id and returns that id.
func (s *Store) Save(p *scaler.TaskParameters) (string, error) {
	runID := p.ID.String()
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		RobotID:     p.RobotID,
		Task:        string(p.Task),
		Timestamp:   time.Now(),
		ScaleFactor: p.ScaleFactor,
		Feasible:    p.Feasible,
		Scaled:      p.Scaled,
		Approximate: p.Approximate,
		MaxRatio:    p.Report.MaxRatio,
	}
	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error { return WriteJSON(w, meta) }); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(runDir, paramsFile), func(w io.Writer) error { return WriteJSON(w, p) }); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(runDir, utilizationFile), func(w io.Writer) error { return WriteUtilizationCSV(w, p.Report) }); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns the metadata of every saved run, oldest first. Directories
// without readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), metadataFile))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

// Load reads back the parameters saved under runID.
func (s *Store) Load(runID string) (*scaler.TaskParameters, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, paramsFile))
	if err != nil {
		return nil, err
	}
	var p scaler.TaskParameters
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("export: %s: %w", runID, err)
	}
	return &p, nil
}

// LoadUtilization reads back the utilization table saved under runID.
func (s *Store) LoadUtilization(runID string) ([]Row, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, utilizationFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadUtilizationCSV(f)
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

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Row is one joint of one constraint report.
type Row struct {
	Constraint feasibility.Constraint
	Joint      int
	Required   float64
	Limit      float64
	Ratio      float64
	Exceeded   bool
}

// Utilization flattens a verdict into rows, constraint by constraint.
func Utilization(v feasibility.Verdict) []Row {
	var rows []Row
	for _, r := range v.Reports {
		for i := range r.Required {
			rows = append(rows, Row{
				Constraint: r.Constraint,
				Joint:      i,
				Required:   r.Required[i],
				Limit:      r.Limit[i],
				Ratio:      r.Ratio[i],
				Exceeded:   r.Ratio[i] > 1,
			})
		}
	}
	return rows
}

func WriteUtilizationCSV(w io.Writer, v feasibility.Verdict) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(utilizationHeader); err != nil {
		return err
	}
	for _, r := range Utilization(v) {
		row := []string{
			r.Constraint.String(),
			strconv.Itoa(r.Joint),
			strconv.FormatFloat(r.Required, 'f', 6, 64),
			strconv.FormatFloat(r.Limit, 'f', 6, 64),
			strconv.FormatFloat(r.Ratio, 'f', 6, 64),
			strconv.FormatBool(r.Exceeded),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadUtilizationCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(utilizationHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: read utilization: %w", err)
	}
	if len(records) < 2 {
		return []Row{}, nil
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		var row Row
		if err := row.Constraint.UnmarshalText([]byte(rec[0])); err != nil {
			return nil, fmt.Errorf("export: read utilization: %w", err)
		}
		if row.Joint, err = strconv.Atoi(rec[1]); err != nil {
			return nil, fmt.Errorf("export: read utilization: %w", err)
		}
		vals := make([]float64, 3)
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(rec[2+i], 64); err != nil {
				return nil, fmt.Errorf("export: read utilization: %w", err)
			}
		}
		row.Required, row.Limit, row.Ratio = vals[0], vals[1], vals[2]
		if row.Exceeded, err = strconv.ParseBool(rec[5]); err != nil {
			return nil, fmt.Errorf("export: read utilization: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var sweepHeader = []string{"accel_percent", "max_ratio", "feasible", "scale_factor", "error"}

// WriteSweepCSV writes one row per sweep point.
func WriteSweepCSV(w io.Writer, points []scaler.SweepPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sweepHeader); err != nil {
		return err
	}
	for _, p := range points {
		msg := ""
		if p.Err != nil {
			msg = p.Err.Error()
		}
		row := []string{
			strconv.FormatFloat(p.Percent, 'f', 2, 64),
			strconv.FormatFloat(p.MaxRatio, 'f', 6, 64),
			strconv.FormatBool(p.Feasible),
			strconv.FormatFloat(p.ScaleFactor, 'f', 6, 64),
			msg,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
