package scaler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Request is one independent scaling evaluation.
type Request struct {
	RobotID   string        `json:"robot_id"`
	Intention TaskIntention `json:"intention"`
	Margin    float64       `json:"safety_margin"`
}

// Result pairs a request with its outcome. Exactly one of Params and Err
// is set.
type Result struct {
	Request Request         `json:"request"`
	Params  *TaskParameters `json:"params,omitempty"`
	Err     error           `json:"-"`
}

// ScaleBatch evaluates requests in parallel. Failures of individual
// requests are reported in their Result; the returned error is only set
// when ctx ends before every request ran.
func (s *Scaler) ScaleBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := s.Scale(req.RobotID, req.Intention, req.Margin)
			results[i] = Result{Request: req, Params: p, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Compare runs the same intention on every robot in robotIDs.
func (s *Scaler) Compare(ctx context.Context, in TaskIntention, robotIDs []string, margin float64) ([]Result, error) {
	reqs := make([]Request, len(robotIDs))
	for i, id := range robotIDs {
		reqs[i] = Request{RobotID: id, Intention: in, Margin: margin}
	}
	return s.ScaleBatch(ctx, reqs)
}

// SweepPoint is the outcome of one accel_percent setting.
type SweepPoint struct {
	Percent float64 `json:"accel_percent"`
	// MaxRatio is the utilization of the unscaled candidate.
	MaxRatio    float64 `json:"max_ratio"`
	Feasible    bool    `json:"feasible"`
	ScaleFactor float64 `json:"scale_factor"`
	Err         error   `json:"-"`
}

// Sweep evaluates in at every accel_percent in percents, in order.
func (s *Scaler) Sweep(ctx context.Context, robotID string, in TaskIntention, margin float64, percents []float64) ([]SweepPoint, error) {
	points := make([]SweepPoint, len(percents))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, pct := range percents {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			point := SweepPoint{Percent: pct}
			at := in.WithPercent(AccelPercent, pct)

			v, err := s.Check(robotID, at, margin)
			if err != nil {
				point.Err = err
				points[i] = point
				return nil
			}
			point.MaxRatio = v.MaxRatio
			point.Feasible = v.Feasible

			p, err := s.Scale(robotID, at, margin)
			if err != nil {
				point.Err = err
			} else {
				point.ScaleFactor = p.ScaleFactor
			}
			points[i] = point
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
