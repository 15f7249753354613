package scaler

import (
	"context"
	"errors"
	"time"

	"github.com/san-kum/torquescale/internal/dynamo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationScope = "github.com/san-kum/torquescale/internal/scaler"

// Evaluation outcomes, recorded as the "outcome" attribute.
const (
	OutcomeFeasible   = "feasible"
	OutcomeScaled     = "scaled"
	OutcomeInfeasible = "infeasible"
	OutcomeRejected   = "rejected"
)

type instruments struct {
	evaluations metric.Int64Counter
	scale       metric.Float64Histogram
	refinements metric.Int64Histogram
	duration    metric.Float64Histogram
}

func newInstruments(meter metric.Meter) *instruments {
	in := &instruments{}
	var err error

	if in.evaluations, err = meter.Int64Counter("torquescale.scaler.evaluations",
		metric.WithDescription("Scaling evaluations by robot and outcome")); err != nil {
		in.evaluations = noop.Int64Counter{}
	}
	if in.scale, err = meter.Float64Histogram("torquescale.scaler.scale_factor",
		metric.WithDescription("Applied motion scale factor"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 1)); err != nil {
		in.scale = noop.Float64Histogram{}
	}
	if in.refinements, err = meter.Int64Histogram("torquescale.scaler.refinements",
		metric.WithDescription("Rescale passes needed to reach a feasible profile")); err != nil {
		in.refinements = noop.Int64Histogram{}
	}
	if in.duration, err = meter.Float64Histogram("torquescale.scaler.duration",
		metric.WithDescription("Wall time of one scaling evaluation"),
		metric.WithUnit("ms")); err != nil {
		in.duration = noop.Float64Histogram{}
	}
	return in
}

func (in *instruments) record(robotID, outcome string, scale float64, passes int, elapsed time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("robot.id", robotID),
		attribute.String("outcome", outcome),
	)

	in.evaluations.Add(ctx, 1, attrs)
	in.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if outcome == OutcomeFeasible || outcome == OutcomeScaled {
		in.scale.Record(ctx, scale, attrs)
		in.refinements.Record(ctx, int64(passes), attrs)
	}
}

func outcomeOf(p *TaskParameters, err error) string {
	switch {
	case errors.Is(err, dynamo.ErrStillInfeasible):
		return OutcomeInfeasible
	case err != nil:
		return OutcomeRejected
	case p.Scaled:
		return OutcomeScaled
	default:
		return OutcomeFeasible
	}
}
