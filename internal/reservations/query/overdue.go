package query

import (
	"context"
	"poolsched/pkg/metrics"
	"poolsched/pkg/model"
)

// RecordOverdue publishes the overdue start and end counts of every kind to
// the overdue gauge.
func (e *Engine) RecordOverdue(ctx context.Context) error {
	for _, kind := range []model.Kind{model.KindLane, model.KindLocker} {
		view := e.Active(kind)

		starts, err := view.OverdueStart(ctx)
		if err != nil {
			return err
		}
		metrics.SetOverdue(string(kind), metrics.EdgeStart, len(starts))

		ends, err := view.OverdueEnd(ctx)
		if err != nil {
			return err
		}
		metrics.SetOverdue(string(kind), metrics.EdgeEnd, len(ends))
	}
	return nil
}
