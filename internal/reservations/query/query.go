// Package query answers read-only temporal questions about reservations.
// Queries never take key locks.
package query

import (
	"context"
	"poolsched/internal/reservations/repository"
	"poolsched/pkg/config"
	apperrors "poolsched/pkg/errors"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"sort"
	"time"
)

// Durations above which a reservation is reported by LongerThan in the
// operator views.
const (
	LaneLongerThreshold   = 8 * time.Hour
	LockerLongerThreshold = 30 * 24 * time.Hour
)

// PoolLookup resolves pool names for ordering.
type PoolLookup interface {
	GetPool(ctx context.Context, id string) (*model.Pool, error)
}

type Engine struct {
	repo  repository.ReservationRepository
	pools PoolLookup
	now   func() time.Time
}

func NewEngine(repo repository.ReservationRepository, pools PoolLookup, cfg *config.Config) *Engine {
	return &Engine{repo: repo, pools: pools, now: cfg.Now}
}

// WithClock returns a copy of e reading time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	c := *e
	c.now = now
	return &c
}

// View is a filtered set of reservations. Views are values; the For*
// methods return narrowed copies.
type View struct {
	engine *Engine
	filter repository.Filter
}

// Active views the non-cancelled reservations of kind. An empty kind
// selects both.
func (e *Engine) Active(kind model.Kind) View {
	return View{engine: e, filter: repository.Filter{Kind: kind}}
}

// All is Active including cancelled reservations.
func (e *Engine) All(kind model.Kind) View {
	return View{engine: e, filter: repository.Filter{Kind: kind, IncludeCancelled: true}}
}

func (v View) ForResource(id string) View {
	v.filter.ResourceID = id
	return v
}

func (v View) ForUser(id string) View {
	v.filter.UserID = id
	return v
}

func (v View) ForPool(id string) View {
	v.filter.PoolID = id
	return v
}

func (v View) List(ctx context.Context) ([]*model.Reservation, error) {
	return v.find(ctx, v.filter, nil)
}

func (v View) Overlapping(ctx context.Context, rng interval.Period) ([]*model.Reservation, error) {
	f := v.filter
	f.Overlapping = &rng
	return v.find(ctx, f, nil)
}

func (v View) Containing(ctx context.Context, instant time.Time) ([]*model.Reservation, error) {
	return v.find(ctx, v.filter, func(r *model.Reservation) bool {
		return r.Period.Contains(instant)
	})
}

// InThePast lists reservations whose period ended before now.
func (v View) InThePast(ctx context.Context) ([]*model.Reservation, error) {
	now := v.engine.now()
	return v.find(ctx, v.filter, func(r *model.Reservation) bool {
		return r.Period.Upper != nil && r.Period.Upper.Before(now)
	})
}

// OverdueStart lists reservations that should have started but have no
// check-in.
func (v View) OverdueStart(ctx context.Context) ([]*model.Reservation, error) {
	now := v.engine.now()
	return v.find(ctx, v.filter, func(r *model.Reservation) bool {
		return r.Period.Lower != nil && r.Period.Lower.Before(now) && r.Actual.Lower == nil
	})
}

// OverdueEnd lists reservations that should have ended but have no
// check-out.
func (v View) OverdueEnd(ctx context.Context) ([]*model.Reservation, error) {
	now := v.engine.now()
	return v.find(ctx, v.filter, func(r *model.Reservation) bool {
		return r.Period.Upper != nil && r.Period.Upper.Before(now) && r.Actual.Upper == nil
	})
}

// LongerThan lists bounded reservations strictly longer than d.
func (v View) LongerThan(ctx context.Context, d time.Duration) ([]*model.Reservation, error) {
	return v.find(ctx, v.filter, func(r *model.Reservation) bool {
		got, ok := r.Duration()
		return ok && got > d
	})
}

// AverageDuration is the mean booked length. Unbounded periods are skipped
// and an empty view averages to zero.
func (v View) AverageDuration(ctx context.Context) (time.Duration, error) {
	rows, err := v.engine.repo.Find(ctx, v.filter)
	if err != nil {
		return 0, apperrors.Internal("Failed to query reservations", err)
	}
	var (
		total time.Duration
		n     int64
	)
	for _, r := range rows {
		if d, ok := r.Duration(); ok {
			total += d
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return total / time.Duration(n), nil
}

func (v View) ThisWeek(ctx context.Context, startSunday bool) ([]*model.Reservation, error) {
	return v.Overlapping(ctx, interval.ThisWeek(v.engine.now(), startSunday))
}

func (v View) ThisMonth(ctx context.Context) ([]*model.Reservation, error) {
	return v.Overlapping(ctx, interval.ThisMonth(v.engine.now()))
}

func (v View) YearToDate(ctx context.Context) ([]*model.Reservation, error) {
	return v.Overlapping(ctx, interval.YearToDate(v.engine.now()))
}

func (v View) TilEndOfYear(ctx context.Context) ([]*model.Reservation, error) {
	return v.Overlapping(ctx, interval.TilEndOfYear(v.engine.now()))
}

// EndingInOctOrDecThisYear lists reservations whose period ends in October
// or December of the current year.
func (v View) EndingInOctOrDecThisYear(ctx context.Context) ([]*model.Reservation, error) {
	now := v.engine.now()
	return v.find(ctx, v.filter, func(r *model.Reservation) bool {
		if r.Period.Upper == nil {
			return false
		}
		end := r.Period.Upper.In(now.Location())
		return end.Year() == now.Year() && (end.Month() == time.October || end.Month() == time.December)
	})
}

func (v View) find(ctx context.Context, f repository.Filter, keep func(*model.Reservation) bool) ([]*model.Reservation, error) {
	rows, err := v.engine.repo.Find(ctx, f)
	if err != nil {
		return nil, apperrors.Internal("Failed to query reservations", err)
	}
	if keep != nil {
		out := rows[:0]
		for _, r := range rows {
			if keep(r) {
				out = append(out, r)
			}
		}
		rows = out
	}
	v.engine.sort(ctx, rows)
	return rows, nil
}

// sort orders by period start (unbounded first), then pool name, then id.
func (e *Engine) sort(ctx context.Context, rows []*model.Reservation) {
	names := make(map[string]string)
	name := func(poolID string) string {
		if n, ok := names[poolID]; ok {
			return n
		}
		var n string
		if e.pools != nil {
			if p, err := e.pools.GetPool(ctx, poolID); err == nil {
				n = p.Name
			}
		}
		names[poolID] = n
		return n
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if c := compareLower(a.Period.Lower, b.Period.Lower); c != 0 {
			return c < 0
		}
		if na, nb := name(a.PoolID), name(b.PoolID); na != nb {
			return na < nb
		}
		return a.ID < b.ID
	})
}

func compareLower(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
