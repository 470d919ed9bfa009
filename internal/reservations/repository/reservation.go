package repository

import (
	"context"
	"poolsched/pkg/db"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
)

// Filter selects reservations. Zero fields do not restrict.
type Filter struct {
	Kind             model.Kind
	ResourceID       string
	UserID           string
	PoolID           string
	IncludeCancelled bool
	// Overlapping keeps rows whose period shares an instant with it.
	Overlapping *interval.Period
}

type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	// Update persists Actual and Cancelled. Period, users and resource are
	// immutable after create.
	Update(ctx context.Context, r *model.Reservation) error
	DeleteByResource(ctx context.Context, kind model.Kind, resourceID string) (int64, error)
	// FindConflicts returns the non-cancelled rows that overlap r.Period on
	// the same resource, plus, for lockers, locker rows of any of r's users.
	FindConflicts(ctx context.Context, r *model.Reservation) ([]*model.Reservation, error)
	Find(ctx context.Context, f Filter) ([]*model.Reservation, error)
	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

// Matches reports whether r passes every set field of f.
func (f Filter) Matches(r *model.Reservation) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.ResourceID != "" && r.ResourceID != f.ResourceID {
		return false
	}
	if f.PoolID != "" && r.PoolID != f.PoolID {
		return false
	}
	if f.UserID != "" && !r.HasUser(f.UserID) {
		return false
	}
	if !f.IncludeCancelled && r.IsCancelled() {
		return false
	}
	if f.Overlapping != nil && !r.Period.Overlaps(*f.Overlapping) {
		return false
	}
	return true
}

// Conflicts reports whether existing blocks candidate.
func Conflicts(candidate, existing *model.Reservation) bool {
	if existing.ID == candidate.ID || existing.IsCancelled() || candidate.IsCancelled() {
		return false
	}
	if !existing.Period.Overlaps(candidate.Period) {
		return false
	}
	if existing.Kind == candidate.Kind && existing.ResourceID == candidate.ResourceID {
		return true
	}
	if candidate.Kind == model.KindLocker && existing.Kind == model.KindLocker {
		for _, u := range candidate.Users {
			if existing.HasUser(u) {
				return true
			}
		}
	}
	return false
}

func clone(r *model.Reservation) *model.Reservation {
	c := *r
	c.Users = append([]string(nil), r.Users...)
	return &c
}
