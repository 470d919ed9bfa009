package repository

import (
	"context"
	reservationserrors "poolsched/internal/reservations/errors"
	"poolsched/pkg/db"
	"poolsched/pkg/model"
	"sync"
)

type resourceKey struct {
	kind model.Kind
	id   string
}

type memoryReservationRepository struct {
	mu         sync.RWMutex
	rows       map[string]*model.Reservation
	byResource map[resourceKey]map[string]struct{}
	byUser     map[string]map[string]struct{}
	tx         db.TransactionManager
}

func NewMemoryReservationRepository() ReservationRepository {
	return &memoryReservationRepository{
		rows:       make(map[string]*model.Reservation),
		byResource: make(map[resourceKey]map[string]struct{}),
		byUser:     make(map[string]map[string]struct{}),
		tx:         db.NoopTransactionManager{},
	}
}

func addIndex[K comparable](idx map[K]map[string]struct{}, k K, id string) {
	set, ok := idx[k]
	if !ok {
		set = make(map[string]struct{})
		idx[k] = set
	}
	set[id] = struct{}{}
}

func removeIndex[K comparable](idx map[K]map[string]struct{}, k K, id string) {
	if set, ok := idx[k]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(idx, k)
		}
	}
}

func (r *memoryReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[res.ID]; ok {
		return reservationserrors.ErrDuplicateID
	}
	row := clone(res)
	r.rows[res.ID] = row
	addIndex(r.byResource, resourceKey{kind: row.Kind, id: row.ResourceID}, row.ID)
	for _, u := range row.Users {
		addIndex(r.byUser, u, row.ID)
	}
	return nil
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return clone(row), nil
}

func (r *memoryReservationRepository) Update(ctx context.Context, res *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[res.ID]
	if !ok {
		return reservationserrors.ErrNotFound
	}
	row.Actual = res.Actual
	row.Cancelled = res.Cancelled
	return nil
}

func (r *memoryReservationRepository) DeleteByResource(ctx context.Context, kind model.Kind, resourceID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := resourceKey{kind: kind, id: resourceID}
	var n int64
	for id := range r.byResource[key] {
		row := r.rows[id]
		for _, u := range row.Users {
			removeIndex(r.byUser, u, id)
		}
		delete(r.rows, id)
		n++
	}
	delete(r.byResource, key)
	return n, nil
}

func (r *memoryReservationRepository) FindConflicts(ctx context.Context, res *model.Reservation) ([]*model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make(map[string]struct{})
	for id := range r.byResource[resourceKey{kind: res.Kind, id: res.ResourceID}] {
		candidates[id] = struct{}{}
	}
	if res.Kind == model.KindLocker {
		for _, u := range res.Users {
			for id := range r.byUser[u] {
				candidates[id] = struct{}{}
			}
		}
	}

	var out []*model.Reservation
	for id := range candidates {
		if row := r.rows[id]; Conflicts(res, row) {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (r *memoryReservationRepository) Find(ctx context.Context, f Filter) ([]*model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Reservation
	for _, row := range r.rows {
		if f.Matches(row) {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (r *memoryReservationRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.tx.ExecuteTransaction(ctx, fn)
}
