package repository

import (
	"context"
	registryerrors "poolsched/internal/registry/errors"
	"poolsched/pkg/db"
	"poolsched/pkg/model"
	"sort"
	"sync"
)

type memoryRegistryRepository struct {
	mu       sync.RWMutex
	pools    map[string]model.Pool
	lanes    map[string]model.Lane
	lockers  map[string]model.Locker
	closures map[string]model.Closure
	tx       db.TransactionManager
}

func NewMemoryRegistryRepository() RegistryRepository {
	return &memoryRegistryRepository{
		pools:    make(map[string]model.Pool),
		lanes:    make(map[string]model.Lane),
		lockers:  make(map[string]model.Locker),
		closures: make(map[string]model.Closure),
		tx:       db.NoopTransactionManager{},
	}
}

func (r *memoryRegistryRepository) CreatePool(ctx context.Context, pool *model.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[pool.ID]; ok {
		return registryerrors.ErrDuplicateID
	}
	r.pools[pool.ID] = *pool
	return nil
}

func (r *memoryRegistryRepository) FindPool(ctx context.Context, id string) (*model.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[id]
	if !ok {
		return nil, registryerrors.ErrPoolNotFound
	}
	return &p, nil
}

func (r *memoryRegistryRepository) ListPools(ctx context.Context) ([]*model.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pools := make([]*model.Pool, 0, len(r.pools))
	for _, p := range r.pools {
		p := p
		pools = append(pools, &p)
	}
	sort.Slice(pools, func(i, j int) bool {
		if pools[i].Name != pools[j].Name {
			return pools[i].Name < pools[j].Name
		}
		return pools[i].ID < pools[j].ID
	})
	return pools, nil
}

func (r *memoryRegistryRepository) DeletePool(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[id]; !ok {
		return registryerrors.ErrPoolNotFound
	}
	delete(r.pools, id)
	for lid, l := range r.lanes {
		if l.PoolID == id {
			delete(r.lanes, lid)
		}
	}
	for lid, l := range r.lockers {
		if l.PoolID == id {
			delete(r.lockers, lid)
		}
	}
	for cid, c := range r.closures {
		if c.PoolID == id {
			delete(r.closures, cid)
		}
	}
	return nil
}

func (r *memoryRegistryRepository) CreateLane(ctx context.Context, lane *model.Lane) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[lane.PoolID]; !ok {
		return registryerrors.ErrPoolNotFound
	}
	if _, ok := r.lanes[lane.ID]; ok {
		return registryerrors.ErrDuplicateID
	}
	r.lanes[lane.ID] = *lane
	return nil
}

func (r *memoryRegistryRepository) FindLane(ctx context.Context, id string) (*model.Lane, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lanes[id]
	if !ok {
		return nil, registryerrors.ErrLaneNotFound
	}
	return &l, nil
}

func (r *memoryRegistryRepository) ListLanes(ctx context.Context, poolID string) ([]*model.Lane, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lanes []*model.Lane
	for _, l := range r.lanes {
		if l.PoolID == poolID {
			l := l
			lanes = append(lanes, &l)
		}
	}
	sort.Slice(lanes, func(i, j int) bool { return lanes[i].Name < lanes[j].Name })
	return lanes, nil
}

func (r *memoryRegistryRepository) DeleteLane(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lanes[id]; !ok {
		return registryerrors.ErrLaneNotFound
	}
	delete(r.lanes, id)
	return nil
}

func (r *memoryRegistryRepository) CreateLocker(ctx context.Context, locker *model.Locker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[locker.PoolID]; !ok {
		return registryerrors.ErrPoolNotFound
	}
	if _, ok := r.lockers[locker.ID]; ok {
		return registryerrors.ErrDuplicateID
	}
	r.lockers[locker.ID] = *locker
	return nil
}

func (r *memoryRegistryRepository) FindLocker(ctx context.Context, id string) (*model.Locker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lockers[id]
	if !ok {
		return nil, registryerrors.ErrLockerNotFound
	}
	return &l, nil
}

func (r *memoryRegistryRepository) ListLockers(ctx context.Context, poolID string) ([]*model.Locker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lockers []*model.Locker
	for _, l := range r.lockers {
		if l.PoolID == poolID {
			l := l
			lockers = append(lockers, &l)
		}
	}
	sort.Slice(lockers, func(i, j int) bool { return lockers[i].Number < lockers[j].Number })
	return lockers, nil
}

func (r *memoryRegistryRepository) DeleteLocker(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lockers[id]; !ok {
		return registryerrors.ErrLockerNotFound
	}
	delete(r.lockers, id)
	return nil
}

func (r *memoryRegistryRepository) CreateClosure(ctx context.Context, closure *model.Closure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[closure.PoolID]; !ok {
		return registryerrors.ErrPoolNotFound
	}
	if _, ok := r.closures[closure.ID]; ok {
		return registryerrors.ErrDuplicateID
	}
	r.closures[closure.ID] = *closure
	return nil
}

func (r *memoryRegistryRepository) ListClosures(ctx context.Context, poolID string) ([]*model.Closure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var closures []*model.Closure
	for _, c := range r.closures {
		if c.PoolID == poolID {
			c := c
			closures = append(closures, &c)
		}
	}
	sort.Slice(closures, func(i, j int) bool {
		return closures[i].Dates.Lower.Before(*closures[j].Dates.Lower)
	})
	return closures, nil
}

func (r *memoryRegistryRepository) DeleteClosure(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.closures[id]; !ok {
		return registryerrors.ErrClosureNotFound
	}
	delete(r.closures, id)
	return nil
}

func (r *memoryRegistryRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.tx.ExecuteTransaction(ctx, fn)
}
