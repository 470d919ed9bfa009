package repository

import (
	"context"
	"poolsched/pkg/db"
	"poolsched/pkg/model"
)

// RegistryRepository stores pools and the resources they own. Deleting a
// pool removes its lanes, lockers and closures.
type RegistryRepository interface {
	CreatePool(ctx context.Context, pool *model.Pool) error
	FindPool(ctx context.Context, id string) (*model.Pool, error)
	ListPools(ctx context.Context) ([]*model.Pool, error)
	DeletePool(ctx context.Context, id string) error

	CreateLane(ctx context.Context, lane *model.Lane) error
	FindLane(ctx context.Context, id string) (*model.Lane, error)
	ListLanes(ctx context.Context, poolID string) ([]*model.Lane, error)
	DeleteLane(ctx context.Context, id string) error

	CreateLocker(ctx context.Context, locker *model.Locker) error
	FindLocker(ctx context.Context, id string) (*model.Locker, error)
	ListLockers(ctx context.Context, poolID string) ([]*model.Locker, error)
	DeleteLocker(ctx context.Context, id string) error

	CreateClosure(ctx context.Context, closure *model.Closure) error
	ListClosures(ctx context.Context, poolID string) ([]*model.Closure, error)
	DeleteClosure(ctx context.Context, id string) error

	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}
