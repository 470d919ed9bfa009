package repository

import (
	"context"
	"errors"
	"fmt"
	registryerrors "poolsched/internal/registry/errors"
	"poolsched/pkg/config"
	"poolsched/pkg/db"
	mongotx "poolsched/pkg/db/mongo"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PoolsCollectionName    = "Pools"
	LanesCollectionName    = "Lanes"
	LockersCollectionName  = "Lockers"
	ClosuresCollectionName = "Closures"
)

// Costs are stored as decimal strings; decimal.Decimal has no bson codec.
type laneDocument struct {
	ID          string `bson:"_id"`
	PoolID      string `bson:"pool_id"`
	Name        string `bson:"name"`
	MaxSwimmers int    `bson:"max_swimmers"`
	PerHourCost string `bson:"per_hour_cost"`
}

type lockerDocument struct {
	ID          string `bson:"_id"`
	PoolID      string `bson:"pool_id"`
	Number      string `bson:"number"`
	PerHourCost string `bson:"per_hour_cost"`
}

type mongoRegistryRepository struct {
	cfg       *config.Config
	pools     *mongo.Collection
	lanes     *mongo.Collection
	lockers   *mongo.Collection
	closures  *mongo.Collection
	txManager db.TransactionManager
}

func NewMongoRegistryRepository(cfg *config.Config) RegistryRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRegistryRepository{
		cfg:       cfg,
		pools:     database.Collection(PoolsCollectionName),
		lanes:     database.Collection(LanesCollectionName),
		lockers:   database.Collection(LockersCollectionName),
		closures:  database.Collection(ClosuresCollectionName),
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func insertErr(what string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return registryerrors.ErrDuplicateID
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

func (r *mongoRegistryRepository) requirePool(ctx context.Context, poolID string) error {
	n, err := r.pools.CountDocuments(ctx, bson.M{"_id": poolID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check pool: %w", err)
	}
	if n == 0 {
		return registryerrors.ErrPoolNotFound
	}
	return nil
}

func (r *mongoRegistryRepository) CreatePool(ctx context.Context, pool *model.Pool) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if pool.CreatedAt.IsZero() {
		pool.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.pools.InsertOne(ctx, pool); err != nil {
		return insertErr("pool", err)
	}
	return nil
}

func (r *mongoRegistryRepository) FindPool(ctx context.Context, id string) (*model.Pool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var pool model.Pool
	if err := r.pools.FindOne(ctx, bson.M{"_id": id}).Decode(&pool); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registryerrors.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to find pool: %w", err)
	}
	return &pool, nil
}

func (r *mongoRegistryRepository) ListPools(ctx context.Context) ([]*model.Pool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.pools.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer cursor.Close(ctx)

	var pools []*model.Pool
	if err := cursor.All(ctx, &pools); err != nil {
		return nil, fmt.Errorf("failed to decode pools: %w", err)
	}
	return pools, nil
}

// DeletePool removes the pool and everything it owns in one transaction.
func (r *mongoRegistryRepository) DeletePool(ctx context.Context, id string) error {
	return r.ExecuteTransaction(ctx, func(ctx context.Context) error {
		res, err := r.pools.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("failed to delete pool: %w", err)
		}
		if res.DeletedCount == 0 {
			return registryerrors.ErrPoolNotFound
		}
		for _, coll := range []*mongo.Collection{r.lanes, r.lockers, r.closures} {
			if _, err := coll.DeleteMany(ctx, bson.M{"pool_id": id}); err != nil {
				return fmt.Errorf("failed to delete %s of pool: %w", coll.Name(), err)
			}
		}
		return nil
	})
}

func (r *mongoRegistryRepository) CreateLane(ctx context.Context, lane *model.Lane) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := r.requirePool(ctx, lane.PoolID); err != nil {
		return err
	}
	doc := laneDocument{
		ID:          lane.ID,
		PoolID:      lane.PoolID,
		Name:        lane.Name,
		MaxSwimmers: lane.MaxSwimmers,
		PerHourCost: lane.PerHourCost.String(),
	}
	if _, err := r.lanes.InsertOne(ctx, doc); err != nil {
		return insertErr("lane", err)
	}
	return nil
}

func (d laneDocument) toModel() (*model.Lane, error) {
	cost, err := decimal.NewFromString(d.PerHourCost)
	if err != nil {
		return nil, fmt.Errorf("invalid per_hour_cost %q: %w", d.PerHourCost, err)
	}
	return &model.Lane{
		ID:          d.ID,
		PoolID:      d.PoolID,
		Name:        d.Name,
		MaxSwimmers: d.MaxSwimmers,
		PerHourCost: cost,
	}, nil
}

func (r *mongoRegistryRepository) FindLane(ctx context.Context, id string) (*model.Lane, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc laneDocument
	if err := r.lanes.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registryerrors.ErrLaneNotFound
		}
		return nil, fmt.Errorf("failed to find lane: %w", err)
	}
	return doc.toModel()
}

func (r *mongoRegistryRepository) ListLanes(ctx context.Context, poolID string) ([]*model.Lane, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.lanes.Find(ctx, bson.M{"pool_id": poolID}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list lanes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []laneDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode lanes: %w", err)
	}
	lanes := make([]*model.Lane, 0, len(docs))
	for _, d := range docs {
		l, err := d.toModel()
		if err != nil {
			return nil, err
		}
		lanes = append(lanes, l)
	}
	return lanes, nil
}

func (r *mongoRegistryRepository) DeleteLane(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res, err := r.lanes.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete lane: %w", err)
	}
	if res.DeletedCount == 0 {
		return registryerrors.ErrLaneNotFound
	}
	return nil
}

func (r *mongoRegistryRepository) CreateLocker(ctx context.Context, locker *model.Locker) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := r.requirePool(ctx, locker.PoolID); err != nil {
		return err
	}
	doc := lockerDocument{
		ID:          locker.ID,
		PoolID:      locker.PoolID,
		Number:      locker.Number,
		PerHourCost: locker.PerHourCost.String(),
	}
	if _, err := r.lockers.InsertOne(ctx, doc); err != nil {
		return insertErr("locker", err)
	}
	return nil
}

func (d lockerDocument) toModel() (*model.Locker, error) {
	cost, err := decimal.NewFromString(d.PerHourCost)
	if err != nil {
		return nil, fmt.Errorf("invalid per_hour_cost %q: %w", d.PerHourCost, err)
	}
	return &model.Locker{
		ID:          d.ID,
		PoolID:      d.PoolID,
		Number:      d.Number,
		PerHourCost: cost,
	}, nil
}

func (r *mongoRegistryRepository) FindLocker(ctx context.Context, id string) (*model.Locker, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc lockerDocument
	if err := r.lockers.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registryerrors.ErrLockerNotFound
		}
		return nil, fmt.Errorf("failed to find locker: %w", err)
	}
	return doc.toModel()
}

func (r *mongoRegistryRepository) ListLockers(ctx context.Context, poolID string) ([]*model.Locker, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.lockers.Find(ctx, bson.M{"pool_id": poolID}, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list lockers: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []lockerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode lockers: %w", err)
	}
	lockers := make([]*model.Locker, 0, len(docs))
	for _, d := range docs {
		l, err := d.toModel()
		if err != nil {
			return nil, err
		}
		lockers = append(lockers, l)
	}
	return lockers, nil
}

func (r *mongoRegistryRepository) DeleteLocker(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res, err := r.lockers.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete locker: %w", err)
	}
	if res.DeletedCount == 0 {
		return registryerrors.ErrLockerNotFound
	}
	return nil
}

func (r *mongoRegistryRepository) CreateClosure(ctx context.Context, closure *model.Closure) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := r.requirePool(ctx, closure.PoolID); err != nil {
		return err
	}
	if _, err := r.closures.InsertOne(ctx, closure); err != nil {
		return insertErr("closure", err)
	}
	return nil
}

func (r *mongoRegistryRepository) ListClosures(ctx context.Context, poolID string) ([]*model.Closure, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.closures.Find(ctx, bson.M{"pool_id": poolID}, options.Find().SetSort(bson.D{{Key: "dates.lower", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}
	defer cursor.Close(ctx)

	var closures []*model.Closure
	if err := cursor.All(ctx, &closures); err != nil {
		return nil, fmt.Errorf("failed to decode closures: %w", err)
	}
	for _, c := range closures {
		c.Dates = localPeriod(c.Dates)
	}
	return closures, nil
}

func (r *mongoRegistryRepository) DeleteClosure(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res, err := r.closures.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete closure: %w", err)
	}
	if res.DeletedCount == 0 {
		return registryerrors.ErrClosureNotFound
	}
	return nil
}

func (r *mongoRegistryRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

// localPeriod converts decoded bounds, which the driver returns in UTC, to
// local time.
func localPeriod(p interval.Period) interval.Period {
	out := interval.Period{}
	if p.Lower != nil {
		t := p.Lower.Local()
		out.Lower = &t
	}
	if p.Upper != nil {
		t := p.Upper.Local()
		out.Upper = &t
	}
	return out
}
