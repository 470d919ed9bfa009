package repository

import (
	"context"
	"errors"
	"fmt"
	reservationserrors "poolsched/internal/reservations/errors"
	"poolsched/pkg/config"
	"poolsched/pkg/db"
	mongotx "poolsched/pkg/db/mongo"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  db.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: database.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// overlapFilter matches documents whose period shares an instant with p.
// A missing or null bound is unbounded.
func overlapFilter(p interval.Period) bson.A {
	var clauses bson.A
	if p.Upper != nil {
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"period.lower": nil},
			bson.M{"period.lower": bson.M{"$lt": *p.Upper}},
		}})
	}
	if p.Lower != nil {
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"period.upper": nil},
			bson.M{"period.upper": bson.M{"$gt": *p.Lower}},
		}})
	}
	return clauses
}

func truncate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Millisecond)
	return &v
}

func (r *mongoReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.collection.InsertOne(ctx, res); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrDuplicateID
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var res model.Reservation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&res); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &res, nil
}

func (r *mongoReservationRepository) Update(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"actual": interval.Period{
			Lower: truncate(res.Actual.Lower),
			Upper: truncate(res.Actual.Upper),
		},
		"cancelled": truncate(res.Cancelled),
	}}
	result, err := r.collection.UpdateByID(ctx, res.ID, update)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

func (r *mongoReservationRepository) DeleteByResource(ctx context.Context, kind model.Kind, resourceID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"kind": kind, "resource_id": resourceID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reservations: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoReservationRepository) FindConflicts(ctx context.Context, res *model.Reservation) ([]*model.Reservation, error) {
	scope := bson.A{bson.M{"kind": res.Kind, "resource_id": res.ResourceID}}
	if res.Kind == model.KindLocker && len(res.Users) > 0 {
		scope = append(scope, bson.M{"kind": model.KindLocker, "users": bson.M{"$in": res.Users}})
	}

	and := bson.A{
		bson.M{"cancelled": nil},
		bson.M{"_id": bson.M{"$ne": res.ID}},
		bson.M{"$or": scope},
	}
	and = append(and, overlapFilter(res.Period)...)

	rows, err := r.find(ctx, bson.M{"$and": and})
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if Conflicts(res, row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *mongoReservationRepository) Find(ctx context.Context, f Filter) ([]*model.Reservation, error) {
	and := bson.A{}
	if f.Kind != "" {
		and = append(and, bson.M{"kind": f.Kind})
	}
	if f.ResourceID != "" {
		and = append(and, bson.M{"resource_id": f.ResourceID})
	}
	if f.PoolID != "" {
		and = append(and, bson.M{"pool_id": f.PoolID})
	}
	if f.UserID != "" {
		and = append(and, bson.M{"users": f.UserID})
	}
	if !f.IncludeCancelled {
		and = append(and, bson.M{"cancelled": nil})
	}
	if f.Overlapping != nil {
		and = append(and, overlapFilter(*f.Overlapping)...)
	}

	filter := bson.M{}
	if len(and) > 0 {
		filter = bson.M{"$and": and}
	}
	rows, err := r.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if f.Matches(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*model.Reservation
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return rows, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
