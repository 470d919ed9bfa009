package mongo

import (
	"context"
	"fmt"
	"poolsched/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"poolsched/internal/migrations/mongo/validators"
)

var (
	PoolsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	LanesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "pool_id", Value: 1}, {Key: "name", Value: 1}}},
	}

	LockersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "pool_id", Value: 1}, {Key: "number", Value: 1}}},
	}

	ClosuresIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "pool_id", Value: 1}, {Key: "dates.lower", Value: 1}}},
	}

	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "kind", Value: 1},
			{Key: "resource_id", Value: 1},
			{Key: "period.lower", Value: 1},
			{Key: "period.upper", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "kind", Value: 1},
			{Key: "users", Value: 1},
			{Key: "period.lower", Value: 1},
		}},
		{Keys: bson.D{{Key: "pool_id", Value: 1}}},
	}

	// The TTL monitor drops abandoned advisory locks once expires_at passes.
	ReservationLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Pools":             {Indexes: PoolsIndexes, Validator: validators.PoolValidator},
		"Lanes":             {Indexes: LanesIndexes, Validator: validators.LaneValidator},
		"Lockers":           {Indexes: LockersIndexes, Validator: validators.LockerValidator},
		"Closures":          {Indexes: ClosuresIndexes, Validator: validators.ClosureValidator},
		"Reservations":      {Indexes: ReservationsIndexes, Validator: validators.ReservationValidator},
		"Reservation_locks": {Indexes: ReservationLocksIndexes},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All Mongo migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
