package lock

import (
	"context"
	"poolsched/pkg/logger"
	"poolsched/pkg/metrics"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/time/rate"
)

const (
	LocksCollectionName = "Reservation_locks"
	mongoRetryInterval  = 50 * time.Millisecond
)

// lockDocument is an advisory lock. The unique _id makes a second insert for
// a held key fail with a duplicate key error. A TTL index on expires_at
// removes locks left behind by crashed holders.
type lockDocument struct {
	ID        string    `bson:"_id" json:"id"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type mongoLocker struct {
	collection *mongo.Collection
	ttl        time.Duration
	timeout    time.Duration
	log        *logger.Logger
}

func NewMongoLocker(db *mongo.Database, ttl, timeout time.Duration, log *logger.Logger) Locker {
	return &mongoLocker{
		collection: db.Collection(LocksCollectionName),
		ttl:        ttl,
		timeout:    timeout,
		log:        log,
	}
}

func (l *mongoLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	start := time.Now()
	defer metrics.ObserveLockWait(BackendMongo, start)

	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	token := uuid.NewString()
	limiter := rate.NewLimiter(rate.Every(mongoRetryInterval), 1)

	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		for {
			err := l.create(ctx, key, token)
			if err == nil {
				held = append(held, key)
				break
			}
			if !mongo.IsDuplicateKeyError(err) {
				l.release(held, token)
				return nil, acquireError(key, err)
			}
			// The TTL monitor runs once a minute; clear an expired holder now.
			l.deleteExpired(ctx, key)
			if err := limiter.Wait(ctx); err != nil {
				l.release(held, token)
				return nil, acquireError(key, context.DeadlineExceeded)
			}
		}
	}

	return once(func() { l.release(held, token) }), nil
}

func (l *mongoLocker) create(ctx context.Context, key, token string) error {
	now := time.Now().UTC()
	_, err := l.collection.InsertOne(ctx, &lockDocument{
		ID:        key,
		Token:     token,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	})
	return err
}

func (l *mongoLocker) deleteExpired(ctx context.Context, key string) {
	_, err := l.collection.DeleteOne(ctx, bson.M{
		"_id":        key,
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil && ctx.Err() == nil {
		l.log.Warn("Failed to clear expired lock", "key", key, "error", err)
	}
}

func (l *mongoLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if _, err := l.collection.DeleteOne(ctx, bson.M{"_id": keys[i], "token": token}); err != nil {
			l.log.Warn("Failed to release mongo lock", "key", keys[i], "error", err)
		}
	}
}
