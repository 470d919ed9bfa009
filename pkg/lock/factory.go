package lock

import (
	"fmt"
	"poolsched/pkg/config"
)

// New builds the Locker selected by cfg.LockBackend. The matching client
// must already be connected.
func New(cfg *config.Config) (Locker, error) {
	switch cfg.LockBackend {
	case config.LockLocal:
		return NewLocalLocker(cfg.LockTimeout), nil
	case config.LockRedis:
		if cfg.Client.Redis == nil {
			return nil, fmt.Errorf("redis lock backend selected but redis is not connected")
		}
		return NewRedisLocker(cfg.Client.Redis, cfg.LockTTL, cfg.LockTimeout, cfg.Log), nil
	case config.LockMongo:
		if cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("mongo lock backend selected but mongo is not connected")
		}
		db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		return NewMongoLocker(db, cfg.LockTTL, cfg.LockTimeout, cfg.Log), nil
	}
	return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
}
