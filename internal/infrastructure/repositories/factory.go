package repositories

import (
	"slate/internal/core/ports"
	"slate/internal/infrastructure/repositories/memory"
	redisrepo "slate/internal/infrastructure/repositories/redis"
	"slate/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory hands out either Redis-backed or in-memory stores. When
// Redis is enabled but unreachable the factory degrades to memory so a
// single-instance deployment still comes up.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory stores",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis stores")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory stores")
	}

	return factory, nil
}

// RedisClient exposes the shared client for components that need raw access,
// such as the cross-instance event bus. Nil when running on memory stores.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) Rooms() ports.RoomRepository {
	if f.useRedis {
		return redisrepo.NewRedisRoomRepository(f.redisClient)
	}
	return memory.NewMemoryRoomRepository()
}

func (f *RepositoryFactory) Users() ports.UserRepository {
	if f.useRedis {
		return redisrepo.NewRedisUserRepository(f.redisClient)
	}
	return memory.NewMemoryUserRepository()
}

func (f *RepositoryFactory) Documents() ports.DocumentRepository {
	if f.useRedis {
		return redisrepo.NewRedisDocumentRepository(f.redisClient)
	}
	return memory.NewMemoryDocumentRepository()
}

func (f *RepositoryFactory) Chat() ports.ChatRepository {
	if f.useRedis {
		return redisrepo.NewRedisChatRepository(f.redisClient)
	}
	return memory.NewMemoryChatRepository()
}

func (f *RepositoryFactory) Presence() ports.PresenceStore {
	if f.useRedis {
		return redisrepo.NewRedisPresenceStore(f.redisClient, f.cfg.Presence.TTL)
	}
	return memory.NewMemoryPresenceStore(f.cfg.Presence.TTL)
}

func (f *RepositoryFactory) Counters() ports.CounterStore {
	if f.useRedis {
		return redisrepo.NewRedisCounterStore(f.redisClient)
	}
	return memory.NewMemoryCounterStore()
}

// Sessions returns nil on memory stores: session records are written by the
// external account system, which only ever targets the shared store. The
// auth service treats a nil session store as "skip the advisory check".
func (f *RepositoryFactory) Sessions() ports.SessionStore {
	if f.useRedis {
		return redisrepo.NewRedisSessionStore(f.redisClient)
	}
	return nil
}

// Close releases the Redis connection if one was established.
func (f *RepositoryFactory) Close() error {
	return redisrepo.CloseRedisClient(f.redisClient)
}
