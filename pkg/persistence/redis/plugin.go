package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/osvaldoandrade/classifyq/internal/providers"
	"github.com/osvaldoandrade/classifyq/internal/repository"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis-specific configuration
type Config struct {
	Addr               string `json:"addr"`
	Password           string `json:"password,omitempty"`
	DB                 int    `json:"db,omitempty"`
	PoolSize           int    `json:"poolSize,omitempty"`
	DialTimeoutSeconds int    `json:"dialTimeoutSeconds,omitempty"`
	OpTimeoutSeconds   int    `json:"opTimeoutSeconds,omitempty"`
}

func (c Config) options() providers.RedisOptions {
	return providers.RedisOptions{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: time.Duration(c.DialTimeoutSeconds) * time.Second,
		OpTimeout:   time.Duration(c.OpTimeoutSeconds) * time.Second,
	}
}

// Plugin implements PluginPersistence for Redis/KVRocks
type Plugin struct {
	client      *redis.Client
	resultRepo  repository.ResultRepository
	historyRepo repository.HistoryRepository
}

// NewPlugin creates a new Redis persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, fmt.Errorf("redis persistence config: %w", err)
	}
	client := providers.NewRedisProvider(cfg.options())
	return NewPluginWithClient(client, config), nil
}

// NewPluginWithClient wraps an existing client; used by the application
// when it already owns a Redis connection.
func NewPluginWithClient(client *redis.Client, config persistence.PluginConfig) *Plugin {
	return &Plugin{
		client:      client,
		resultRepo:  repository.NewResultRepository(client, config.Timezone),
		historyRepo: repository.NewHistoryRepository(client),
	}
}

// ResultStorage returns the result storage implementation
func (p *Plugin) ResultStorage() persistence.ResultStorage {
	return p.resultRepo
}

// HistoryStorage returns the history blob storage implementation
func (p *Plugin) HistoryStorage() persistence.HistoryStorage {
	return p.historyRepo
}

// Health checks if Redis is healthy
func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases Redis connection
func (p *Plugin) Close() error {
	return p.client.Close()
}

func init() {
	persistence.RegisterProvider("redis", NewPlugin)
}
