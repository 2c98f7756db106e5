package providers

import (
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions is the connection part of the redis persistence config.
// Zero values fall back to local defaults.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	// OpTimeout bounds each read and write; result and history writes are
	// single commands, so one deadline covers both.
	OpTimeout time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Addr == "" {
		o.Addr = "localhost:6379"
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 3 * time.Second
	}
	return o
}

func NewRedisProvider(opts RedisOptions) *redis.Client {
	opts = opts.withDefaults()
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.OpTimeout,
		WriteTimeout: opts.OpTimeout,
	})
}
