package repository

import (
	"context"
	"fmt"

	"github.com/osvaldoandrade/classifyq/pkg/domain"

	"github.com/go-redis/redis/v8"
)

// HistoryRepository stores whole history blobs under string keys.
type HistoryRepository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

type historyRedisRepo struct {
	rdb *redis.Client
}

func NewHistoryRepository(rdb *redis.Client) HistoryRepository {
	return &historyRedisRepo{rdb: rdb}
}

func (r *historyRedisRepo) keyHistory(key string) string {
	return fmt.Sprintf("classifyq:history:%s", key)
}

func (r *historyRedisRepo) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.keyHistory(key)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET history: %w", err)
	}
	return b, nil
}

func (r *historyRedisRepo) Save(ctx context.Context, key string, blob []byte) error {
	if err := r.rdb.Set(ctx, r.keyHistory(key), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis SET history: %w", err)
	}
	return nil
}
