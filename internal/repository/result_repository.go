package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/osvaldoandrade/classifyq/pkg/domain"

	"github.com/go-redis/redis/v8"
)

type ResultRepository interface {
	SaveResult(ctx context.Context, rec domain.Result) error
	GetResult(ctx context.Context, id string) (*domain.Result, error)
}

type resultRedisRepo struct {
	rdb *redis.Client
	tz  *time.Location
}

func NewResultRepository(rdb *redis.Client, tz *time.Location) ResultRepository {
	return &resultRedisRepo{rdb: rdb, tz: tz}
}

func (r *resultRedisRepo) keyResultsHash() string { return "classifyq:results" }
func (r *resultRedisRepo) keyTTLIndex() string    { return "classifyq:results:ttl" }

func (r *resultRedisRepo) now() time.Time { return time.Now().In(r.tz) }

func (r *resultRedisRepo) SaveResult(ctx context.Context, rec domain.Result) error {
	if rec.ID == "" {
		return fmt.Errorf("result id required")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := r.rdb.HSet(ctx, r.keyResultsHash(), rec.ID, string(b)).Err(); err != nil {
		return fmt.Errorf("redis HSET result: %w", err)
	}
	// logical retention index, consumed by external cleanup
	_ = r.rdb.ZAdd(ctx, r.keyTTLIndex(), &redis.Z{Score: float64(r.now().Add(30 * 24 * time.Hour).UTC().Unix()), Member: rec.ID}).Err()
	return nil
}

func (r *resultRedisRepo) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	js, err := r.rdb.HGet(ctx, r.keyResultsHash(), id).Result()
	if err == redis.Nil || (err == nil && js == "") {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET result: %w", err)
	}
	var rec domain.Result
	if err := json.Unmarshal([]byte(js), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &rec, nil
}
