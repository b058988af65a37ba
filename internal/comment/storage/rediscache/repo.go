// Package rediscache wraps a storage.Repository with a read-through Redis
// cache for model schemas. Records are never cached: their comment_log value
// is the only copy of the thread and is always read from the host.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage"
)

type Repo struct {
	next   storage.Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func New(next storage.Repository, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *Repo {
	return &Repo{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "rediscache").Logger(),
	}
}

// NewClient parses redisURL and checks the server is reachable.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (r *Repo) Record(ctx context.Context, recordID string) (model.Record, error) {
	return r.next.Record(ctx, recordID)
}

func (r *Repo) Fields(ctx context.Context, modelID string) ([]model.Field, error) {
	key := FieldsKey(modelID)

	var fields []model.Field
	if ok := r.get(ctx, key, &fields); ok {
		return fields, nil
	}

	fields, err := r.next.Fields(ctx, modelID)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, fields)
	return fields, nil
}

func (r *Repo) WriteCommentLog(ctx context.Context, recordID string, value *string) error {
	return r.next.WriteCommentLog(ctx, recordID, value)
}

// InvalidateFields drops the cached schema of a model.
func (r *Repo) InvalidateFields(ctx context.Context, modelID string) error {
	return r.rdb.Del(ctx, FieldsKey(modelID)).Err()
}

// get reports a cache hit. Redis failures degrade to a miss.
func (r *Repo) get(ctx context.Context, key string, dst any) bool {
	value, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}
	return true
}

func (r *Repo) set(ctx context.Context, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
