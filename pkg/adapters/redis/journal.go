package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// farFuture is the index score of sessions that never expire (2100-01-01).
const farFuture = 4102444800

// Journal implements ports.Journal using Redis. Each session is a list of
// JSON records; a sorted set indexes sessions by expiry.
type Journal struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Journal)

// WithTTL sets the expiration for session histories.
func WithTTL(ttl time.Duration) Option {
	return func(j *Journal) {
		j.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(j *Journal) {
		j.prefix = prefix
	}
}

// New creates a Redis journal with its own client.
func New(address, password string, db int, opts ...Option) *Journal {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis journal over an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Journal {
	j := &Journal{
		client: client,
		prefix: "tapestry:journal:",
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Client returns the underlying client, for sharing with a Locker.
func (j *Journal) Client() *backend.Client { return j.client }

func (j *Journal) key(sessionID string) string {
	return j.prefix + sessionID
}

func (j *Journal) indexKey() string {
	return j.prefix + "index"
}

// Append pushes rec and refreshes the session's expiry in one pipeline.
func (j *Journal) Append(ctx context.Context, sessionID string, rec ports.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	score := float64(farFuture)
	if j.ttl > 0 {
		score = float64(time.Now().Add(j.ttl).Unix())
	}

	pipe := j.client.TxPipeline()
	pipe.RPush(ctx, j.key(sessionID), data)
	if j.ttl > 0 {
		pipe.Expire(ctx, j.key(sessionID), j.ttl)
	}
	pipe.ZAdd(ctx, j.indexKey(), backend.Z{Score: score, Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// List returns the session's records in append order.
func (j *Journal) List(ctx context.Context, sessionID string) ([]ports.Record, error) {
	vals, err := j.client.LRange(ctx, j.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	recs := make([]ports.Record, 0, len(vals))
	for _, v := range vals {
		var rec ports.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Delete removes the session's history and index entry.
func (j *Journal) Delete(ctx context.Context, sessionID string) error {
	pipe := j.client.Pipeline()
	pipe.Del(ctx, j.key(sessionID))
	pipe.ZRem(ctx, j.indexKey(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// Sessions prunes expired index entries and returns the rest.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := j.client.ZRemRangeByScore(ctx, j.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	sessions, err := j.client.ZRange(ctx, j.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close closes the redis client.
func (j *Journal) Close() error {
	return j.client.Close()
}
