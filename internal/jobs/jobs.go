// Package jobs tracks asynchronous analysis job status in Redis.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "job:"

// DefaultTTL matches the lifetime of a placeholder status written at submission.
const DefaultTTL = time.Hour

// Status is the lifecycle state of a submitted analysis job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrJobNotFound reports an unknown or expired job id.
var ErrJobNotFound = errors.New("job not found")

// Store is a job status cache. It owns its Redis client; construct it once at
// startup and Close it at shutdown.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses a redis:// URL, dials and pings the server.
func Connect(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	s := New(redis.NewClient(opts), ttl)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing client. A non-positive ttl falls back to DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(id uuid.UUID) string { return keyPrefix + id.String() }

// Set writes the status of a job with the configured expiry.
func (s *Store) Set(ctx context.Context, id uuid.UUID, status Status) error {
	if err := s.rdb.Set(ctx, key(id), string(status), s.ttl).Err(); err != nil {
		return fmt.Errorf("set job %s: %w", id, err)
	}
	return nil
}

// Get returns the status of a job, or ErrJobNotFound once it has expired.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Status, error) {
	val, err := s.rdb.Get(ctx, key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get job %s: %w", id, err)
	}
	return Status(val), nil
}

// Delete forgets a job. Deleting an unknown job is not an error.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	pong, err := s.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("expected PONG, got %s", pong)
	}
	return nil
}

// TTL is the expiry applied to every status write.
func (s *Store) TTL() time.Duration { return s.ttl }

// Close releases the underlying client.
func (s *Store) Close() error { return s.rdb.Close() }
