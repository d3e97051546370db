package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestSetWritesStatusWithExpiry(t *testing.T) {
	s, mr := newTestStore(t, 0)
	id := uuid.New()

	if err := s.Set(context.Background(), id, StatusProcessing); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := mr.Get("job:" + id.String())
	if err != nil {
		t.Fatalf("miniredis get: %v", err)
	}
	if got != "processing" {
		t.Fatalf("expected processing, got %q", got)
	}
	if ttl := mr.TTL("job:" + id.String()); ttl != DefaultTTL {
		t.Fatalf("expected ttl %v, got %v", DefaultTTL, ttl)
	}
}

func TestGetExpiredJob(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	id := uuid.New()
	ctx := context.Background()

	if err := s.Set(ctx, id, StatusProcessing); err != nil {
		t.Fatalf("Set: %v", err)
	}
	status, err := s.Get(ctx, id)
	if err != nil || status != StatusProcessing {
		t.Fatalf("Get: %q %v", status, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after expiry, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)
	id := uuid.New()
	ctx := context.Background()

	if err := s.Set(ctx, id, StatusCompleted); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := s.Delete(ctx, uuid.New()); err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	s, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0", 30*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()
	if s.TTL() != 30*time.Second {
		t.Fatalf("unexpected ttl %v", s.TTL())
	}

	mr.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure after server stopped")
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not-a-url", 0); err == nil {
		t.Fatalf("expected error")
	}
}
