package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetGetDelLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.PriceKey("pizza-1")
	if err := client.Set(ctx, key, "12.50", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "12.50" {
		t.Fatalf("expected stored value, got %q", value)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsNotFound(err) {
		t.Fatalf("expected cache miss after delete, got %v", err)
	}
}

func TestSetNXOnlySetsOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	set, err := client.SetNX(ctx, "crusto:lock:a", "1", time.Minute)
	if err != nil || !set {
		t.Fatalf("expected first setnx to win: set=%v err=%v", set, err)
	}
	set, err = client.SetNX(ctx, "crusto:lock:a", "1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set {
		t.Fatal("second setnx should not win")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.PriceKey("abc"); got != "crusto:price:abc" {
		t.Fatalf("unexpected price key %s", got)
	}
	if got := client.AvailabilityKey("abc"); got != "crusto:isAvailable:abc" {
		t.Fatalf("unexpected availability key %s", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(redis.Nil) {
		t.Fatal("redis.Nil should be a miss")
	}
	if IsNotFound(nil) {
		t.Fatal("nil error is not a miss")
	}
	if IsNotFound(fmt.Errorf("dial tcp: connection refused")) {
		t.Fatal("transport errors are not misses")
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
