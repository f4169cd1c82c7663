package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lensportal/lensportal-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "registrations:ip", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first request allowed with count 1, got allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expire for first increment")
	}

	allowed, count, err = client.FixedWindowAllow(ctx, "registrations:ip", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "registrations:ip", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestRevocationMarkerLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.RevocationKey("uid-1")

	if ok, err := client.Exists(ctx, key); err != nil || ok {
		t.Fatalf("expected no marker, got ok=%v err=%v", ok, err)
	}
	if err := client.Set(ctx, key, "1", time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if ok, err := client.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("expected marker present, got ok=%v err=%v", ok, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsMiss(err) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestOwnerCheckedMutations(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron")
	if err := client.Set(ctx, key, "worker-a", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	if ok, err := client.ExpireIfValue(ctx, key, "worker-b", time.Minute); err != nil || ok {
		t.Fatalf("foreign extend should be refused, got ok=%v err=%v", ok, err)
	}
	if ok, err := client.ExpireIfValue(ctx, key, "worker-a", 90*time.Second); err != nil || !ok {
		t.Fatalf("owner extend failed, got ok=%v err=%v", ok, err)
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != 90*time.Second {
		t.Fatalf("unexpected expire calls %+v", mock.expireCalls)
	}

	if ok, err := client.DeleteIfValue(ctx, key, "worker-b"); err != nil || ok {
		t.Fatalf("foreign delete should be refused, got ok=%v err=%v", ok, err)
	}
	if ok, err := client.DeleteIfValue(ctx, key, "worker-a"); err != nil || !ok {
		t.Fatalf("owner delete failed, got ok=%v err=%v", ok, err)
	}
	if _, err := client.Get(ctx, key); !IsMiss(err) {
		t.Fatalf("expected miss after owner delete, got %v", err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, err := client.Exists(context.Background(), "k"); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	tests := map[string]string{
		client.IdempotencyKey("bulk-adjust", "abc"): "lp:idempotency:bulk-adjust:abc",
		client.RateLimitKey("registrations:ip:1"):   "lp:rate_limit:registrations:ip:1",
		client.RevocationKey("uid-9"):               "lp:revoked:uid-9",
		client.CacheGenerationKey("catalog"):        "lp:cache:catalog:gen",
		client.CacheKey("catalog", 3, "products"):   "lp:cache:catalog:3:products",
		client.LockKey("cron"):                      "lp:lock:cron",
		client.IdempotencyKey("scope", ""):          "lp:idempotency:scope",
	}
	for got, want := range tests {
		if got != want {
			t.Fatalf("unexpected key %s, want %s", got, want)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
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

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) == 0 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected eval arity"))
	}
	current, ok := m.data[keys[0]]
	if !ok || current != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch script {
	case deleteIfValueScript:
		delete(m.data, keys[0])
	case expireIfValueScript:
		m.expireCalls = append(m.expireCalls, expireCall{key: keys[0], ttl: time.Duration(args[1].(int64)) * time.Millisecond})
	default:
		return redis.NewCmdResult(nil, fmt.Errorf("unknown script"))
	}
	return redis.NewCmdResult(int64(1), nil)
}
