package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lensportal/lensportal-backend/pkg/instance"
)

type memoryLeaseStore struct {
	values  map[string]string
	extends int
}

func newMemoryLeaseStore() *memoryLeaseStore {
	return &memoryLeaseStore{values: map[string]string{}}
}

func (m *memoryLeaseStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLeaseStore) ExpireIfValue(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	m.extends++
	return true, nil
}

func (m *memoryLeaseStore) DeleteIfValue(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockExclusive(t *testing.T) {
	t.Setenv("LENSPORTAL_INSTANCE_ID", "cron-a")
	store := newMemoryLeaseStore()
	first, err := NewRedisLock(store, "lp:lock:cron", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "lp:lock:cron", time.Minute)

	ctx := context.Background()
	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("first acquire should succeed")
	}
	if !strings.HasPrefix(store.values["lp:lock:cron"], instance.ID()+"/") {
		t.Fatalf("lease token should name the instance, got %q", store.values["lp:lock:cron"])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second acquire should fail while held")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.values["lp:lock:cron"]; !held {
		t.Fatal("non-owner release must not delete the lease")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestRedisLockExtend(t *testing.T) {
	store := newMemoryLeaseStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()

	if err := lock.Extend(ctx); !errors.Is(err, ErrLockLost) {
		t.Fatalf("extend without a lease should report loss, got %v", err)
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire should succeed")
	}
	if err := lock.Extend(ctx); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if store.extends != 1 {
		t.Fatalf("expected one extend, got %d", store.extends)
	}

	store.values["k"] = "someone-else"
	if err := lock.Extend(ctx); !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected lock lost after takeover, got %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after loss: %v", err)
	}
	if store.values["k"] != "someone-else" {
		t.Fatal("release after loss must not touch the new holder")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := newMemoryLeaseStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire should succeed")
	}
	delete(store.values, "k")
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release of expired lease: %v", err)
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected client error")
	}
	if _, err := NewRedisLock(newMemoryLeaseStore(), "", 0); err == nil {
		t.Fatal("expected key error")
	}
}
