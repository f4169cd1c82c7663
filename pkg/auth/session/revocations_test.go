package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) RevocationKey(userID string) string {
	return "revoked:" + userID
}

func TestRevocationsLifecycle(t *testing.T) {
	store := newMockStore()
	revocations := &Revocations{store: store, keyer: store, ttl: 2 * time.Hour}
	ctx := context.Background()

	revoked, err := revocations.IsRevoked(ctx, "uid-1")
	if err != nil || revoked {
		t.Fatalf("expected not revoked, got %v err=%v", revoked, err)
	}

	if err := revocations.Revoke(ctx, "uid-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.ttls["revoked:uid-1"] != 2*time.Hour {
		t.Fatalf("expected marker ttl to match configuration")
	}
	if revoked, _ := revocations.IsRevoked(ctx, "uid-1"); !revoked {
		t.Fatal("expected revoked after Revoke")
	}

	if err := revocations.Restore(ctx, "uid-1"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if revoked, _ := revocations.IsRevoked(ctx, "uid-1"); revoked {
		t.Fatal("expected marker cleared after Restore")
	}
}

func TestRevocationsRequireUserID(t *testing.T) {
	store := newMockStore()
	revocations := &Revocations{store: store, keyer: store, ttl: time.Hour}
	if err := revocations.Revoke(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank user id")
	}
}
