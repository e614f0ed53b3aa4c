package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/ceych/keys"
)

func testKey(id string) keys.Key {
	return keys.Key{ID: id, Segment: "ceych_test"}
}

func startedMemory(t *testing.T, opts ...Option) *Memory {
	t.Helper()
	m := NewMemory(opts...)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if m.IsReady() {
		t.Error("new backend should not be ready")
	}
	if _, err := m.Get(ctx, testKey("k")); !errors.Is(err, ErrNotReady) {
		t.Errorf("Get() before Start = %v, want ErrNotReady", err)
	}

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.IsReady() {
		t.Error("backend should be ready after Start")
	}

	// Idempotent Start
	if err := m.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.IsReady() {
		t.Error("backend should not be ready after Stop")
	}

	// Idempotent Stop
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestMemory_SetGetDrop(t *testing.T) {
	ctx := context.Background()
	m := startedMemory(t)
	key := testKey("k1")

	// Miss before set
	entry, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Fatalf("expected miss, got %+v", entry)
	}

	if err := m.Set(ctx, key, "hello", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	entry, err = m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry == nil {
		t.Fatal("expected hit")
	}
	if entry.Item != "hello" {
		t.Errorf("Item = %v, want hello", entry.Item)
	}

	if err := m.Drop(ctx, key); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	entry, err = m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Error("entry should be gone after Drop")
	}

	// Dropping a missing key is idempotent
	if err := m.Drop(ctx, key); err != nil {
		t.Errorf("Drop() on missing key = %v, want nil", err)
	}
}

func TestMemory_NilItemIsAHit(t *testing.T) {
	ctx := context.Background()
	m := startedMemory(t)
	key := testKey("nil-item")

	if err := m.Set(ctx, key, nil, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	entry, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry == nil {
		t.Fatal("a stored nil item must still be a hit")
	}
	if entry.Item != nil {
		t.Errorf("Item = %v, want nil", entry.Item)
	}
}

func TestMemory_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	m := startedMemory(t)
	key := testKey("expiring")

	if err := m.Set(ctx, key, 1, 10*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	entry, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Error("expired entry should read as a miss")
	}
}

func TestMemory_JanitorSweeps(t *testing.T) {
	ctx := context.Background()
	m := startedMemory(t, WithExpiryCheck(10*time.Millisecond))

	if err := m.Set(ctx, testKey("sweep"), 1, time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for m.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor never swept the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemory_ZeroTTLNotStored(t *testing.T) {
	ctx := context.Background()
	m := startedMemory(t)

	if err := m.Set(ctx, testKey("zero"), 1, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("zero-ttl entry stored, Len = %d", m.Len())
	}
}

func TestMemory_WarmAcrossRestart(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	key := testKey("warm")
	if err := m.Set(ctx, key, "kept", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	defer m.Stop(ctx)

	entry, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry == nil || entry.Item != "kept" {
		t.Errorf("entry should survive a stop/start cycle, got %+v", entry)
	}
}
