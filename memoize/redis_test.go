package memoize

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/ceych/backend"
)

// startedRedisBackend wires a started Redis backend over an in-process
// server. The serialized path through msgpack is exactly what these tests
// exercise; the in-memory backends never encode.
func startedRedisBackend(t *testing.T) *backend.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := backend.NewRedis(client)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Stop(context.Background()) })
	return r
}

func TestDo_RedisHitDecodesStoredValue(t *testing.T) {
	client, err := NewClient(Config{Backend: startedRedisBackend(t)})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	comp := &computation{result: "hello"}
	wrapped, err := Wrap(client, comp.run, WithName("greet"))
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	ctx := context.Background()
	first, err := wrapped.Do(ctx, "arg")
	if err != nil {
		t.Fatalf("miss call failed: %v", err)
	}
	second, err := wrapped.Do(ctx, "arg")
	if err != nil {
		t.Fatalf("hit call failed: %v", err)
	}

	if first != "hello" {
		t.Errorf("miss value = %v (%T), want hello", first, first)
	}
	// The hit must return the stored value, not its wire encoding.
	if second != "hello" {
		t.Errorf("hit value = %v (%T), want hello (string)", second, second)
	}
	if got := comp.calls.Load(); got != 1 {
		t.Errorf("computation invoked %d times, want 1", got)
	}
}

func TestDo_RedisTypedStructRoundTrip(t *testing.T) {
	client, err := NewClient(Config{Backend: startedRedisBackend(t)})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	type profile struct {
		Name string `msgpack:"name"`
		Age  int    `msgpack:"age"`
	}
	var calls int
	fetch := func(_ context.Context, _ ...any) (profile, error) {
		calls++
		return profile{Name: "ada", Age: 36}, nil
	}

	wrapped, err := Wrap(client, fetch, WithName("profile"))
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	ctx := context.Background()
	if _, err := wrapped.Do(ctx, "ada"); err != nil {
		t.Fatalf("miss call failed: %v", err)
	}
	got, err := wrapped.Do(ctx, "ada")
	if err != nil {
		t.Fatalf("hit call failed: %v", err)
	}

	if got.Name != "ada" || got.Age != 36 {
		t.Errorf("hit value = %+v, want {ada 36}", got)
	}
	if calls != 1 {
		t.Errorf("computation invoked %d times, want 1", calls)
	}
}

func TestDo_RedisNilResultIsAHit(t *testing.T) {
	client, err := NewClient(Config{Backend: startedRedisBackend(t)})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	comp := &computation{result: nil}
	wrapped, err := Wrap(client, comp.run, WithName("nothing"))
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	ctx := context.Background()
	first, err := wrapped.Do(ctx)
	if err != nil {
		t.Fatalf("miss call failed: %v", err)
	}
	second, err := wrapped.Do(ctx)
	if err != nil {
		t.Fatalf("hit call failed: %v", err)
	}

	if first != nil || second != nil {
		t.Errorf("results = [%v, %v], want [nil, nil]", first, second)
	}
	if got := comp.calls.Load(); got != 1 {
		t.Errorf("computation invoked %d times, want 1 (nil is a valid hit)", got)
	}
}
