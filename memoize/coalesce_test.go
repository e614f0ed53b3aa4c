package memoize

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_CoalesceSharesInFlightCompute(t *testing.T) {
	fb := newFakeBackend()
	client, err := NewClient(Config{Backend: fb, Coalesce: true})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var calls atomic.Int32
	slow := func(_ context.Context, _ ...any) (any, error) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		return "shared", nil
	}

	wrapped, err := Wrap(client, slow, WithName("slow"))
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = wrapped.Do(context.Background(), "same-args")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("caller %d = %v, want shared", i, results[i])
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("computation invoked %d times, want 1 (coalesced)", got)
	}
}

func TestDo_NoCoalesceByDefault(t *testing.T) {
	fb := newFakeBackend()
	client := newTestClient(t, fb, nil)

	var calls atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	blocking := func(_ context.Context, _ ...any) (any, error) {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return "v", nil
	}

	wrapped, err := Wrap(client, blocking, WithName("blocking"))
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = wrapped.Do(context.Background(), "same-args")
		}()
	}

	// Both callers miss and both compute before either stores.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("second caller never started computing; unexpected coalescing")
		}
	}
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 2 {
		t.Errorf("computation invoked %d times, want 2 (last write wins)", got)
	}
}
