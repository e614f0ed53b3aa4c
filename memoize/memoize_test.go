package memoize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/ceych/backend"
	"github.com/jonwraymond/ceych/keys"
)

// backendTimeout builds the error a backend reports for a timed-out write.
func backendTimeout() error {
	return fmt.Errorf("%w: context deadline exceeded", backend.ErrTimeout)
}

// fakeBackend records operations and returns configured results.
type fakeBackend struct {
	mu      sync.Mutex
	ready   bool
	entries map[string]*backend.Entry
	ttls    map[string]time.Duration

	getErr  error
	setErr  error
	dropErr error

	gets   int
	sets   int
	drops  int
	starts int
	stops  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		ready:   true,
		entries: make(map[string]*backend.Entry),
		ttls:    make(map[string]time.Duration),
	}
}

func (f *fakeBackend) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeBackend) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.ready = true
	return nil
}

func (f *fakeBackend) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.ready = false
	return nil
}

func (f *fakeBackend) Get(_ context.Context, key keys.Key) (*backend.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entries[key.String()], nil
}

func (f *fakeBackend) Set(_ context.Context, key keys.Key, item any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key.String()] = &backend.Entry{Item: item}
	f.ttls[key.String()] = ttl
	return nil
}

func (f *fakeBackend) Drop(_ context.Context, key keys.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drops++
	if f.dropErr != nil {
		return f.dropErr
	}
	delete(f.entries, key.String())
	return nil
}

func (f *fakeBackend) lastTTL() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ttl := range f.ttls {
		return ttl
	}
	return 0
}

// recordingSink counts increments and timing samples per metric name.
type recordingSink struct {
	mu      sync.Mutex
	counts  map[string]int
	timings map[string]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		counts:  make(map[string]int),
		timings: make(map[string]int),
	}
}

func (s *recordingSink) Increment(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name]++
}

func (s *recordingSink) Timing(name string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings[name]++
}

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

func (s *recordingSink) timingCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings[name]
}

// panicSink panics on every call; the engine must shrug it off.
type panicSink struct{}

func (panicSink) Increment(string)             { panic("sink exploded") }
func (panicSink) Timing(string, time.Duration) { panic("sink exploded") }
