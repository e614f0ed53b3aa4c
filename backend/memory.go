package backend

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/ceych/keys"
)

// Memory is an in-process Backend. Values are stored as-is with no
// serialization, so mutations to stored pointers are visible through the
// cache. Expired entries are dropped lazily on Get and swept by a janitor
// goroutine that runs between Start and Stop.
type Memory struct {
	cfg config

	mu      sync.Mutex
	entries map[string]*memoryEntry
	ready   bool
	done    chan struct{}
	wg      sync.WaitGroup
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

var _ Backend = (*Memory)(nil)

// NewMemory returns a stopped in-memory Backend. Call Start before use.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		cfg:     applyOptions(opts),
		entries: make(map[string]*memoryEntry),
	}
}

// IsReady reports whether Start has been called and Stop has not.
func (m *Memory) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Start spawns the janitor goroutine. Idempotent.
func (m *Memory) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}
	m.ready = true
	m.done = make(chan struct{})
	m.wg.Add(1)
	go m.sweep(m.done)
	return nil
}

// Stop halts the janitor and marks the backend not-ready. Entries are kept
// so a later Start resumes with a warm cache. Idempotent.
func (m *Memory) Stop(_ context.Context) error {
	m.mu.Lock()
	if !m.ready {
		m.mu.Unlock()
		return nil
	}
	m.ready = false
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Memory) Get(_ context.Context, key keys.Key) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return nil, ErrNotReady
	}

	stored, ok := m.entries[key.String()]
	if !ok {
		return nil, nil
	}
	if time.Now().After(stored.expiresAt) {
		delete(m.entries, key.String())
		return nil, nil
	}

	entry := stored.entry
	return &entry, nil
}

func (m *Memory) Set(_ context.Context, key keys.Key, item any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrNotReady
	}

	m.entries[key.String()] = &memoryEntry{
		entry:     Entry{Item: item},
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (m *Memory) Drop(_ context.Context, key keys.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrNotReady
	}

	delete(m.entries, key.String())
	return nil
}

// Len reports the number of stored entries, expired or not. Intended for
// tests and diagnostics.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweep(done chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, stored := range m.entries {
				if now.After(stored.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
