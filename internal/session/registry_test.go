package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/age-gate/internal/capture"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestRegistryScopesSessionsToOwner(t *testing.T) {
	r := NewRegistry(&stubClient{}, nil, DefaultAgeThreshold, time.Hour, zap.NewNop())
	defer r.Close()
	c := r.Create("alice")

	if got, err := r.Get(c.ID(), "alice"); err != nil || got != c {
		t.Fatalf("expected owner to get session, got %v (%v)", got, err)
	}
	if _, err := r.Get(c.ID(), "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
	if err := r.Delete(c.ID(), "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting other owner's session, got %v", err)
	}
	if err := r.Delete(c.ID(), "alice"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestSweepEvictsIdleSessionsOnly(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r := newRegistry(&stubClient{age: 30, block: make(chan struct{})}, nil, DefaultAgeThreshold, 10*time.Minute, zap.NewNop(), clock.Now)
	defer r.Close()

	idle := r.Create("alice")
	active := r.Create("alice")
	done, err := idle.Capture(context.Background(), capture.Result{Image: testImage})
	if err != nil {
		t.Fatalf("unexpected capture error: %v", err)
	}

	clock.Advance(6 * time.Minute)
	if _, err := r.Get(active.ID(), "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(6 * time.Minute)

	if evicted := r.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if _, err := r.Get(idle.ID(), "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected idle session to be gone, got %v", err)
	}
	if _, err := r.Get(active.ID(), "alice"); err != nil {
		t.Fatalf("expected recently seen session to survive, got %v", err)
	}

	waitSettled(t, done)
	if snap := idle.Snapshot(); snap.Mode != Capturing || snap.Image != "" {
		t.Fatalf("expected evicted session to release its image, got %+v", snap)
	}
}

func TestSweeperEvictsAbandonedSessions(t *testing.T) {
	r := NewRegistry(&stubClient{age: 30}, nil, DefaultAgeThreshold, 20*time.Millisecond, zap.NewNop())
	defer r.Close()

	for i := 0; i < 100; i++ {
		r.Create("alice")
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Len() != 0 {
		t.Fatalf("expected abandoned sessions to be evicted, %d left", r.Len())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := NewRegistry(&stubClient{}, nil, DefaultAgeThreshold, time.Hour, zap.NewNop())
	r.Create("alice")
	r.Close()
	r.Close()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after close, got %d", r.Len())
	}
}
