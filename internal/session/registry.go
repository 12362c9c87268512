package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/age-gate/internal/ageapi"
)

// DefaultSessionTTL is how long a session may stay untouched before it is evicted.
const DefaultSessionTTL = 30 * time.Minute

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Registry keeps the live sessions of the service, keyed by id. Sessions
// idle for longer than the TTL are reset and dropped by a background sweeper.
type Registry struct {
	client    ageapi.Client
	recorder  Recorder
	threshold float64
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry

	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewRegistry constructs a registry whose sessions share one API client and
// starts its sweeper. A ttl <= 0 uses DefaultSessionTTL. Close stops the sweeper.
func NewRegistry(client ageapi.Client, recorder Recorder, threshold float64, ttl time.Duration, logger *zap.Logger) *Registry {
	return newRegistry(client, recorder, threshold, ttl, logger, time.Now)
}

func newRegistry(client ageapi.Client, recorder Recorder, threshold float64, ttl time.Duration, logger *zap.Logger, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	r := &Registry{
		client:    client,
		recorder:  recorder,
		threshold: threshold,
		ttl:       ttl,
		logger:    logger,
		now:       now,
		sessions:  make(map[string]*entry),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go r.sweepLoop(sweepInterval(ttl))
	return r
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// Create starts a new session in capturing mode for owner.
func (r *Registry) Create(owner string) *Controller {
	c := NewController(uuid.NewString(), owner, r.client, r.recorder, r.threshold, r.logger)
	r.mu.Lock()
	r.sessions[c.ID()] = &entry{ctrl: c, lastSeen: r.now()}
	r.mu.Unlock()
	return c
}

// Get returns the session with id if owner created it and marks it as seen.
func (r *Registry) Get(id, owner string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.ctrl.Owner() != owner {
		return nil, ErrNotFound
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Delete resets and forgets a session.
func (r *Registry) Delete(id, owner string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || e.ctrl.Owner() != owner {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	e.ctrl.Reset()
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts every session idle for longer than the TTL and returns how
// many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Controller
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.ctrl)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		c.Reset()
	}
	if len(expired) > 0 {
		r.logger.Info("evicted idle sessions", zap.Int("count", len(expired)), zap.Duration("ttl", r.ttl))
	}
	return len(expired)
}

func (r *Registry) sweepLoop(interval time.Duration) {
	defer close(r.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close stops the sweeper and cancels every in-flight prediction.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.stopped
	})

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range sessions {
		e.ctrl.Reset()
	}
}
