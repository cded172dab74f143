// Package pool implements the health-checked connection pool fronting
// every vector store handle: TTL+idle eviction, LRU overflow eviction, a
// periodic health-check sweeper wired through a circuit breaker per path,
// and leak detection via borrowed_at age.
package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/toolerrors"
)

// Config configures a Pool.
type Config struct {
	MaxInstances             int
	InstanceTTL              time.Duration
	HealthCheckInterval      time.Duration
	MinIdle                  int
	LeakDetectionThreshold   time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxInstances:           4,
		InstanceTTL:            300 * time.Second,
		HealthCheckInterval:    60 * time.Second,
		MinIdle:                1,
		LeakDetectionThreshold: 300 * time.Second,
	}
}

// Opener creates a new underlying connection for path.
type Opener func(ctx context.Context, path string) (any, error)

// HealthProbe performs a cheap liveness check (table enumeration) on a
// connection, returning an error if it is no longer usable.
type HealthProbe func(ctx context.Context, conn any) error

// Stats reports pool-wide counters.
type Stats struct {
	Size           int
	MaxSize        int
	TotalAccess    int64
	HitRate        float64
	HealthyCount   int
	IdleCount      int
	BorrowedCount  int
	PotentialLeaks int
}

type entry struct {
	id      string
	conn    *model.PooledConnection
	breaker *gobreaker.CircuitBreaker
}

// Pool owns up to Config.MaxInstances handles keyed by normalized path.
// get_connection never blocks on a lock: overflow is resolved by
// eviction, not by waiting. Recency-ordered overflow eviction is
// delegated to golang-lru/v2 (the same library internal/embed's query
// cache already depends on); only the TTL-priority pre-pass below is
// hand-rolled, since golang-lru/v2's plain Cache has no TTL concept.
type Pool struct {
	cfg    Config
	open   Opener
	probe  HealthProbe
	logger *slog.Logger

	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	hits    int64
	misses  int64

	stopHealth chan struct{}
	healthOnce sync.Once
}

// New constructs a Pool. open creates new connections; probe performs the
// periodic health check.
func New(cfg Config, open Opener, probe HealthProbe, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.MaxInstances
	if size <= 0 {
		size = 1
	}
	entries, _ := lru.New[string, *entry](size)
	p := &Pool{
		cfg:        cfg,
		open:       open,
		probe:      probe,
		logger:     logger,
		entries:    entries,
		stopHealth: make(chan struct{}),
	}
	if cfg.HealthCheckInterval > 0 {
		go p.healthLoop()
	}
	return p
}

func normalize(path string) string {
	return path
}

// GetConnection returns the healthy existing handle for path, opening a
// new one if absent, touching last_access/access_count. Never blocks on
// lock contention beyond the brief critical section; overflow is resolved
// by eviction.
func (p *Pool) GetConnection(ctx context.Context, path string) (any, error) {
	key := normalize(path)

	p.mu.Lock()
	if e, ok := p.entries.Get(key); ok && e.conn.Healthy {
		e.conn.LastAccess = time.Now()
		e.conn.AccessCount++
		p.hits++
		conn := e.conn.Connection
		p.mu.Unlock()
		return conn, nil
	}
	p.misses++
	p.evictExpired()
	p.mu.Unlock()

	conn, err := p.open(ctx, path)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindVectorDB, "get_connection.open", err)
	}

	now := time.Now()
	e := &entry{
		id: uuid.NewString(),
		conn: &model.PooledConnection{
			Connection: conn,
			Path:       key,
			CreatedAt:  now,
			LastAccess: now,
			Healthy:    true,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        key,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
		}),
	}

	p.mu.Lock()
	// A concurrent caller may have opened and inserted the same key while
	// this goroutine's p.open ran unlocked above. Keep whichever entry is
	// already there and close this one's connection instead of the Add
	// below silently discarding — and leaking — one of the two handles.
	if existing, ok := p.entries.Get(key); ok && existing.conn.Healthy {
		p.mu.Unlock()
		if closer, ok := conn.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		return existing.conn.Connection, nil
	}
	// Add evicts the least-recently-used entry itself once the pool is at
	// MaxInstances, so overflow past the TTL pre-pass above is handled by
	// the cache's own recency order rather than a hand-rolled scan.
	p.entries.Add(key, e)
	p.mu.Unlock()

	return conn, nil
}

// evictExpired removes the first entry whose age exceeds the TTL rules
// (age > TTL AND idle > 60s, or age > 2×TTL) — a priority golang-lru/v2's
// plain Cache cannot express, since it has no notion of elapsed time.
// Caller must hold p.mu.
func (p *Pool) evictExpired() {
	now := time.Now()
	for _, k := range p.entries.Keys() {
		e, ok := p.entries.Peek(k)
		if !ok {
			continue
		}
		age := now.Sub(e.conn.CreatedAt)
		idle := now.Sub(e.conn.LastAccess)
		if (age > p.cfg.InstanceTTL && idle > 60*time.Second) || age > 2*p.cfg.InstanceTTL {
			p.entries.Remove(k)
			return
		}
	}
}

// Borrow marks path's connection as currently borrowed, for leak detection.
func (p *Pool) Borrow(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries.Peek(normalize(path)); ok {
		now := time.Now()
		e.conn.BorrowedAt = &now
	}
}

// Release clears the borrowed marker for path.
func (p *Pool) Release(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries.Peek(normalize(path)); ok {
		e.conn.BorrowedAt = nil
	}
}

func (p *Pool) healthLoop() {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.runHealthChecks()
		case <-p.stopHealth:
			return
		}
	}
}

// runHealthChecks probes every handle through its circuit breaker;
// failing handles are removed from the pool before returning.
func (p *Pool) runHealthChecks() {
	p.mu.Lock()
	keys := p.entries.Keys()
	snapshot := make([]*entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := p.entries.Peek(k); ok {
			snapshot = append(snapshot, e)
		}
	}
	p.mu.Unlock()

	ctx := context.Background()
	for _, e := range snapshot {
		_, err := e.breaker.Execute(func() (any, error) {
			return nil, p.probe(ctx, e.conn.Connection)
		})
		if err != nil {
			p.logger.Warn("pool health check failed, evicting", slog.String("path", e.conn.Path), slog.Any("err", err))
			p.mu.Lock()
			p.entries.Remove(e.conn.Path)
			p.mu.Unlock()
		}
	}
}

// Stats reports the current pool state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	s := Stats{Size: p.entries.Len(), MaxSize: p.cfg.MaxInstances, TotalAccess: p.hits + p.misses}
	if total := p.hits + p.misses; total > 0 {
		s.HitRate = float64(p.hits) / float64(total)
	}
	for _, k := range p.entries.Keys() {
		e, ok := p.entries.Peek(k)
		if !ok {
			continue
		}
		if e.conn.Healthy {
			s.HealthyCount++
		}
		if now.Sub(e.conn.LastAccess) > 30*time.Second {
			s.IdleCount++
		}
		if e.conn.BorrowedAt != nil {
			s.BorrowedCount++
			if now.Sub(*e.conn.BorrowedAt) > p.cfg.LeakDetectionThreshold {
				s.PotentialLeaks++
			}
		}
	}
	return s
}

// Dispose stops the health-check timer, closes all handles (if they
// implement io.Closer-like Close() error), and zeroes counters.
// Idempotent.
func (p *Pool) Dispose() {
	p.healthOnce.Do(func() {
		close(p.stopHealth)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.entries.Keys() {
		if e, ok := p.entries.Peek(k); ok {
			if closer, ok := e.conn.Connection.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}
	}
	p.entries.Purge()
	p.hits = 0
	p.misses = 0
}
