package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"certhub/internal/platform/metrics"
	dErrors "certhub/pkg/domain-errors"
	"certhub/pkg/platform/sentinel"
)

// State is the lifecycle position of the managed pool.
type State int

const (
	StateUninitialized State = iota
	StateRetrying
	StateAvailable
	StateExhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRetrying:
		return "retrying"
	case StateAvailable:
		return "available"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	defaultMaxAttempts    = 5
	defaultRecreateDelay  = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultAcquireTimeout = 5 * time.Second

	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
)

// Status is a point-in-time snapshot of the manager.
type Status struct {
	State     State     `json:"-"`
	StateName string    `json:"state"`
	Available bool      `json:"available"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	Since     time.Time `json:"since"`
}

// OpenFunc establishes and verifies a new pool.
type OpenFunc func(ctx context.Context) (*sqlx.DB, error)

// InitFunc prepares a freshly opened pool, typically by ensuring the schema.
type InitFunc func(ctx context.Context, db *sqlx.DB) error

// Manager owns the connection pool and its availability. While the pool is being
// established or re-established, Acquire fails fast with sentinel.ErrUnavailable.
type Manager struct {
	mu         sync.RWMutex
	state      State
	attempts   int
	lastErr    error
	since      time.Time
	db         *sqlx.DB
	pending    Timer
	running    bool
	generation uint64

	open           OpenFunc
	init           InitFunc
	scheduler      Scheduler
	policy         *backoff.ExponentialBackOff
	maxAttempts    int
	recreateDelay  time.Duration
	connectTimeout time.Duration
	acquireTimeout time.Duration
	now            func() time.Time
	logger         *zerolog.Logger
	metrics        *metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

func WithInitializer(fn InitFunc) Option {
	return func(m *Manager) { m.init = fn }
}

func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

func WithRecreateDelay(d time.Duration) Option {
	return func(m *Manager) { m.recreateDelay = d }
}

// WithTimeouts bounds each connection attempt and each pool checkout.
func WithTimeouts(connect, acquire time.Duration) Option {
	return func(m *Manager) {
		if connect > 0 {
			m.connectTimeout = connect
		}
		if acquire > 0 {
			m.acquireTimeout = acquire
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a manager in the uninitialized state. Call Start to begin
// connecting.
func NewManager(open OpenFunc, opts ...Option) *Manager {
	nop := zerolog.Nop()
	m := &Manager{
		state:          StateUninitialized,
		open:           open,
		scheduler:      RealScheduler(),
		maxAttempts:    defaultMaxAttempts,
		recreateDelay:  defaultRecreateDelay,
		connectTimeout: defaultConnectTimeout,
		acquireTimeout: defaultAcquireTimeout,
		now:            time.Now,
		logger:         &nop,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.since = m.now()
	m.policy = newRetryPolicy()
	return m
}

// newRetryPolicy yields 1s, 2s, 4s, ... capped at 30s, with no jitter.
func newRetryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.Multiplier = 2
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Start performs the first connection attempt synchronously and returns its
// error, if any. Failures schedule further attempts in the background, so callers
// may keep serving and report unavailability.
func (m *Manager) Start() error {
	m.attempt()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateAvailable {
		return nil
	}
	return m.lastErr
}

func (m *Manager) attempt() {
	m.mu.Lock()
	if m.running || m.state == StateAvailable || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.pending = nil
	gen := m.generation
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
	db, err := m.open(ctx)
	if err == nil && m.init != nil {
		if initErr := m.init(ctx, db); initErr != nil {
			_ = db.Close()
			err = fmt.Errorf("initialize schema: %w", initErr)
		}
	}
	cancel()
	m.metrics.ObserveInitAttempt(err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false

	if m.state == StateClosed || gen != m.generation {
		if err == nil {
			_ = db.Close()
		}
		return
	}

	if err == nil {
		m.db = db
		m.attempts = 0
		m.lastErr = nil
		m.policy.Reset()
		m.setState(StateAvailable)
		m.logger.Info().Msg("database connection established")
		return
	}

	m.attempts++
	m.lastErr = err
	if m.attempts >= m.maxAttempts {
		m.setState(StateExhausted)
		m.logger.Error().Err(err).Int("attempts", m.attempts).
			Msg("database unreachable, giving up until reconnect is requested")
		return
	}

	delay := m.policy.NextBackOff()
	m.setState(StateRetrying)
	m.logger.Warn().Err(err).Int("attempt", m.attempts).Int("max_attempts", m.maxAttempts).
		Dur("retry_in", delay).Msg("database connection failed, retrying")
	m.scheduleLocked(delay)
}

// scheduleLocked must be called with mu held.
func (m *Manager) scheduleLocked(d time.Duration) {
	if m.pending != nil {
		m.pending.Stop()
	}
	m.pending = m.scheduler.AfterFunc(d, m.attempt)
}

// setState must be called with mu held.
func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.since = m.now()
	m.metrics.SetDBAvailable(s == StateAvailable)
}

// Acquire checks out a dedicated connection bounded by the acquire timeout. The
// caller must Close it. When the pool is not available the error wraps
// sentinel.ErrUnavailable.
func (m *Manager) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	m.mu.RLock()
	db, state := m.db, m.state
	m.mu.RUnlock()

	if state != StateAvailable || db == nil {
		return nil, fmt.Errorf("acquire connection (database %s): %w", state, sentinel.ErrUnavailable)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, m.acquireTimeout)
	defer cancel()

	conn, err := db.Connx(acquireCtx)
	if err != nil {
		if m.ReportFatal(err) {
			return nil, fmt.Errorf("acquire connection: %v: %w", err, sentinel.ErrUnavailable)
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for a database connection")
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// ReportFatal discards the pool when err indicates the connections are broken and
// schedules a fresh attempt after the recreate delay with the attempt counter
// reset. It reports whether err was treated as fatal.
func (m *Manager) ReportFatal(err error) bool {
	if !IsFatal(err) {
		return false
	}

	m.mu.Lock()
	if m.state != StateAvailable {
		m.mu.Unlock()
		return true
	}
	old := m.db
	m.db = nil
	m.attempts = 0
	m.lastErr = err
	m.policy.Reset()
	m.generation++
	m.setState(StateUninitialized)
	m.scheduleLocked(m.recreateDelay)
	m.mu.Unlock()

	m.metrics.IncrementPoolRecreations()
	m.logger.Error().Err(err).Dur("recreate_in", m.recreateDelay).
		Msg("fatal database error, recreating pool")

	if old != nil {
		// Close waits for in-flight statements; don't hold the caller on it
		go func() { _ = old.Close() }()
	}
	return true
}

// Reconnect restarts the attempt cycle after exhaustion. It is a no-op in any
// other state.
func (m *Manager) Reconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateExhausted {
		return false
	}
	m.attempts = 0
	m.policy.Reset()
	m.generation++
	m.setState(StateUninitialized)
	m.scheduleLocked(0)
	m.logger.Info().Msg("database reconnect requested")
	return true
}

// Available reports whether Acquire can currently hand out connections.
func (m *Manager) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateAvailable
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{
		State:     m.state,
		StateName: m.state.String(),
		Available: m.state == StateAvailable,
		Attempts:  m.attempts,
		Since:     m.since,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// Ping round-trips a fresh checkout and reports the latency.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	start := m.now()
	conn, err := m.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		m.ReportFatal(err)
		return 0, fmt.Errorf("ping: %w", err)
	}
	return m.now().Sub(start), nil
}

// Close stops retries and closes the pool. The manager cannot be restarted.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	db := m.db
	m.db = nil
	m.setState(StateClosed)
	m.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close pool: %w", err)
	}
	return nil
}
