package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"certhub/internal/certificate/cache"
	"certhub/internal/certificate/models"
	"certhub/internal/certificate/store"
	"certhub/internal/platform/metrics"
)

const (
	defaultQueryTimeout = 30 * time.Second
	defaultTxTimeout    = 2 * time.Minute
)

// Connections hands out pooled connections and learns about broken ones.
// *database.Manager satisfies it.
type Connections interface {
	Acquire(ctx context.Context) (*sqlx.Conn, error)
	ReportFatal(err error) bool
	Available() bool
}

// LookupCache stores aggregated lookup results between imports. Get reports the
// generation it consulted; Set must be given that generation so a result read
// before an import is never stored as current after it. Invalidate receives the
// lookup keys touched by the change.
type LookupCache interface {
	Get(ctx context.Context, key string) ([]models.AggregatedRecord, cache.Generation, bool)
	Set(ctx context.Context, gen cache.Generation, key string, records []models.AggregatedRecord)
	Invalidate(ctx context.Context, keys ...string)
}

// Service runs certificate lookups, imports and record purges over connections
// checked out per call.
type Service struct {
	conns        Connections
	store        *store.Store
	cache        LookupCache
	queryTimeout time.Duration
	txTimeout    time.Duration
	now          func() time.Time
	logger       *zerolog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Service)

func WithCache(c LookupCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithQueryTimeout bounds each lookup and the import transaction.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.queryTimeout = d
			if d > s.txTimeout {
				s.txTimeout = d
			}
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(conns Connections, st *store.Store, opts ...Option) *Service {
	nop := zerolog.Nop()
	s := &Service{
		conns:        conns,
		store:        st,
		cache:        cache.Noop{},
		queryTimeout: defaultQueryTimeout,
		txTimeout:    defaultTxTimeout,
		now:          time.Now,
		logger:       &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
