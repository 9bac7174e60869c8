// Package cache keeps aggregated lookup results in Redis.
//
// Entries are namespaced by a generation counter. A committed import bumps the
// generation, which orphans every earlier entry at once; orphans expire by TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"certhub/internal/certificate/models"
	"certhub/internal/platform/metrics"
)

const (
	keyPrefix     = "certhub:lookup:"
	generationKey = keyPrefix + "generation"
	defaultTTL    = 5 * time.Minute
)

// Redis is a lookup cache backed by a Redis client. Redis failures degrade to cache
// misses and are logged; they never fail a lookup.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	logger  *zerolog.Logger
	metrics *metrics.Metrics
}

type Option func(*Redis)

func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLogger(l *zerolog.Logger) Option {
	return func(r *Redis) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Redis) { r.metrics = m }
}

func NewRedis(client redis.UniversalClient, opts ...Option) *Redis {
	nop := zerolog.Nop()
	r := &Redis{client: client, ttl: defaultTTL, logger: &nop}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generation identifies the cache namespace a lookup read from. Results must be
// written back under the generation observed before the database was queried.
type Generation int64

// NoGeneration marks a read that could not determine the generation; Set
// ignores it.
const NoGeneration Generation = -1

// invalidateChunk bounds the keys passed to one DEL.
const invalidateChunk = 500

func (r *Redis) generation(ctx context.Context) (Generation, error) {
	gen, err := r.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return NoGeneration, err
	}
	return Generation(gen), nil
}

func entryKey(gen Generation, key string) string {
	return keyPrefix + strconv.FormatInt(int64(gen), 10) + ":" + key
}

// Get returns the cached result for key along with the generation it consulted.
// On a miss the generation is still returned so the caller can pass it to Set.
func (r *Redis) Get(ctx context.Context, key string) ([]models.AggregatedRecord, Generation, bool) {
	gen, err := r.generation(ctx)
	if err != nil {
		r.fail(err, "read cache generation")
		return nil, NoGeneration, false
	}
	raw, err := r.client.Get(ctx, entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.metrics.ObserveCache("miss")
		return nil, gen, false
	}
	if err != nil {
		r.fail(err, "read cached lookup")
		return nil, gen, false
	}

	var records []models.AggregatedRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		r.fail(err, "decode cached lookup")
		return nil, gen, false
	}
	r.metrics.ObserveCache("hit")
	return records, gen, true
}

// Set stores records under gen. An entry written for a generation that an import
// has since replaced is never read again.
func (r *Redis) Set(ctx context.Context, gen Generation, key string, records []models.AggregatedRecord) {
	if gen == NoGeneration {
		return
	}
	raw, err := json.Marshal(records)
	if err != nil {
		r.fail(err, "encode lookup")
		return
	}
	if err := r.client.Set(ctx, entryKey(gen, key), raw, r.ttl).Err(); err != nil {
		r.fail(err, "write cached lookup")
	}
}

// Invalidate starts a new generation. If the counter cannot be bumped, the
// entries for keys in the current generation are deleted instead.
func (r *Redis) Invalidate(ctx context.Context, keys ...string) {
	err := r.client.Incr(ctx, generationKey).Err()
	if err == nil {
		return
	}
	r.fail(err, "bump cache generation")
	if len(keys) == 0 {
		return
	}

	gen, err := r.generation(ctx)
	if err != nil {
		r.fail(err, "read cache generation")
		return
	}
	for lo := 0; lo < len(keys); lo += invalidateChunk {
		hi := min(lo+invalidateChunk, len(keys))
		entries := make([]string, 0, hi-lo)
		for _, k := range keys[lo:hi] {
			entries = append(entries, entryKey(gen, k))
		}
		if err := r.client.Del(ctx, entries...).Err(); err != nil {
			r.fail(err, "delete cached lookups")
			return
		}
	}
	r.logger.Info().Int("keys", len(keys)).Msg("lookup cache entries deleted after generation bump failed")
}

func (r *Redis) fail(err error, op string) {
	r.metrics.ObserveCache("error")
	r.logger.Warn().Err(err).Str("op", op).Msg("lookup cache unavailable")
}

// Noop never holds anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]models.AggregatedRecord, Generation, bool) {
	return nil, NoGeneration, false
}
func (Noop) Set(context.Context, Generation, string, []models.AggregatedRecord) {}
func (Noop) Invalidate(context.Context, ...string)                              {}
