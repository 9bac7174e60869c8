package service

import (
	"context"
	"time"

	"certhub/internal/certificate/models"
	"certhub/pkg/platform/sentinel"
)

// PurgeOlderThan deletes rows created before cutoff. It returns
// sentinel.ErrUnavailable without querying while the database is down.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if !s.conns.Available() {
		return 0, sentinel.ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	conn, err := s.conns.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	n, err := s.store.DeleteOlderThan(ctx, conn, cutoff)
	if err != nil {
		return 0, s.storageError(err, "purge expired certificates")
	}
	if n > 0 {
		s.cache.Invalidate(ctx)
	}
	return n, nil
}

// Stats summarizes stored certificates, counting rows created before
// expiredBefore as expired.
func (s *Service) Stats(ctx context.Context, expiredBefore time.Time) (models.Stats, error) {
	if !s.conns.Available() {
		return models.Stats{}, sentinel.ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	conn, err := s.conns.Acquire(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	defer conn.Close()

	st, err := s.store.Stats(ctx, conn, expiredBefore)
	if err != nil {
		return models.Stats{}, s.storageError(err, "read certificate stats")
	}
	return st, nil
}
