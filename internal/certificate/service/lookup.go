package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"certhub/internal/certificate/models"
	dErrors "certhub/pkg/domain-errors"
	"certhub/pkg/platform/sentinel"
)

// Lookup finds everyone whose id number or certificate number equals key. Rows are
// grouped per (name, idNumber) in the order they were stored. It returns
// sentinel.ErrNotFound when nothing matches and sentinel.ErrUnavailable, without
// touching the database, while the connection manager has no pool.
func (s *Service) Lookup(ctx context.Context, key string) ([]models.AggregatedRecord, error) {
	start := time.Now()
	key = strings.TrimSpace(key)
	if key == "" {
		s.metrics.ObserveLookup("bad_request", start)
		return nil, dErrors.New(dErrors.CodeBadRequest, "query parameter q is required")
	}

	if !s.conns.Available() {
		s.metrics.ObserveLookup("unavailable", start)
		return nil, sentinel.ErrUnavailable
	}

	records, gen, ok := s.cache.Get(ctx, key)
	if ok {
		s.metrics.ObserveLookup("found", start)
		return records, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	conn, err := s.conns.Acquire(ctx)
	if err != nil {
		s.metrics.ObserveLookup(resultFor(err), start)
		return nil, err
	}
	defer conn.Close()

	rows, err := s.store.FindByKey(ctx, conn, key)
	if err != nil {
		err = s.storageError(err, "lookup failed")
		s.metrics.ObserveLookup(resultFor(err), start)
		return nil, err
	}
	if len(rows) == 0 {
		s.metrics.ObserveLookup("not_found", start)
		return nil, sentinel.ErrNotFound
	}

	records = models.Aggregate(rows)
	s.cache.Set(ctx, gen, key, records)
	s.metrics.ObserveLookup("found", start)
	return records, nil
}

// storageError classifies a failed statement. Broken connections are reported to
// the manager and surface as unavailability.
func (s *Service) storageError(err error, msg string) error {
	if s.conns.ReportFatal(err) {
		return fmt.Errorf("%s: %v: %w", msg, err, sentinel.ErrUnavailable)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": timed out")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeStorage, msg)
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return "unavailable"
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return "timeout"
	}
	return "error"
}
