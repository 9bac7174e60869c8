// Package retention removes expired certificate rows and stale upload files on a
// schedule and on demand.
package retention

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"certhub/internal/platform/config"
	"certhub/internal/platform/metrics"
	"certhub/pkg/platform/sentinel"
)

// RecordPurger deletes certificate rows created before cutoff.
type RecordPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Report describes one sweep.
type Report struct {
	RowsDeleted  int64     `json:"rowsDeleted"`
	FilesDeleted int       `json:"filesDeleted"`
	DBSkipped    bool      `json:"dbSkipped"`
	Errors       []string  `json:"errors,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	Duration     string    `json:"duration"`
}

// Sweeper runs retention passes. Passes never overlap: a trigger that arrives
// while one is running waits for it to finish.
type Sweeper struct {
	mu        sync.Mutex
	records   RecordPurger
	uploadDir string
	cfg       config.Retention
	now       func() time.Time
	logger    *zerolog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func WithLogger(l *zerolog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func New(records RecordPurger, uploadDir string, cfg config.Retention, opts ...Option) *Sweeper {
	nop := zerolog.Nop()
	s := &Sweeper{
		records:   records,
		uploadDir: uploadDir,
		cfg:       cfg,
		now:       time.Now,
		logger:    &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep deletes expired rows and stale upload files. The two halves are
// independent; a failure in one never stops the other.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	report := Report{StartedAt: start.UTC()}
	var errs *multierror.Error

	cutoff := s.cfg.RecordAge.Cutoff(start)
	rows, err := s.records.PurgeOlderThan(ctx, cutoff)
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		report.DBSkipped = true
		s.logger.Warn().Err(err).Msg("retention: database unavailable, skipping record purge")
	case err != nil:
		errs = multierror.Append(errs, fmt.Errorf("purge records: %w", err))
	default:
		report.RowsDeleted = rows
	}

	files, err := s.sweepFiles(start)
	report.FilesDeleted = files
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	if errs != nil {
		for _, e := range errs.Errors {
			report.Errors = append(report.Errors, e.Error())
			s.logger.Error().Err(e).Msg("retention error")
		}
	}
	report.Duration = s.now().Sub(start).String()
	s.metrics.ObserveSweep(report.RowsDeleted, report.FilesDeleted, len(report.Errors))

	s.logger.Info().
		Time("cutoff", cutoff).
		Int64("rows_deleted", report.RowsDeleted).
		Int("files_deleted", report.FilesDeleted).
		Bool("db_skipped", report.DBSkipped).
		Int("errors", len(report.Errors)).
		Msg("retention sweep finished")
	return report
}

// sweepFiles removes regular files in the upload directory last modified more
// than FileMaxAge before now. A missing directory is not an error.
func (s *Sweeper) sweepFiles(now time.Time) (int, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	var (
		deleted int
		errs    *multierror.Error
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stat %s: %w", entry.Name(), err))
			continue
		}
		if now.Sub(info.ModTime()) <= s.cfg.FileMaxAge {
			continue
		}
		path := filepath.Join(s.uploadDir, entry.Name())
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = multierror.Append(errs, fmt.Errorf("remove %s: %w", entry.Name(), err))
			}
			continue
		}
		deleted++
		s.logger.Debug().Str("file", entry.Name()).Time("modified", info.ModTime()).Msg("removed stale upload")
	}
	return deleted, errs.ErrorOrNil()
}

// Run sweeps once immediately, then on every interval until ctx is done. It
// returns at once when automatic cleanup is disabled.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.cfg.AutoCleanup {
		s.logger.Info().Msg("retention: automatic cleanup disabled")
		return nil
	}

	c := cron.New()
	if err := c.AddFunc("@every "+s.cfg.Interval.String(), func() { s.safeSweep(ctx) }); err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	c.Start()
	defer c.Stop()
	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("retention sweeper started")

	s.safeSweep(ctx)
	<-ctx.Done()
	return nil
}

func (s *Sweeper) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("retention sweep panicked")
		}
	}()
	if ctx.Err() != nil {
		return
	}
	s.Sweep(ctx)
}
