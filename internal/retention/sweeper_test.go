package retention

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certhub/internal/platform/config"
	"certhub/pkg/platform/sentinel"
)

var sweepNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakePurger struct {
	mu      sync.Mutex
	n       int64
	err     error
	cutoffs []time.Time
	block   chan struct{}
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func retentionConfig() config.Retention {
	return config.Retention{
		AutoCleanup: true,
		Interval:    24 * time.Hour,
		RecordAge:   config.RecordAge{Months: 3},
		FileMaxAge:  7 * 24 * time.Hour,
	}
}

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	mtime := sweepNow.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func newSweeper(p RecordPurger, dir string) *Sweeper {
	return New(p, dir, retentionConfig(), WithClock(func() time.Time { return sweepNow }))
}

func TestSweepDeletesExpiredRowsAndStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := writeAged(t, dir, "1700000000000-old.xlsx", 8*24*time.Hour)
	fresh := writeAged(t, dir, "1718000000000-new.csv", 6*24*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o750))

	purger := &fakePurger{n: 42}
	report := newSweeper(purger, dir).Sweep(context.Background())

	assert.Equal(t, int64(42), report.RowsDeleted)
	assert.Equal(t, 1, report.FilesDeleted)
	assert.False(t, report.DBSkipped)
	assert.Empty(t, report.Errors)

	require.Len(t, purger.cutoffs, 1)
	assert.Equal(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), purger.cutoffs[0])

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestSweepSkipsDatabaseWhenUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "old.csv", 30*24*time.Hour)

	purger := &fakePurger{err: fmt.Errorf("acquire: %w", sentinel.ErrUnavailable)}
	report := newSweeper(purger, dir).Sweep(context.Background())

	assert.True(t, report.DBSkipped)
	assert.Zero(t, report.RowsDeleted)
	assert.Equal(t, 1, report.FilesDeleted, "file cleanup runs without the database")
	assert.Empty(t, report.Errors)
}

func TestSweepCollectsStorageErrors(t *testing.T) {
	purger := &fakePurger{err: errors.New("relation does not exist")}
	report := newSweeper(purger, t.TempDir()).Sweep(context.Background())

	assert.False(t, report.DBSkipped)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "purge records: relation does not exist")
}

func TestSweepMissingUploadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	report := newSweeper(&fakePurger{}, dir).Sweep(context.Background())

	assert.Zero(t, report.FilesDeleted)
	assert.Empty(t, report.Errors)
}

func TestSweepsDoNotOverlap(t *testing.T) {
	purger := &fakePurger{n: 1, block: make(chan struct{})}
	s := newSweeper(purger, t.TempDir())

	var wg sync.WaitGroup
	reports := make(chan Report, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports <- s.Sweep(context.Background())
		}()
	}

	// only one sweep can be inside the purger; release it twice in turn
	purger.block <- struct{}{}
	purger.block <- struct{}{}
	wg.Wait()
	close(reports)

	var total int64
	for r := range reports {
		total += r.RowsDeleted
	}
	assert.Equal(t, int64(2), total)
	assert.Len(t, purger.cutoffs, 2)
}

func TestRunDisabled(t *testing.T) {
	cfg := retentionConfig()
	cfg.AutoCleanup = false
	purger := &fakePurger{}
	s := New(purger, t.TempDir(), cfg)

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, purger.cutoffs)
}

func TestRunSweepsAtStartup(t *testing.T) {
	purger := &fakePurger{}
	s := newSweeper(purger, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		purger.mu.Lock()
		defer purger.mu.Unlock()
		return len(purger.cutoffs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
