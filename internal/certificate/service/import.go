package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"certhub/internal/certificate/models"
	"certhub/internal/certificate/store"
	dErrors "certhub/pkg/domain-errors"
	"certhub/pkg/platform/tx"
)

// Import validates rows and then inserts them in one transaction, in batches of
// store.BatchSize. Rows whose (idNumber, certNumber) already exists are skipped.
// Either every new row is committed or none is.
//
// Validation problems come back as a CodeValidation error wrapping a
// *models.ValidationError, before any connection is taken.
func (s *Service) Import(ctx context.Context, rows []models.RawRow) (models.ImportSummary, error) {
	if verr := models.ValidateRows(rows); verr != nil {
		s.metrics.ObserveImport("invalid")
		return models.ImportSummary{}, dErrors.Wrap(verr, dErrors.CodeValidation, "")
	}

	start := time.Now()
	certs := make([]models.Certificate, len(rows))
	for i, row := range rows {
		certs[i] = row.Certificate()
	}

	conn, err := s.conns.Acquire(ctx)
	if err != nil {
		s.metrics.ObserveImport(resultFor(err))
		return models.ImportSummary{}, err
	}
	defer conn.Close()

	createdAt := s.now().UTC()
	var inserted int64
	err = tx.RunInTx(ctx, conn, s.txTimeout, func(ctx context.Context, sqlTx *sqlx.Tx) error {
		inserted = 0
		for lo := 0; lo < len(certs); lo += store.BatchSize {
			hi := min(lo+store.BatchSize, len(certs))
			n, err := s.store.InsertBatch(ctx, sqlTx, certs[lo:hi], createdAt)
			if err != nil {
				return fmt.Errorf("rows %d-%d: %w", lo+1, hi, err)
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		err = s.storageError(err, "import failed, no rows were saved")
		s.metrics.ObserveImport(importResultFor(err))
		s.logger.Error().Err(err).Int("rows", len(rows)).Msg("import rolled back")
		return models.ImportSummary{}, err
	}

	summary := models.ImportSummary{
		Processed: len(rows),
		Inserted:  int(inserted),
		Skipped:   len(rows) - int(inserted),
	}
	if summary.Inserted > 0 {
		s.cache.Invalidate(ctx, lookupKeys(certs)...)
	}
	s.metrics.ObserveImportCommit(summary.Inserted, summary.Skipped, start)
	s.logger.Info().
		Int("processed", summary.Processed).
		Int("inserted", summary.Inserted).
		Int("skipped", summary.Skipped).
		Msg("import committed")
	return summary, nil
}

// lookupKeys lists the distinct id and certificate numbers a lookup could use to
// reach certs.
func lookupKeys(certs []models.Certificate) []string {
	seen := make(map[string]struct{}, 2*len(certs))
	keys := make([]string, 0, 2*len(certs))
	for _, c := range certs {
		for _, k := range [2]string{c.IDNumber, c.CertNumber} {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

func importResultFor(err error) string {
	if r := resultFor(err); r != "error" {
		return r
	}
	return "failed"
}
