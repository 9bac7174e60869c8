package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"certhub/internal/certificate/models"
	"certhub/internal/platform/database"
)

// BatchSize bounds the rows of one multi-row insert statement.
const BatchSize = 50

const certificateColumns = `id, name, gender, id_type, id_number, cert_number, created_at`

// Queryer is satisfied by *sqlx.Conn, *sqlx.Tx and *sqlx.DB.
type Queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// Store issues certificate SQL for one dialect. It holds no connection; callers
// pass the connection or transaction each call should run on.
type Store struct {
	dialect database.Dialect
}

func New(d database.Dialect) *Store {
	return &Store{dialect: d}
}

func (s *Store) Dialect() database.Dialect {
	return s.dialect
}

// FindByKey returns every row whose id number or certificate number equals key,
// in insertion order.
func (s *Store) FindByKey(ctx context.Context, q Queryer, key string) ([]models.Certificate, error) {
	query := s.dialect.Rebind(`SELECT ` + certificateColumns + `
		FROM certificates
		WHERE id_number = ? OR cert_number = ?
		ORDER BY id`)

	var rows []models.Certificate
	if err := sqlx.SelectContext(ctx, q, &rows, query, key, key); err != nil {
		return nil, fmt.Errorf("query certificates by key: %w", err)
	}
	return rows, nil
}

// InsertBatch inserts rows in a single statement, skipping any whose
// (id_number, cert_number) already exists. It returns how many rows were new.
func (s *Store) InsertBatch(ctx context.Context, q Queryer, rows []models.Certificate, createdAt time.Time) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(rows) > BatchSize {
		return 0, fmt.Errorf("insert batch of %d rows exceeds limit %d", len(rows), BatchSize)
	}

	createdAt = createdAt.UTC()
	args := make([]any, 0, len(rows)*6)
	for _, r := range rows {
		args = append(args, r.Name, r.Gender, r.IDType, r.IDNumber, r.CertNumber, createdAt)
	}

	res, err := q.ExecContext(ctx, s.insertSQL(len(rows)), args...)
	if err != nil {
		return 0, fmt.Errorf("insert certificates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert certificates rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) insertSQL(n int) string {
	var b strings.Builder
	if s.dialect.Name == database.MySQL.Name {
		b.WriteString("INSERT IGNORE INTO certificates")
	} else {
		b.WriteString("INSERT INTO certificates")
	}
	b.WriteString(" (name, gender, id_type, id_number, cert_number, created_at) VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?)")
	}
	if s.dialect.Name != database.MySQL.Name {
		b.WriteString(" ON CONFLICT (id_number, cert_number) DO NOTHING")
	}
	return s.dialect.Rebind(b.String())
}

// DeleteOlderThan removes rows created strictly before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, q Queryer, cutoff time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM certificates WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired certificates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired certificates rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context, q Queryer) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM certificates`); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return n, nil
}

// Stats summarizes the table. Rows created before expiredBefore are reported as
// expired.
func (s *Store) Stats(ctx context.Context, q Queryer, expiredBefore time.Time) (models.Stats, error) {
	var st models.Stats
	var err error

	if st.TotalRecords, err = s.Count(ctx, q); err != nil {
		return models.Stats{}, err
	}
	if err := sqlx.GetContext(ctx, q, &st.DistinctPeople,
		`SELECT COUNT(*) FROM (SELECT DISTINCT name, id_number FROM certificates) people`); err != nil {
		return models.Stats{}, fmt.Errorf("count distinct people: %w", err)
	}
	if err := sqlx.GetContext(ctx, q, &st.ExpiredRecords,
		s.dialect.Rebind(`SELECT COUNT(*) FROM certificates WHERE created_at < ?`), expiredBefore.UTC()); err != nil {
		return models.Stats{}, fmt.Errorf("count expired certificates: %w", err)
	}
	if st.OldestRecord, err = s.edgeCreatedAt(ctx, q, "ASC"); err != nil {
		return models.Stats{}, err
	}
	if st.NewestRecord, err = s.edgeCreatedAt(ctx, q, "DESC"); err != nil {
		return models.Stats{}, err
	}
	return st, nil
}

// edgeCreatedAt selects the column itself rather than MIN/MAX so every driver
// scans it as a timestamp.
func (s *Store) edgeCreatedAt(ctx context.Context, q Queryer, dir string) (*time.Time, error) {
	var ts time.Time
	err := sqlx.GetContext(ctx, q, &ts, `SELECT created_at FROM certificates ORDER BY created_at `+dir+` LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query created_at bound: %w", err)
	}
	ts = ts.UTC()
	return &ts, nil
}
