package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"certhub/internal/certificate/models"
	"certhub/internal/platform/database"
)

type StoreSuite struct {
	suite.Suite
	db    *sqlx.DB
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	db, err := sqlx.Open("sqlite3", filepath.Join(s.T().TempDir(), "store.db"))
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.db = db
	s.ctx = context.Background()
	s.store = New(database.SQLite)
	s.Require().NoError(EnsureSchema(s.ctx, db, database.SQLite))
}

func (s *StoreSuite) TearDownTest() {
	_ = s.db.Close()
}

func cert(name, idNumber, certNumber string) models.Certificate {
	return models.Certificate{Name: name, Gender: "F", IDType: "ID", IDNumber: idNumber, CertNumber: certNumber}
}

func (s *StoreSuite) TestEnsureSchemaIsIdempotent() {
	s.Require().NoError(EnsureSchema(s.ctx, s.db, database.SQLite))
	s.Require().NoError(EnsureSchema(s.ctx, s.db, database.SQLite))
}

func (s *StoreSuite) TestInsertBatchSkipsConflicts() {
	now := time.Now()

	n, err := s.store.InsertBatch(s.ctx, s.db, []models.Certificate{
		cert("A", "111", "C1"),
		cert("A", "111", "C2"),
	}, now)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = s.store.InsertBatch(s.ctx, s.db, []models.Certificate{
		cert("A", "111", "C2"),
		cert("A", "111", "C3"),
		cert("A", "111", "C3"),
	}, now)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	total, err := s.store.Count(s.ctx, s.db)
	s.Require().NoError(err)
	s.Equal(int64(3), total)
}

func (s *StoreSuite) TestInsertBatchRejectsOversizedBatch() {
	rows := make([]models.Certificate, BatchSize+1)
	_, err := s.store.InsertBatch(s.ctx, s.db, rows, time.Now())
	s.Error(err)
}

func (s *StoreSuite) TestFindByKeyMatchesEitherColumnInInsertOrder() {
	_, err := s.store.InsertBatch(s.ctx, s.db, []models.Certificate{
		cert("A", "111", "C1"),
		cert("B", "222", "111"),
		cert("C", "333", "C3"),
		cert("A", "111", "C4"),
	}, time.Now())
	s.Require().NoError(err)

	rows, err := s.store.FindByKey(s.ctx, s.db, "111")
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("C1", rows[0].CertNumber)
	s.Equal("B", rows[1].Name)
	s.Equal("C4", rows[2].CertNumber)

	rows, err = s.store.FindByKey(s.ctx, s.db, "nope")
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *StoreSuite) TestDeleteOlderThan() {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.store.InsertBatch(s.ctx, s.db, []models.Certificate{cert("Old", "1", "O1")}, now.AddDate(0, -4, 0))
	s.Require().NoError(err)
	_, err = s.store.InsertBatch(s.ctx, s.db, []models.Certificate{cert("New", "2", "N1")}, now.AddDate(0, 0, -1))
	s.Require().NoError(err)

	n, err := s.store.DeleteOlderThan(s.ctx, s.db, now.AddDate(0, -3, 0))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	rows, err := s.store.FindByKey(s.ctx, s.db, "2")
	s.Require().NoError(err)
	s.Len(rows, 1)
	rows, err = s.store.FindByKey(s.ctx, s.db, "1")
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *StoreSuite) TestStats() {
	empty, err := s.store.Stats(s.ctx, s.db, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(0), empty.TotalRecords)
	s.Nil(empty.OldestRecord)
	s.Nil(empty.NewestRecord)

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(0, -4, 0)
	_, err = s.store.InsertBatch(s.ctx, s.db, []models.Certificate{cert("A", "1", "X"), cert("A", "1", "Y")}, old)
	s.Require().NoError(err)
	_, err = s.store.InsertBatch(s.ctx, s.db, []models.Certificate{cert("B", "2", "Z")}, now)
	s.Require().NoError(err)

	st, err := s.store.Stats(s.ctx, s.db, now.AddDate(0, -3, 0))
	s.Require().NoError(err)
	s.Equal(int64(3), st.TotalRecords)
	s.Equal(int64(2), st.DistinctPeople)
	s.Equal(int64(2), st.ExpiredRecords)
	s.Require().NotNil(st.OldestRecord)
	s.True(st.OldestRecord.Equal(old))
	s.Require().NotNil(st.NewestRecord)
	s.True(st.NewestRecord.Equal(now))
}

func TestInsertSQL(t *testing.T) {
	pg := New(database.Postgres).insertSQL(2)
	assert.Equal(t, "INSERT INTO certificates (name, gender, id_type, id_number, cert_number, created_at) VALUES "+
		"($1, $2, $3, $4, $5, $6), ($7, $8, $9, $10, $11, $12) ON CONFLICT (id_number, cert_number) DO NOTHING", pg)

	my := New(database.MySQL).insertSQL(1)
	assert.True(t, strings.HasPrefix(my, "INSERT IGNORE INTO certificates"))
	assert.NotContains(t, my, "ON CONFLICT")

	lite := New(database.SQLite).insertSQL(BatchSize)
	assert.Equal(t, BatchSize*6, strings.Count(lite, "?"))
}

func TestSchemaStatements(t *testing.T) {
	for _, d := range []database.Dialect{database.Postgres, database.MySQL, database.SQLite} {
		t.Run(d.Name, func(t *testing.T) {
			stmts, err := schemaStatements(d)
			require.NoError(t, err)
			require.NotEmpty(t, stmts)
			assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS certificates")
			for i, stmt := range stmts {
				assert.NotContains(t, stmt, ";", fmt.Sprintf("statement %d", i))
			}
		})
	}

	_, err := schemaStatements(database.Dialect{Name: "oracle"})
	assert.ErrorIs(t, err, errNoSchemaFiles)
}
