//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certhub/internal/certificate/models"
	"certhub/internal/certificate/store"
	"certhub/internal/platform/database"
	"certhub/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.New(database.Postgres)
	s.Require().NoError(store.EnsureSchema(context.Background(), s.postgres.DB, database.Postgres))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "certificates"))
}

func (s *PostgresStoreSuite) TestSchemaReappliesCleanly() {
	s.Require().NoError(store.EnsureSchema(context.Background(), s.postgres.DB, database.Postgres))
}

func (s *PostgresStoreSuite) TestInsertSkipsExistingPairs() {
	ctx := context.Background()
	rows := []models.Certificate{
		{Name: "A", Gender: "F", IDType: "ID", IDNumber: "111", CertNumber: "C1"},
		{Name: "A", Gender: "F", IDType: "ID", IDNumber: "111", CertNumber: "C2"},
	}

	n, err := s.store.InsertBatch(ctx, s.postgres.DB, rows, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = s.store.InsertBatch(ctx, s.postgres.DB, rows, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(0), n)

	found, err := s.store.FindByKey(ctx, s.postgres.DB, "111")
	s.Require().NoError(err)
	s.Len(found, 2)
}

// TestConcurrentOverlappingImportsCommute verifies that racing inserts of the same
// pairs leave exactly one row per pair.
func (s *PostgresStoreSuite) TestConcurrentOverlappingImportsCommute() {
	ctx := context.Background()
	rows := []models.Certificate{
		{Name: "A", Gender: "F", IDType: "ID", IDNumber: "1", CertNumber: "X"},
		{Name: "B", Gender: "M", IDType: "ID", IDNumber: "2", CertNumber: "Y"},
	}

	const goroutines = 20
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.InsertBatch(ctx, s.postgres.DB, rows, time.Now())
			s.NoError(err)
		}()
	}
	wg.Wait()

	total, err := s.store.Count(ctx, s.postgres.DB)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
}

func (s *PostgresStoreSuite) TestDeleteOlderThan() {
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := s.store.InsertBatch(ctx, s.postgres.DB, []models.Certificate{
		{Name: "Old", Gender: "F", IDType: "ID", IDNumber: "9", CertNumber: "O"},
	}, now.AddDate(0, -4, 0))
	s.Require().NoError(err)

	n, err := s.store.DeleteOlderThan(ctx, s.postgres.DB, now.AddDate(0, -3, 0))
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}
