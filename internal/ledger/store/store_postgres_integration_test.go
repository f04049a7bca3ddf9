//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/suite"

	"aval/internal/ledger/store"
	"aval/migrations"
	"aval/pkg/testutil"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	db, err := sql.Open("pgx", os.Getenv("DATABASE_URL"))
	s.Require().NoError(err)
	s.Require().NoError(db.Ping())
	s.db = db

	// Apply migrations in lexical order; CREATE TABLE IF NOT EXISTS makes
	// re-runs against the same database harmless.
	entries, err := fs.ReadDir(migrations.FS, ".")
	s.Require().NoError(err)
	for _, entry := range entries {
		script, err := fs.ReadFile(migrations.FS, entry.Name())
		s.Require().NoError(err)
		_, err = db.Exec(string(script))
		s.Require().NoError(err)
	}

	s.store = store.NewPostgres(db)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.Exec(`TRUNCATE TABLE transactions`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAppendListRoundTrip() {
	ctx := context.Background()
	fix := testutil.NewFixture(s.T())

	first := fix.PaymentBatch(s.T(), "txn-pg-1", "issuer:merchant", 25.00, "EUR")
	second := fix.NettingBatch(s.T(), "txn-pg-2", "issuer:merchant", 40.00, "EUR", "RUN7")

	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	listed, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)

	s.Equal("txn-pg-1", listed[0].TransactionID)
	s.Len(listed[0].Mandates, 3)
	s.Equal("txn-pg-2", listed[1].TransactionID)
	s.Len(listed[1].Mandates, 4)

	// Proofs must survive the JSONB round trip for replay verification.
	for _, m := range listed[0].Mandates {
		s.Require().NotNil(m.Proof)
		s.NotEmpty(m.Proof.ProofValue)
	}
}

func (s *PostgresStoreSuite) TestListPreservesAcceptanceOrder() {
	ctx := context.Background()
	fix := testutil.NewFixture(s.T())

	for i := 0; i < 5; i++ {
		batch := fix.PaymentBatch(s.T(), fmt.Sprintf("txn-order-%d", i), "issuer:merchant", 10.00, "EUR")
		s.Require().NoError(s.store.Append(ctx, batch))
	}

	listed, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 5)
	for i, batch := range listed {
		s.Equal(fmt.Sprintf("txn-order-%d", i), batch.TransactionID)
	}
}

func (s *PostgresStoreSuite) TestRejectsNilBatch() {
	err := s.store.Append(context.Background(), nil)
	s.Error(err)
}

func (s *PostgresStoreSuite) TestDuplicateTransactionIDFails() {
	ctx := context.Background()
	fix := testutil.NewFixture(s.T())

	batch := fix.PaymentBatch(s.T(), "txn-dup", "issuer:merchant", 10.00, "EUR")
	s.Require().NoError(s.store.Append(ctx, batch))
	s.Error(s.store.Append(ctx, batch))
}

func (s *PostgresStoreSuite) TestExists() {
	ctx := context.Background()
	fix := testutil.NewFixture(s.T())

	batch := fix.PaymentBatch(s.T(), "txn-exists", "issuer:merchant", 10.00, "EUR")
	s.Require().NoError(s.store.Append(ctx, batch))

	exists, err := s.store.Exists(ctx, "txn-exists")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.Exists(ctx, "txn-absent")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *PostgresStoreSuite) TestListEmpty() {
	listed, err := s.store.List(context.Background())
	s.Require().NoError(err)
	s.Empty(listed)
}
