package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"aval/internal/ledger"
)

// PostgresStore persists the transaction sequence in PostgreSQL. The full
// batch document is stored as JSONB next to the denormalized summary columns
// so replay and reporting never lose fidelity.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed transaction store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts an accepted batch at the end of the sequence.
func (s *PostgresStore) Append(ctx context.Context, batch *ledger.TransactionBatch) error {
	if batch == nil {
		return fmt.Errorf("batch is required")
	}
	doc, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", batch.TransactionID, err)
	}
	query := `
		INSERT INTO transactions (transaction_id, sender, receiver, amount, currency, batch)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		batch.TransactionID,
		batch.Sender,
		batch.Receiver,
		batch.Amount,
		batch.Currency,
		doc,
	); err != nil {
		return fmt.Errorf("append batch %s: %w", batch.TransactionID, err)
	}
	return nil
}

// Exists reports whether a transaction id is already in the sequence.
func (s *PostgresStore) Exists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id = $1)`
	if err := s.db.QueryRowContext(ctx, query, transactionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction %s: %w", transactionID, err)
	}
	return exists, nil
}

// List returns the accepted batches in acceptance order.
func (s *PostgresStore) List(ctx context.Context) ([]*ledger.TransactionBatch, error) {
	query := `SELECT batch FROM transactions ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.TransactionBatch
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		var batch ledger.TransactionBatch
		if err := json.Unmarshal(doc, &batch); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		out = append(out, &batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
