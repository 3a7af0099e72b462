package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for the reconciliation ledger.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
	querier
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db, querier: querier{db: db}}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// reconcileTx is the transactional view handed to a commit callback.
type reconcileTx struct {
	querier
}

var _ ReconcileOps = (*reconcileTx)(nil)

// WithinReconcileTx runs fn inside one SQL transaction. The clearance
// re-check, the clearance write, the link insert and the unallocated update
// all commit together or not at all.
func (s *Storage) WithinReconcileTx(ctx context.Context, fn func(ops ReconcileOps) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}

	ops := &reconcileTx{querier: querier{db: tx}}
	if err := fn(ops); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconcile transaction: %w", err)
	}
	return nil
}

// ListLinks returns the reconciliation links for a bank transaction,
// oldest first.
func (s *Storage) ListLinks(ctx context.Context, bankTransactionID string) ([]*ReconciliationLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_transaction_id, document_kind, document_id, allocated_amount, created_at
		FROM reconciliation_links
		WHERE bank_transaction_id = ?
		ORDER BY created_at ASC, id ASC
	`, bankTransactionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var links []*ReconciliationLink
	for rows.Next() {
		link := &ReconciliationLink{}
		var kind string
		err := rows.Scan(
			&link.ID,
			&link.BankTransactionID,
			&kind,
			&link.DocumentID,
			&link.AllocatedAmount,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		link.DocumentKind = DocKind(kind)
		links = append(links, link)
	}
	return links, rows.Err()
}

// GetStats returns aggregate reconciliation statistics.
func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		LinksByKind:     make(map[DocKind]int),
		AllocatedByKind: make(map[DocKind]float64),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN unallocated_amount > 0 THEN 1 END) AS open,
			COUNT(CASE WHEN unallocated_amount <= 0 THEN 1 END) AS reconciled,
			COALESCE(SUM(CASE WHEN unallocated_amount > 0 THEN unallocated_amount END), 0) AS total_unallocated
		FROM bank_transactions
		WHERE submitted = 1
	`).Scan(&stats.OpenTransactions, &stats.ReconciledTransactions, &stats.TotalUnallocated)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_kind, COUNT(*), COALESCE(SUM(allocated_amount), 0)
		FROM reconciliation_links
		GROUP BY document_kind
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind string
		var count int
		var allocated float64
		if err := rows.Scan(&kind, &count, &allocated); err != nil {
			return nil, err
		}
		stats.LinksByKind[DocKind(kind)] = count
		stats.AllocatedByKind[DocKind(kind)] = allocated
		stats.TotalLinks += count
	}
	return stats, rows.Err()
}
