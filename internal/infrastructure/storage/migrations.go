package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "bank_accounts_and_transactions",
		Up:      migration001BankTables,
	},
	{
		Version: 2,
		Name:    "reconcilable_documents",
		Up:      migration002DocumentTables,
	},
	{
		Version: 3,
		Name:    "reconciliation_links",
		Up:      migration003ReconciliationLinks,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	// Ensure migrations table exists
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Run pending migrations
	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		// Run migration in transaction
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		// Execute migration
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		// Record migration
		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		// Commit
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001BankTables creates the bank account and bank transaction tables
func migration001BankTables(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bank_accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			company TEXT NOT NULL,
			gl_account TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bank_transactions (
			id TEXT PRIMARY KEY,
			bank_account_id TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			description TEXT DEFAULT '',
			debit REAL DEFAULT 0,
			credit REAL DEFAULT 0,
			currency TEXT NOT NULL,
			unallocated_amount REAL DEFAULT 0,
			submitted BOOLEAN DEFAULT 0,
			FOREIGN KEY (bank_account_id) REFERENCES bank_accounts(id)
		)`,

		// Open-transaction listing filters on these
		`CREATE INDEX IF NOT EXISTS idx_bank_transactions_account
		 ON bank_transactions(bank_account_id)`,

		`CREATE INDEX IF NOT EXISTS idx_bank_transactions_open
		 ON bank_transactions(unallocated_amount) WHERE unallocated_amount > 0`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002DocumentTables creates the five reconcilable document kinds.
// Clearance dates live on the document for payment entries, purchase invoices
// and expense claims, and on the line for journal entries and sales invoices.
func migration002DocumentTables(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payment_entries (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			posting_date TIMESTAMP NOT NULL,
			party TEXT DEFAULT '',
			party_type TEXT DEFAULT '',
			reference_no TEXT DEFAULT '',
			reference_date TIMESTAMP,
			remarks TEXT DEFAULT '',
			paid_from TEXT DEFAULT '',
			paid_from_currency TEXT DEFAULT '',
			paid_amount REAL DEFAULT 0,
			paid_to TEXT DEFAULT '',
			paid_to_currency TEXT DEFAULT '',
			received_amount REAL DEFAULT 0,
			reference_kind TEXT DEFAULT '',
			reference_name TEXT DEFAULT '',
			submitted BOOLEAN DEFAULT 0,
			clearance_date TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_payment_entries_accounts
		 ON payment_entries(paid_from, paid_to)`,

		`CREATE INDEX IF NOT EXISTS idx_payment_entries_reference
		 ON payment_entries(reference_kind, reference_name)`,

		`CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			posting_date TIMESTAMP NOT NULL,
			cheque_no TEXT DEFAULT '',
			cheque_date TIMESTAMP,
			pay_to_recd_from TEXT DEFAULT '',
			user_remark TEXT DEFAULT '',
			remark TEXT DEFAULT '',
			submitted BOOLEAN DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS journal_entry_lines (
			id TEXT PRIMARY KEY,
			journal_entry_id TEXT NOT NULL,
			line_no INTEGER NOT NULL,
			account TEXT NOT NULL,
			party TEXT DEFAULT '',
			against_account TEXT DEFAULT '',
			debit REAL DEFAULT 0,
			credit REAL DEFAULT 0,
			currency TEXT DEFAULT '',
			user_remark TEXT DEFAULT '',
			reference_name TEXT DEFAULT '',
			clearance_date TIMESTAMP,
			FOREIGN KEY (journal_entry_id) REFERENCES journal_entries(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_journal_entry_lines_parent
		 ON journal_entry_lines(journal_entry_id)`,

		`CREATE INDEX IF NOT EXISTS idx_journal_entry_lines_account
		 ON journal_entry_lines(account)`,

		`CREATE TABLE IF NOT EXISTS sales_invoices (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			posting_date TIMESTAMP NOT NULL,
			customer TEXT DEFAULT '',
			customer_name TEXT DEFAULT '',
			remarks TEXT DEFAULT '',
			po_no TEXT DEFAULT '',
			currency TEXT DEFAULT '',
			status TEXT DEFAULT 'unpaid',
			submitted BOOLEAN DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS sales_invoice_payments (
			id TEXT PRIMARY KEY,
			sales_invoice_id TEXT NOT NULL,
			line_no INTEGER NOT NULL,
			account TEXT NOT NULL,
			amount REAL DEFAULT 0,
			mode_of_payment TEXT DEFAULT '',
			clearance_date TIMESTAMP,
			FOREIGN KEY (sales_invoice_id) REFERENCES sales_invoices(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sales_invoice_payments_parent
		 ON sales_invoice_payments(sales_invoice_id)`,

		`CREATE TABLE IF NOT EXISTS purchase_invoices (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			posting_date TIMESTAMP NOT NULL,
			supplier_name TEXT DEFAULT '',
			bill_no TEXT DEFAULT '',
			currency TEXT DEFAULT '',
			paid_amount REAL DEFAULT 0,
			cash_bank_account TEXT DEFAULT '',
			is_paid BOOLEAN DEFAULT 0,
			submitted BOOLEAN DEFAULT 0,
			clearance_date TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS expense_claims (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			posting_date TIMESTAMP NOT NULL,
			employee_name TEXT DEFAULT '',
			bill_no TEXT DEFAULT '',
			total_sanctioned_amount REAL DEFAULT 0,
			currency TEXT DEFAULT '',
			payment_account TEXT DEFAULT '',
			is_paid BOOLEAN DEFAULT 0,
			submitted BOOLEAN DEFAULT 0,
			clearance_date TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create document tables: %w", err)
		}
	}

	return nil
}

// migration003ReconciliationLinks creates the reconciliation_links table.
// The unique index enforces that a document (or document line) is linked by
// at most one active reconciliation.
func migration003ReconciliationLinks(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reconciliation_links (
			id TEXT PRIMARY KEY,
			bank_transaction_id TEXT NOT NULL,
			document_kind TEXT NOT NULL,
			document_id TEXT NOT NULL,
			allocated_amount REAL NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (bank_transaction_id) REFERENCES bank_transactions(id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reconciliation_links_document
		 ON reconciliation_links(document_kind, document_id)`,

		`CREATE INDEX IF NOT EXISTS idx_reconciliation_links_transaction
		 ON reconciliation_links(bank_transaction_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create reconciliation_links: %w", err)
		}
	}

	return nil
}
