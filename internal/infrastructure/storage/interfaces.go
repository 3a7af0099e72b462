package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by repository implementations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyCleared is returned by the Clear* operations when the target
	// row exists but its clearance date is already set. The check and the
	// write happen in one statement so two committers cannot both win.
	ErrAlreadyCleared = errors.New("storage: clearance date already set")
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	TransactionReader
	DocumentReader

	// WithinReconcileTx runs fn against a transactional view of the store.
	// Every read and write fn performs through the supplied ReconcileOps is
	// part of one atomic unit: if fn returns an error nothing is persisted.
	WithinReconcileTx(ctx context.Context, fn func(ops ReconcileOps) error) error

	// ListLinks returns the reconciliation links recorded for a bank
	// transaction, oldest first.
	ListLinks(ctx context.Context, bankTransactionID string) ([]*ReconciliationLink, error)

	// GetStats returns aggregate reconciliation statistics.
	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}

// TransactionReader reads bank accounts and bank transactions.
type TransactionReader interface {
	GetBankAccount(ctx context.Context, id string) (*BankAccount, error)
	GetBankTransaction(ctx context.Context, id string) (*BankTransaction, error)

	// ListOpenTransactions returns submitted transactions with a positive
	// unallocated amount for one bank account, ordered by date then ID.
	ListOpenTransactions(ctx context.Context, bankAccountID string) ([]*BankTransaction, error)
}

// DocumentReader reads reconcilable documents. The Open* queries apply the
// per-kind open-document filters (submitted, clearance empty) at the SQL
// level; account matching beyond that is the engine's concern.
type DocumentReader interface {
	// OpenPaymentEntries returns submitted, uncleared payment entries for the
	// company where either side references the GL account.
	OpenPaymentEntries(ctx context.Context, glAccount, company string) ([]*PaymentEntry, error)

	// PaymentEntriesByReference returns submitted payment entries that settle
	// the given document and touch the GL account, cleared ones included.
	// Callers that only want the open pool filter on the clearance date; the
	// committer needs the cleared rows to tell a spent pool from a missing
	// one.
	PaymentEntriesByReference(ctx context.Context, glAccount string, refKind DocKind, refName string) ([]*PaymentEntry, error)

	// OpenJournalEntries returns submitted journal entries that have at least
	// one uncleared line on the GL account, lines loaded in document order.
	OpenJournalEntries(ctx context.Context, glAccount, company string) ([]*JournalEntry, error)

	// OpenSalesInvoices returns submitted, not-fully-settled sales invoices
	// for the company with their payment lines loaded in document order.
	OpenSalesInvoices(ctx context.Context, company string) ([]*SalesInvoice, error)

	// OpenPurchaseInvoices returns submitted, paid, uncleared purchase
	// invoices for the company.
	OpenPurchaseInvoices(ctx context.Context, company string) ([]*PurchaseInvoice, error)

	// OpenExpenseClaims returns submitted, paid, uncleared expense claims for
	// the company.
	OpenExpenseClaims(ctx context.Context, company string) ([]*ExpenseClaim, error)

	GetPaymentEntry(ctx context.Context, id string) (*PaymentEntry, error)
	GetJournalEntry(ctx context.Context, id string) (*JournalEntry, error)
	GetJournalEntryLine(ctx context.Context, id string) (*JournalEntryLine, error)
	GetSalesInvoice(ctx context.Context, id string) (*SalesInvoice, error)
	GetSalesInvoicePayment(ctx context.Context, id string) (*SalesInvoicePayment, error)
	GetPurchaseInvoice(ctx context.Context, id string) (*PurchaseInvoice, error)
	GetExpenseClaim(ctx context.Context, id string) (*ExpenseClaim, error)
}

// ReconcileOps is the transactional surface handed to a commit. The Clear*
// operations are conditional writes: they only succeed when the clearance
// date is still empty, so the precondition check and the mutation cannot be
// separated by a concurrent committer.
type ReconcileOps interface {
	DocumentReader

	GetBankTransaction(ctx context.Context, id string) (*BankTransaction, error)

	ClearPaymentEntry(ctx context.Context, id string, date time.Time) error
	ClearJournalEntryLine(ctx context.Context, id string, date time.Time) error
	ClearSalesInvoicePayment(ctx context.Context, id string, date time.Time) error
	ClearPurchaseInvoice(ctx context.Context, id string, date time.Time) error
	ClearExpenseClaim(ctx context.Context, id string, date time.Time) error

	AddLink(ctx context.Context, link *ReconciliationLink) error
	SetUnallocated(ctx context.Context, bankTransactionID string, amount float64) error
}
