package recon

import "errors"

// Sentinel errors returned by the engine. HTTP handlers dispatch on these
// with errors.Is.
var (
	// ErrInvalidQueryContext is returned when the bank account behind a
	// transaction is missing its company or general-ledger account binding.
	ErrInvalidQueryContext = errors.New("recon: bank account context is incomplete")

	// ErrUnsupportedDocumentKind is returned for a document kind outside the
	// five supported kinds.
	ErrUnsupportedDocumentKind = errors.New("recon: unsupported document kind")

	// ErrNoMatchingLine is returned when a document exists but none of its
	// lines touch the ledger account being reconciled.
	ErrNoMatchingLine = errors.New("recon: no matching line for ledger account")

	// ErrAlreadyReconciled is returned when a commit loses the race: the
	// target document (or line) was cleared by someone else, or the bank
	// transaction has no unallocated amount left.
	ErrAlreadyReconciled = errors.New("recon: already reconciled")

	// ErrUnknownDocument is returned when a commit references a document that
	// no longer exists.
	ErrUnknownDocument = errors.New("recon: unknown document")
)
