// Package recon implements the bank reconciliation matching engine: it
// discovers reconcilable documents for a bank transaction, normalizes them
// into uniform candidates, aggregates multi-line documents into composites,
// ranks the proposals, and commits a chosen match atomically.
package recon

import (
	"time"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// MatchCandidate is the uniform proposal shape every document kind normalizes
// into. A composite candidate carries one sub-candidate per source line, in
// source line order, and its Amount is the exact sum of the sub-amounts.
type MatchCandidate struct {
	Kind          storage.DocKind `json:"kind"`
	DocumentID    string          `json:"document_id"`
	DocumentName  string          `json:"document_name"`
	PostingDate   time.Time       `json:"posting_date"`
	ReferenceDate *time.Time      `json:"reference_date,omitempty"`
	Party         string          `json:"party,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Amount        float64         `json:"amount"`

	// FutureDated flags a posting date strictly after the transaction date.
	// Presentation only; future-dated candidates are never filtered.
	FutureDated bool `json:"future_dated"`

	Composite     bool              `json:"composite"`
	SubCandidates []*MatchCandidate `json:"sub_candidates,omitempty"`
}

// queryContext carries the resolved matching context for one bank
// transaction: the transaction itself and the account binding that supplies
// the company and general-ledger account.
type queryContext struct {
	Account *storage.BankAccount
	Tx      *storage.BankTransaction
}

// signedAmount applies the directional sign convention: for a credit (money
// in) transaction a line is worth debit minus credit, for a debit transaction
// the inverse. Lines flowing with the transaction come out positive.
func (qc queryContext) signedAmount(debit, credit float64) float64 {
	if qc.Tx.IsCredit() {
		return debit - credit
	}
	return credit - debit
}

// futureDated reports whether a posting date falls strictly after the
// transaction date.
func (qc queryContext) futureDated(postingDate time.Time) bool {
	return postingDate.After(qc.Tx.Date)
}

// firstNonEmpty returns the first non-empty value of a fallback chain.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// compositeOf folds sub-candidates into their parent: the parent amount
// becomes the exact sum of the sub-amounts and the sub-candidates are kept in
// the order given.
func compositeOf(parent *MatchCandidate, subs []*MatchCandidate) *MatchCandidate {
	total := 0.0
	for _, sub := range subs {
		total += sub.Amount
	}
	parent.Amount = total
	parent.Composite = true
	parent.SubCandidates = subs
	return parent
}
