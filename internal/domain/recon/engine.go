package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// Engine exposes the three reconciliation operations over a repository:
// FindCandidates, Reconcile and ListOpenTransactions.
type Engine struct {
	repo   storage.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an engine over the given repository
func NewEngine(repo storage.Repository, logger *slog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// resolveContext loads a transaction and its account binding. The binding
// supplies the company and general-ledger account every discovery query needs.
func (e *Engine) resolveContext(ctx context.Context, transactionID string) (queryContext, error) {
	var qc queryContext

	tx, err := e.repo.GetBankTransaction(ctx, transactionID)
	if err != nil {
		return qc, fmt.Errorf("bank transaction %s: %w", transactionID, err)
	}

	acct, err := e.repo.GetBankAccount(ctx, tx.BankAccountID)
	if errors.Is(err, storage.ErrNotFound) {
		return qc, fmt.Errorf("bank account %s: %w", tx.BankAccountID, ErrInvalidQueryContext)
	}
	if err != nil {
		return qc, err
	}
	if acct.Company == "" || acct.GLAccount == "" {
		return qc, fmt.Errorf("bank account %s: %w", acct.ID, ErrInvalidQueryContext)
	}

	return queryContext{Account: acct, Tx: tx}, nil
}

// FindCandidates discovers, normalizes, aggregates and ranks the reconcilable
// documents for one bank transaction. A fully allocated transaction yields an
// empty list. The result is deterministic for an unchanged ledger.
func (e *Engine) FindCandidates(ctx context.Context, transactionID string, reverse bool) ([]*MatchCandidate, error) {
	qc, err := e.resolveContext(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if qc.Tx.Unallocated <= 0 {
		return []*MatchCandidate{}, nil
	}

	perKind := make(map[storage.DocKind][]*MatchCandidate, len(storage.AllKinds))
	for _, kind := range storage.AllKinds {
		found, err := kindHandlers[kind].discover(ctx, e.repo, qc)
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", kind, err)
		}
		perKind[kind] = found
	}

	// A payment entry folded into an invoice or claim pool belongs to the
	// owning document; drop it from standalone discovery so it surfaces once.
	pooled := make(map[string]bool)
	for kind, found := range perKind {
		if kind == storage.KindPaymentEntry {
			continue
		}
		for _, c := range found {
			if c.Kind == storage.KindPaymentEntry {
				pooled[c.DocumentID] = true
			}
			for _, sub := range c.SubCandidates {
				if sub.Kind == storage.KindPaymentEntry {
					pooled[sub.DocumentID] = true
				}
			}
		}
	}

	candidates := []*MatchCandidate{}
	for _, kind := range storage.AllKinds {
		for _, c := range perKind[kind] {
			if kind == storage.KindPaymentEntry && pooled[c.DocumentID] {
				continue
			}
			candidates = append(candidates, c)
		}
	}

	rankCandidates(candidates, reverse)

	e.logger.Debug("candidates discovered",
		"transaction", transactionID,
		"count", len(candidates),
		"reverse", reverse)
	return candidates, nil
}

// Reconcile commits one match: it clears the chosen document (or line),
// records a durable link, and decrements the transaction's unallocated amount,
// clamped at zero. The whole commit is one atomic unit; a lost race surfaces
// as ErrAlreadyReconciled and leaves nothing behind.
func (e *Engine) Reconcile(ctx context.Context, transactionID string, kind storage.DocKind, documentID string) (*storage.ReconciliationLink, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%q: %w", kind, ErrUnsupportedDocumentKind)
	}

	qc, err := e.resolveContext(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	handler := kindHandlers[kind]

	var link *storage.ReconciliationLink
	err = e.repo.WithinReconcileTx(ctx, func(ops storage.ReconcileOps) error {
		// Re-read inside the transaction so the unallocated check and the
		// clearance writes see one consistent state.
		tx, err := ops.GetBankTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if tx.Unallocated <= 0 {
			return fmt.Errorf("bank transaction %s is fully allocated: %w", transactionID, ErrAlreadyReconciled)
		}
		qc.Tx = tx

		allocated, err := handler.commit(ctx, ops, qc, documentID)
		if err != nil {
			return err
		}

		remaining := tx.Unallocated - allocated
		if remaining < 0 {
			remaining = 0
		}

		link = &storage.ReconciliationLink{
			ID:                uuid.NewString(),
			BankTransactionID: transactionID,
			DocumentKind:      kind,
			DocumentID:        documentID,
			AllocatedAmount:   allocated,
			CreatedAt:         e.now().UTC(),
		}
		if err := ops.AddLink(ctx, link); err != nil {
			return err
		}
		return ops.SetUnallocated(ctx, transactionID, remaining)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("transaction reconciled",
		"transaction", transactionID,
		"kind", kind,
		"document", documentID,
		"allocated", link.AllocatedAmount)
	return link, nil
}

// ListOpenTransactions returns the submitted transactions of one bank account
// that still carry an unallocated amount, oldest first.
func (e *Engine) ListOpenTransactions(ctx context.Context, bankAccountID string) ([]*storage.BankTransaction, error) {
	acct, err := e.repo.GetBankAccount(ctx, bankAccountID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("bank account %s: %w", bankAccountID, ErrInvalidQueryContext)
	}
	if err != nil {
		return nil, err
	}
	return e.repo.ListOpenTransactions(ctx, acct.ID)
}
