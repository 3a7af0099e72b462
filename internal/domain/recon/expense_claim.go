package recon

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// expenseClaimHandler matches employee reimbursements paid out of the bank
// account. Claims paid through another account fall back to the payment
// entries that reference them.
type expenseClaimHandler struct{}

func (expenseClaimHandler) discover(ctx context.Context, docs storage.DocumentReader, qc queryContext) ([]*MatchCandidate, error) {
	claims, err := docs.OpenExpenseClaims(ctx, qc.Account.Company)
	if err != nil {
		return nil, err
	}

	var candidates []*MatchCandidate
	for _, e := range claims {
		if e.PaymentAccount == qc.Account.GLAccount {
			candidates = append(candidates, normalizeExpenseClaim(qc, e))
			continue
		}
		pooled, err := paymentEntryPool(ctx, docs, qc, expenseClaimParent(qc, e), storage.KindExpenseClaim, e.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, pooled...)
	}
	return candidates, nil
}

func (expenseClaimHandler) commit(ctx context.Context, ops storage.ReconcileOps, qc queryContext, documentID string) (float64, error) {
	e, err := ops.GetExpenseClaim(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("expense claim %s: %w", documentID, ErrUnknownDocument)
	}
	if err != nil {
		return 0, err
	}

	if e.PaymentAccount == qc.Account.GLAccount {
		if err := ops.ClearExpenseClaim(ctx, e.ID, qc.Tx.Date); err != nil {
			return 0, translateClearErr(err, e.ID)
		}
		return e.SanctionedTotal, nil
	}

	pooled, cleared, matched, err := clearPaymentEntryPool(ctx, ops, qc, storage.KindExpenseClaim, e.ID)
	if err != nil {
		return 0, err
	}
	if matched == 0 {
		return 0, fmt.Errorf("expense claim %s: %w", e.ID, ErrNoMatchingLine)
	}
	if cleared == 0 {
		return 0, fmt.Errorf("expense claim %s: %w", e.ID, ErrAlreadyReconciled)
	}
	return pooled, nil
}

func expenseClaimParent(qc queryContext, e *storage.ExpenseClaim) *MatchCandidate {
	return &MatchCandidate{
		Kind:         storage.KindExpenseClaim,
		DocumentID:   e.ID,
		DocumentName: e.ID,
		PostingDate:  e.PostingDate,
		Party:        e.EmployeeName,
		Reference:    e.BillNo,
		Currency:     e.Currency,
		FutureDated:  qc.futureDated(e.PostingDate),
	}
}

// normalizeExpenseClaim treats the sanctioned total as money out of the
// account.
func normalizeExpenseClaim(qc queryContext, e *storage.ExpenseClaim) *MatchCandidate {
	c := expenseClaimParent(qc, e)
	c.Amount = qc.signedAmount(0, e.SanctionedTotal)
	return c
}
