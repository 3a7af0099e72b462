package recon

import (
	"context"
	"errors"
	"math"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// Invoices and claims that were not paid straight from the bank account can
// still be matched through the payment entries that settle them. A pool of
// fewer than two payments surfaces as plain payment-entry candidates; two or
// more fold into a composite under the owning document.

func paymentEntryPool(ctx context.Context, docs storage.DocumentReader, qc queryContext, parent *MatchCandidate, refKind storage.DocKind, refName string) ([]*MatchCandidate, error) {
	pool, err := docs.PaymentEntriesByReference(ctx, qc.Account.GLAccount, refKind, refName)
	if err != nil {
		return nil, err
	}

	var subs []*MatchCandidate
	for _, p := range pool {
		if p.ClearanceDate != nil {
			continue
		}
		c, err := normalizePaymentEntry(qc, p)
		if errors.Is(err, ErrNoMatchingLine) {
			continue
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, c)
	}

	switch len(subs) {
	case 0:
		return nil, nil
	case 1:
		return subs, nil
	}
	return []*MatchCandidate{compositeOf(parent, subs)}, nil
}

// clearPaymentEntryPool clears every open pooled payment entry and returns
// the summed allocation. matched counts the entries that settle the document
// through the account at all, cleared the ones this call cleared; a matched
// pool with nothing left to clear is a lost race, not a missing pool.
func clearPaymentEntryPool(ctx context.Context, ops storage.ReconcileOps, qc queryContext, refKind storage.DocKind, refName string) (total float64, cleared, matched int, err error) {
	pool, err := ops.PaymentEntriesByReference(ctx, qc.Account.GLAccount, refKind, refName)
	if err != nil {
		return 0, 0, 0, err
	}

	for _, p := range pool {
		c, err := normalizePaymentEntry(qc, p)
		if errors.Is(err, ErrNoMatchingLine) {
			continue
		}
		if err != nil {
			return 0, 0, 0, err
		}
		matched++
		if p.ClearanceDate != nil {
			continue
		}
		if err := ops.ClearPaymentEntry(ctx, p.ID, qc.Tx.Date); err != nil {
			return 0, 0, 0, translateClearErr(err, p.ID)
		}
		cleared++
		total += c.Amount
	}
	return math.Abs(total), cleared, matched, nil
}
