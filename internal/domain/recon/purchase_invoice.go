package recon

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// purchaseInvoiceHandler matches incoming invoices paid directly from a
// cash/bank account. Invoices paid through some other account fall back to
// the payment entries that reference them.
type purchaseInvoiceHandler struct{}

func (purchaseInvoiceHandler) discover(ctx context.Context, docs storage.DocumentReader, qc queryContext) ([]*MatchCandidate, error) {
	invoices, err := docs.OpenPurchaseInvoices(ctx, qc.Account.Company)
	if err != nil {
		return nil, err
	}

	var candidates []*MatchCandidate
	for _, p := range invoices {
		if p.CashBankAccount == qc.Account.GLAccount {
			candidates = append(candidates, normalizePurchaseInvoice(qc, p))
			continue
		}
		pooled, err := paymentEntryPool(ctx, docs, qc, purchaseInvoiceParent(qc, p), storage.KindPurchaseInvoice, p.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, pooled...)
	}
	return candidates, nil
}

func (purchaseInvoiceHandler) commit(ctx context.Context, ops storage.ReconcileOps, qc queryContext, documentID string) (float64, error) {
	p, err := ops.GetPurchaseInvoice(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("purchase invoice %s: %w", documentID, ErrUnknownDocument)
	}
	if err != nil {
		return 0, err
	}

	if p.CashBankAccount == qc.Account.GLAccount {
		if err := ops.ClearPurchaseInvoice(ctx, p.ID, qc.Tx.Date); err != nil {
			return 0, translateClearErr(err, p.ID)
		}
		return p.PaidAmount, nil
	}

	pooled, cleared, matched, err := clearPaymentEntryPool(ctx, ops, qc, storage.KindPurchaseInvoice, p.ID)
	if err != nil {
		return 0, err
	}
	if matched == 0 {
		return 0, fmt.Errorf("purchase invoice %s: %w", p.ID, ErrNoMatchingLine)
	}
	if cleared == 0 {
		return 0, fmt.Errorf("purchase invoice %s: %w", p.ID, ErrAlreadyReconciled)
	}
	return pooled, nil
}

func purchaseInvoiceParent(qc queryContext, p *storage.PurchaseInvoice) *MatchCandidate {
	return &MatchCandidate{
		Kind:         storage.KindPurchaseInvoice,
		DocumentID:   p.ID,
		DocumentName: p.ID,
		PostingDate:  p.PostingDate,
		Party:        p.SupplierName,
		Reference:    p.BillNo,
		Currency:     p.Currency,
		FutureDated:  qc.futureDated(p.PostingDate),
	}
}

// normalizePurchaseInvoice treats the paid amount as money out of the
// account.
func normalizePurchaseInvoice(qc queryContext, p *storage.PurchaseInvoice) *MatchCandidate {
	c := purchaseInvoiceParent(qc, p)
	c.Amount = qc.signedAmount(0, p.PaidAmount)
	return c
}
