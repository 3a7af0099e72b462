package recon

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// salesInvoiceHandler matches outgoing invoices through their internal
// payment lines (POS-style payments on the bank account). An invoice with no
// open internal line on the account falls back to the payment entries that
// reference it; the two pools never merge.
type salesInvoiceHandler struct{}

func (salesInvoiceHandler) discover(ctx context.Context, docs storage.DocumentReader, qc queryContext) ([]*MatchCandidate, error) {
	invoices, err := docs.OpenSalesInvoices(ctx, qc.Account.Company)
	if err != nil {
		return nil, err
	}

	var candidates []*MatchCandidate
	for _, inv := range invoices {
		var subs []*MatchCandidate
		for i := range inv.Payments {
			line := &inv.Payments[i]
			if line.Account != qc.Account.GLAccount || line.ClearanceDate != nil {
				continue
			}
			subs = append(subs, normalizeSalesInvoicePayment(qc, inv, line))
		}

		switch len(subs) {
		case 0:
			pooled, err := paymentEntryPool(ctx, docs, qc, salesInvoiceParent(qc, inv), storage.KindSalesInvoice, inv.ID)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, pooled...)
		case 1:
			parent := salesInvoiceParent(qc, inv)
			parent.Amount = subs[0].Amount
			candidates = append(candidates, parent)
		default:
			candidates = append(candidates, compositeOf(salesInvoiceParent(qc, inv), subs))
		}
	}
	return candidates, nil
}

func (h salesInvoiceHandler) commit(ctx context.Context, ops storage.ReconcileOps, qc queryContext, documentID string) (float64, error) {
	inv, err := ops.GetSalesInvoice(ctx, documentID)
	if err == nil {
		return h.clearDocument(ctx, ops, qc, inv)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	// Not a document ID; a sub-candidate passes its payment line ID.
	line, err := ops.GetSalesInvoicePayment(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("sales invoice %s: %w", documentID, ErrUnknownDocument)
	}
	if err != nil {
		return 0, err
	}
	if line.Account != qc.Account.GLAccount {
		return 0, fmt.Errorf("sales invoice payment %s: %w", line.ID, ErrNoMatchingLine)
	}

	if err := ops.ClearSalesInvoicePayment(ctx, line.ID, qc.Tx.Date); err != nil {
		return 0, translateClearErr(err, line.ID)
	}
	return line.Amount, nil
}

func (salesInvoiceHandler) clearDocument(ctx context.Context, ops storage.ReconcileOps, qc queryContext, inv *storage.SalesInvoice) (float64, error) {
	total := 0.0
	onAccount, cleared := 0, 0

	for i := range inv.Payments {
		line := &inv.Payments[i]
		if line.Account != qc.Account.GLAccount {
			continue
		}
		onAccount++
		if line.ClearanceDate != nil {
			cleared++
			continue
		}
		if err := ops.ClearSalesInvoicePayment(ctx, line.ID, qc.Tx.Date); err != nil {
			return 0, translateClearErr(err, line.ID)
		}
		total += qc.signedAmount(line.Amount, 0)
	}

	if onAccount > 0 {
		if onAccount == cleared {
			return 0, fmt.Errorf("sales invoice %s: %w", inv.ID, ErrAlreadyReconciled)
		}
		return math.Abs(total), nil
	}

	// No internal line on the account: settle through the referencing
	// payment entries instead.
	pooled, cleared, matched, err := clearPaymentEntryPool(ctx, ops, qc, storage.KindSalesInvoice, inv.ID)
	if err != nil {
		return 0, err
	}
	if matched == 0 {
		return 0, fmt.Errorf("sales invoice %s: %w", inv.ID, ErrNoMatchingLine)
	}
	if cleared == 0 {
		return 0, fmt.Errorf("sales invoice %s: %w", inv.ID, ErrAlreadyReconciled)
	}
	return pooled, nil
}

func salesInvoiceParent(qc queryContext, inv *storage.SalesInvoice) *MatchCandidate {
	return &MatchCandidate{
		Kind:         storage.KindSalesInvoice,
		DocumentID:   inv.ID,
		DocumentName: inv.ID,
		PostingDate:  inv.PostingDate,
		Party:        firstNonEmpty(inv.CustomerName, inv.Customer),
		Reference:    firstNonEmpty(inv.Remarks, inv.PONo),
		Currency:     inv.Currency,
		FutureDated:  qc.futureDated(inv.PostingDate),
	}
}

func normalizeSalesInvoicePayment(qc queryContext, inv *storage.SalesInvoice, line *storage.SalesInvoicePayment) *MatchCandidate {
	return &MatchCandidate{
		Kind:         storage.KindSalesInvoice,
		DocumentID:   line.ID,
		DocumentName: fmt.Sprintf("%s #%d", inv.ID, line.LineNo),
		PostingDate:  inv.PostingDate,
		Party:        firstNonEmpty(inv.CustomerName, inv.Customer),
		Reference:    firstNonEmpty(inv.Remarks, inv.PONo),
		Currency:     inv.Currency,
		Amount:       qc.signedAmount(line.Amount, 0),
		FutureDated:  qc.futureDated(inv.PostingDate),
	}
}
