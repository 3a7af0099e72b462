package recon

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// paymentEntryHandler matches standalone payment documents. The side of the
// payment that touches the ledger account decides the amount and currency:
// paid_to means money into the account, paid_from means money out.
type paymentEntryHandler struct{}

func (paymentEntryHandler) discover(ctx context.Context, docs storage.DocumentReader, qc queryContext) ([]*MatchCandidate, error) {
	entries, err := docs.OpenPaymentEntries(ctx, qc.Account.GLAccount, qc.Account.Company)
	if err != nil {
		return nil, err
	}

	var candidates []*MatchCandidate
	for _, p := range entries {
		c, err := normalizePaymentEntry(qc, p)
		if errors.Is(err, ErrNoMatchingLine) {
			continue
		}
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (paymentEntryHandler) commit(ctx context.Context, ops storage.ReconcileOps, qc queryContext, documentID string) (float64, error) {
	p, err := ops.GetPaymentEntry(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("payment entry %s: %w", documentID, ErrUnknownDocument)
	}
	if err != nil {
		return 0, err
	}

	c, err := normalizePaymentEntry(qc, p)
	if err != nil {
		return 0, err
	}

	if err := ops.ClearPaymentEntry(ctx, p.ID, qc.Tx.Date); err != nil {
		return 0, translateClearErr(err, p.ID)
	}
	return math.Abs(c.Amount), nil
}

// normalizePaymentEntry builds the candidate for the side of the payment that
// references the ledger account.
func normalizePaymentEntry(qc queryContext, p *storage.PaymentEntry) (*MatchCandidate, error) {
	var debit, credit float64
	var currency string

	switch qc.Account.GLAccount {
	case p.PaidTo:
		debit, currency = p.ReceivedAmount, p.PaidToCurrency
	case p.PaidFrom:
		credit, currency = p.PaidAmount, p.PaidFromCurrency
	default:
		return nil, fmt.Errorf("payment entry %s: %w", p.ID, ErrNoMatchingLine)
	}

	return &MatchCandidate{
		Kind:          storage.KindPaymentEntry,
		DocumentID:    p.ID,
		DocumentName:  p.ID,
		PostingDate:   p.PostingDate,
		ReferenceDate: p.ReferenceDate,
		Party:         p.Party,
		Reference:     firstNonEmpty(p.ReferenceNo, p.Remarks),
		Currency:      currency,
		Amount:        qc.signedAmount(debit, credit),
		FutureDated:   qc.futureDated(p.PostingDate),
	}, nil
}
