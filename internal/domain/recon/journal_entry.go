package recon

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// journalEntryHandler matches multi-line vouchers. Only the lines on the
// ledger account participate: one open line yields a plain candidate, several
// fold into a composite whose amount is their exact sum.
type journalEntryHandler struct{}

func (journalEntryHandler) discover(ctx context.Context, docs storage.DocumentReader, qc queryContext) ([]*MatchCandidate, error) {
	entries, err := docs.OpenJournalEntries(ctx, qc.Account.GLAccount, qc.Account.Company)
	if err != nil {
		return nil, err
	}

	var candidates []*MatchCandidate
	for _, j := range entries {
		c, err := normalizeJournalEntry(qc, j)
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

func (h journalEntryHandler) commit(ctx context.Context, ops storage.ReconcileOps, qc queryContext, documentID string) (float64, error) {
	j, err := ops.GetJournalEntry(ctx, documentID)
	if err == nil {
		return h.clearDocument(ctx, ops, qc, j)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	// Not a document ID; a sub-candidate passes its line ID.
	line, err := ops.GetJournalEntryLine(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("journal entry %s: %w", documentID, ErrUnknownDocument)
	}
	if err != nil {
		return 0, err
	}
	if line.Account != qc.Account.GLAccount {
		return 0, fmt.Errorf("journal entry line %s: %w", line.ID, ErrNoMatchingLine)
	}

	if err := ops.ClearJournalEntryLine(ctx, line.ID, qc.Tx.Date); err != nil {
		return 0, translateClearErr(err, line.ID)
	}
	return math.Abs(qc.signedAmount(line.Debit, line.Credit)), nil
}

// clearDocument clears every open line of the voucher on the ledger account.
func (journalEntryHandler) clearDocument(ctx context.Context, ops storage.ReconcileOps, qc queryContext, j *storage.JournalEntry) (float64, error) {
	total := 0.0
	onAccount, cleared := 0, 0

	for i := range j.Lines {
		line := &j.Lines[i]
		if line.Account != qc.Account.GLAccount {
			continue
		}
		onAccount++
		if line.ClearanceDate != nil {
			cleared++
			continue
		}
		if err := ops.ClearJournalEntryLine(ctx, line.ID, qc.Tx.Date); err != nil {
			return 0, translateClearErr(err, line.ID)
		}
		total += qc.signedAmount(line.Debit, line.Credit)
	}

	if onAccount == 0 {
		return 0, fmt.Errorf("journal entry %s: %w", j.ID, ErrNoMatchingLine)
	}
	if onAccount == cleared {
		return 0, fmt.Errorf("journal entry %s: %w", j.ID, ErrAlreadyReconciled)
	}
	return math.Abs(total), nil
}

// normalizeJournalEntry aggregates the voucher's open lines on the ledger
// account. Cleared lines drop out before the one-vs-many decision.
func normalizeJournalEntry(qc queryContext, j *storage.JournalEntry) (*MatchCandidate, error) {
	var subs []*MatchCandidate
	for i := range j.Lines {
		line := &j.Lines[i]
		if line.Account != qc.Account.GLAccount || line.ClearanceDate != nil {
			continue
		}
		subs = append(subs, normalizeJournalLine(qc, j, line))
	}

	if len(subs) == 0 {
		return nil, fmt.Errorf("journal entry %s: %w", j.ID, ErrNoMatchingLine)
	}

	parent := &MatchCandidate{
		Kind:          storage.KindJournalEntry,
		DocumentID:    j.ID,
		DocumentName:  j.ID,
		PostingDate:   j.PostingDate,
		ReferenceDate: j.ChequeDate,
		Party:         subs[0].Party,
		Reference:     subs[0].Reference,
		Currency:      subs[0].Currency,
		FutureDated:   qc.futureDated(j.PostingDate),
	}
	if len(subs) == 1 {
		parent.Amount = subs[0].Amount
		return parent, nil
	}
	return compositeOf(parent, subs), nil
}

func normalizeJournalLine(qc queryContext, j *storage.JournalEntry, line *storage.JournalEntryLine) *MatchCandidate {
	return &MatchCandidate{
		Kind:          storage.KindJournalEntry,
		DocumentID:    line.ID,
		DocumentName:  fmt.Sprintf("%s #%d", j.ID, line.LineNo),
		PostingDate:   j.PostingDate,
		ReferenceDate: j.ChequeDate,
		Party:         firstNonEmpty(j.PayToRecdFrom, line.Party, line.AgainstAccount),
		Reference:     firstNonEmpty(j.ChequeNo, line.UserRemark, j.UserRemark, j.Remark, line.ReferenceName),
		Currency:      line.Currency,
		Amount:        qc.signedAmount(line.Debit, line.Credit),
		FutureDated:   qc.futureDated(j.PostingDate),
	}
}
