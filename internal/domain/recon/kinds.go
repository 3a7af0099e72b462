package recon

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// kindHandler is implemented once per document kind. discover produces the
// normalized, aggregated candidates for one bank transaction; commit clears
// the chosen document (or line) and reports the allocated amount.
type kindHandler interface {
	discover(ctx context.Context, docs storage.DocumentReader, qc queryContext) ([]*MatchCandidate, error)
	commit(ctx context.Context, ops storage.ReconcileOps, qc queryContext, documentID string) (float64, error)
}

// kindHandlers maps each supported kind to its handler. Discovery walks
// storage.AllKinds so the order stays stable for ranking tie-breaks.
var kindHandlers = map[storage.DocKind]kindHandler{
	storage.KindPaymentEntry:    paymentEntryHandler{},
	storage.KindJournalEntry:    journalEntryHandler{},
	storage.KindSalesInvoice:    salesInvoiceHandler{},
	storage.KindPurchaseInvoice: purchaseInvoiceHandler{},
	storage.KindExpenseClaim:    expenseClaimHandler{},
}

// translateClearErr maps storage-level clear failures onto the engine's
// commit error taxonomy.
func translateClearErr(err error, documentID string) error {
	switch {
	case errors.Is(err, storage.ErrAlreadyCleared):
		return fmt.Errorf("document %s: %w", documentID, ErrAlreadyReconciled)
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("document %s: %w", documentID, ErrUnknownDocument)
	}
	return err
}
