package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/bankrecon-backend/internal/api/dto"
	"github.com/ledgerline/bankrecon-backend/internal/domain/recon"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

// TransactionsHandler exposes the engine operations over HTTP: open
// transactions per account, match candidates per transaction, and the commit.
type TransactionsHandler struct {
	*Base
	engine *recon.Engine
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(base *Base, engine *recon.Engine) *TransactionsHandler {
	return &TransactionsHandler{Base: base, engine: engine}
}

// ListOpen handles GET /api/accounts/{accountID}/transactions.
func (h *TransactionsHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("account ID is required"))
		return
	}

	transactions, err := h.engine.ListOpenTransactions(r.Context(), accountID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	response := dto.TransactionListResponse{
		BankAccountID: accountID,
		Transactions:  make([]dto.TransactionResponse, 0, len(transactions)),
		TotalCount:    len(transactions),
	}
	for _, tx := range transactions {
		response.Transactions = append(response.Transactions, toTransactionResponse(tx))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Candidates handles GET /api/transactions/{transactionID}/candidates.
// The optional reverse parameter flips the ranking to oldest first.
func (h *TransactionsHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}
	reverse := ParseBoolParam(r, "reverse", false)

	candidates, err := h.engine.FindCandidates(r.Context(), transactionID, reverse)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	response := dto.CandidateListResponse{
		TransactionID: transactionID,
		Candidates:    make([]dto.CandidateResponse, 0, len(candidates)),
		TotalCount:    len(candidates),
	}
	for _, c := range candidates {
		response.Candidates = append(response.Candidates, toCandidateResponse(c))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Reconcile handles POST /api/transactions/{transactionID}/reconcile.
func (h *TransactionsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}

	var req dto.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.DocumentKind == "" || req.DocumentID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("document_kind and document_id are required"))
		return
	}

	link, err := h.engine.Reconcile(r.Context(), transactionID, storage.DocKind(req.DocumentKind), req.DocumentID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ReconcileResponse{
		LinkID:          link.ID,
		TransactionID:   link.BankTransactionID,
		DocumentKind:    string(link.DocumentKind),
		DocumentID:      link.DocumentID,
		AllocatedAmount: link.AllocatedAmount,
		CreatedAt:       link.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Links handles GET /api/transactions/{transactionID}/links.
func (h *TransactionsHandler) Links(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}

	links, err := h.repo.ListLinks(r.Context(), transactionID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.LinkListResponse{
		TransactionID: transactionID,
		Links:         make([]dto.LinkResponse, 0, len(links)),
		TotalCount:    len(links),
	}
	for _, l := range links {
		response.Links = append(response.Links, dto.LinkResponse{
			ID:              l.ID,
			DocumentKind:    string(l.DocumentKind),
			DocumentID:      l.DocumentID,
			AllocatedAmount: l.AllocatedAmount,
			CreatedAt:       l.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// writeEngineError maps engine errors onto HTTP status codes.
func (h *TransactionsHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recon.ErrAlreadyReconciled):
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, recon.ErrUnknownDocument), errors.Is(err, storage.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("document or transaction"))
	case errors.Is(err, recon.ErrInvalidQueryContext),
		errors.Is(err, recon.ErrUnsupportedDocumentKind),
		errors.Is(err, recon.ErrNoMatchingLine):
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
	default:
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// toTransactionResponse converts a bank transaction to an API response.
func toTransactionResponse(tx *storage.BankTransaction) dto.TransactionResponse {
	direction := "Dr"
	if tx.IsCredit() {
		direction = "Cr"
	}
	return dto.TransactionResponse{
		ID:          tx.ID,
		Date:        tx.Date.Format("2006-01-02"),
		Description: tx.Description,
		Direction:   direction,
		Amount:      tx.Amount(),
		Currency:    tx.Currency,
		Unallocated: tx.Unallocated,
	}
}

// toCandidateResponse converts a match candidate, sub-candidates included.
func toCandidateResponse(c *recon.MatchCandidate) dto.CandidateResponse {
	response := dto.CandidateResponse{
		Kind:         string(c.Kind),
		DocumentID:   c.DocumentID,
		DocumentName: c.DocumentName,
		PostingDate:  c.PostingDate.Format("2006-01-02"),
		Party:        c.Party,
		Reference:    c.Reference,
		Currency:     c.Currency,
		Amount:       c.Amount,
		FutureDated:  c.FutureDated,
		Composite:    c.Composite,
	}
	if c.ReferenceDate != nil {
		response.ReferenceDate = c.ReferenceDate.Format("2006-01-02")
	}
	for _, sub := range c.SubCandidates {
		response.SubCandidates = append(response.SubCandidates, toCandidateResponse(sub))
	}
	return response
}
