package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/bankrecon-backend/internal/api"
	"github.com/ledgerline/bankrecon-backend/internal/api/dto"
	"github.com/ledgerline/bankrecon-backend/internal/domain/recon"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := recon.NewEngine(repo, logger)
	return api.NewServer(api.DefaultConfig(), repo, engine, logger), repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedLedger(repo *storage.MockRepository) {
	repo.AddBankAccount(&storage.BankAccount{
		ID:        "acc-1",
		Name:      "HDFC Current",
		Company:   "Acme Ltd",
		GLAccount: "HDFC Bank - AL",
	})
	repo.AddBankTransaction(&storage.BankTransaction{
		ID:            "bt-1",
		BankAccountID: "acc-1",
		Date:          day(2025, 3, 10),
		Description:   "NEFT UTR 99123",
		Credit:        500,
		Currency:      "INR",
		Unallocated:   500,
		Submitted:     true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID:             "pe-1",
		Company:        "Acme Ltd",
		PostingDate:    day(2025, 3, 5),
		PaidTo:         "HDFC Bank - AL",
		PaidToCurrency: "INR",
		ReceivedAmount: 500,
		Submitted:      true,
	})
}

func doRequest(t *testing.T, srv *api.Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestListOpenTransactions(t *testing.T) {
	srv, repo := newTestServer(t)
	seedLedger(repo)

	rec := doRequest(t, srv, http.MethodGet, "/api/accounts/acc-1/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response dto.TransactionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 1, response.TotalCount)
	assert.Equal(t, "bt-1", response.Transactions[0].ID)
	assert.Equal(t, "Cr", response.Transactions[0].Direction)
	assert.Equal(t, 500.0, response.Transactions[0].Unallocated)

	t.Run("unknown account is a bad request", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/accounts/acc-missing/transactions", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCandidates(t *testing.T) {
	srv, repo := newTestServer(t)
	seedLedger(repo)
	repo.AddJournalEntry(&storage.JournalEntry{
		ID: "je-1", Company: "Acme Ltd", PostingDate: day(2025, 3, 8), Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "jel-1", LineNo: 1, Account: "HDFC Bank - AL", Debit: 200, Currency: "INR"},
			{ID: "jel-2", LineNo: 2, Account: "HDFC Bank - AL", Debit: 300, Currency: "INR"},
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/transactions/bt-1/candidates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response dto.CandidateListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 2, response.TotalCount)

	// Most recent first: the journal entry posted after the payment.
	assert.Equal(t, "je-1", response.Candidates[0].DocumentID)
	assert.True(t, response.Candidates[0].Composite)
	assert.Equal(t, 500.0, response.Candidates[0].Amount)
	require.Len(t, response.Candidates[0].SubCandidates, 2)
	assert.Equal(t, "pe-1", response.Candidates[1].DocumentID)

	t.Run("reverse flips the order", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/transactions/bt-1/candidates?reverse=true", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.CandidateListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		require.Equal(t, 2, response.TotalCount)
		assert.Equal(t, "pe-1", response.Candidates[0].DocumentID)
	})

	t.Run("unknown transaction is 404", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/transactions/bt-missing/candidates", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReconcile(t *testing.T) {
	srv, repo := newTestServer(t)
	seedLedger(repo)

	body := dto.ReconcileRequest{DocumentKind: "payment_entry", DocumentID: "pe-1"}
	rec := doRequest(t, srv, http.MethodPost, "/api/transactions/bt-1/reconcile", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var response dto.ReconcileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 500.0, response.AllocatedAmount)
	assert.NotEmpty(t, response.LinkID)

	t.Run("second commit conflicts", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/transactions/bt-1/reconcile", body)
		require.Equal(t, http.StatusConflict, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
		assert.Equal(t, dto.ErrCodeConflict, apiErr.Code)
	})

	t.Run("links are recorded", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/transactions/bt-1/links", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.LinkListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		require.Equal(t, 1, response.TotalCount)
		assert.Equal(t, "pe-1", response.Links[0].DocumentID)
	})
}

func TestReconcileValidation(t *testing.T) {
	srv, repo := newTestServer(t)
	seedLedger(repo)

	t.Run("unsupported kind", func(t *testing.T) {
		body := dto.ReconcileRequest{DocumentKind: "gl_entry", DocumentID: "doc-1"}
		rec := doRequest(t, srv, http.MethodPost, "/api/transactions/bt-1/reconcile", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/transactions/bt-1/reconcile", dto.ReconcileRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("stale document reference", func(t *testing.T) {
		body := dto.ReconcileRequest{DocumentKind: "payment_entry", DocumentID: "pe-gone"}
		rec := doRequest(t, srv, http.MethodPost, "/api/transactions/bt-1/reconcile", body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStats(t *testing.T) {
	srv, repo := newTestServer(t)
	seedLedger(repo)

	body := dto.ReconcileRequest{DocumentKind: "payment_entry", DocumentID: "pe-1"}
	rec := doRequest(t, srv, http.MethodPost, "/api/transactions/bt-1/reconcile", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response dto.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 0, response.OpenTransactions)
	assert.Equal(t, 1, response.ReconciledTransactions)
	assert.Equal(t, 1, response.TotalLinks)
	assert.Equal(t, 500.0, response.AllocatedByKind["payment_entry"])
}
