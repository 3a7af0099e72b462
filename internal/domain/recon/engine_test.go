package recon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

const (
	testCompany = "Acme Ltd"
	testGL      = "HDFC Bank - AL"
)

func newTestEngine(t *testing.T) (*Engine, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(repo, logger), repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedAccount(repo *storage.MockRepository) {
	repo.AddBankAccount(&storage.BankAccount{
		ID:        "acc-1",
		Name:      "HDFC Current",
		Company:   testCompany,
		GLAccount: testGL,
	})
}

// seedCreditTx adds a money-in transaction with the full amount unallocated.
func seedCreditTx(repo *storage.MockRepository, id string, amount float64, date time.Time) {
	repo.AddBankTransaction(&storage.BankTransaction{
		ID:            id,
		BankAccountID: "acc-1",
		Date:          date,
		Credit:        amount,
		Currency:      "INR",
		Unallocated:   amount,
		Submitted:     true,
	})
}

func seedDebitTx(repo *storage.MockRepository, id string, amount float64, date time.Time) {
	repo.AddBankTransaction(&storage.BankTransaction{
		ID:            id,
		BankAccountID: "acc-1",
		Date:          date,
		Debit:         amount,
		Currency:      "INR",
		Unallocated:   amount,
		Submitted:     true,
	})
}

func TestFindCandidates_OpenDocumentsOnly(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))

	cleared := day(2025, 3, 1)
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-open", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 500, Submitted: true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-cleared", Company: testCompany, PostingDate: day(2025, 3, 6),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 500, Submitted: true,
		ClearanceDate: &cleared,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-draft", Company: testCompany, PostingDate: day(2025, 3, 7),
		PaidTo: testGL, ReceivedAmount: 500, Submitted: false,
	})

	candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "pe-open", candidates[0].DocumentID)
	assert.Equal(t, 500.0, candidates[0].Amount)
	assert.Equal(t, "INR", candidates[0].Currency)
}

func TestFindCandidates_FullyAllocatedTransaction(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	repo.AddBankTransaction(&storage.BankTransaction{
		ID: "bt-settled", BankAccountID: "acc-1", Date: day(2025, 3, 10),
		Credit: 500, Currency: "INR", Unallocated: 0, Submitted: true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-1", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, ReceivedAmount: 500, Submitted: true,
	})

	candidates, err := engine.FindCandidates(context.Background(), "bt-settled", false)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidates_InvalidContext(t *testing.T) {
	engine, repo := newTestEngine(t)
	repo.AddBankAccount(&storage.BankAccount{ID: "acc-bare", Name: "Bare"})
	repo.AddBankTransaction(&storage.BankTransaction{
		ID: "bt-1", BankAccountID: "acc-bare", Date: day(2025, 3, 10),
		Credit: 100, Currency: "INR", Unallocated: 100, Submitted: true,
	})

	_, err := engine.FindCandidates(context.Background(), "bt-1", false)
	assert.ErrorIs(t, err, ErrInvalidQueryContext)
}

func TestFindCandidates_JournalEntryComposite(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))

	// Two deposits on the bank account booked in one voucher.
	repo.AddJournalEntry(&storage.JournalEntry{
		ID: "je-1", Company: testCompany, PostingDate: day(2025, 3, 8), Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "jel-1", LineNo: 1, Account: testGL, Debit: 200, Currency: "INR"},
			{ID: "jel-2", LineNo: 2, Account: testGL, Debit: 300, Currency: "INR"},
			{ID: "jel-3", LineNo: 3, Account: "Debtors - AL", Credit: 500, Currency: "INR"},
		},
	})

	candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.True(t, c.Composite)
	assert.Equal(t, "je-1", c.DocumentID)
	assert.Equal(t, 500.0, c.Amount, "composite amount is the exact sum of its lines")
	require.Len(t, c.SubCandidates, 2)
	assert.Equal(t, "jel-1", c.SubCandidates[0].DocumentID, "source line order")
	assert.Equal(t, "jel-2", c.SubCandidates[1].DocumentID)
	assert.Equal(t, 200.0, c.SubCandidates[0].Amount)
	assert.Equal(t, 300.0, c.SubCandidates[1].Amount)
}

func TestFindCandidates_SingleLineIsPlain(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))

	cleared := day(2025, 3, 1)
	repo.AddJournalEntry(&storage.JournalEntry{
		ID: "je-1", Company: testCompany, PostingDate: day(2025, 3, 8), Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "jel-1", LineNo: 1, Account: testGL, Debit: 200, Currency: "INR", ClearanceDate: &cleared},
			{ID: "jel-2", LineNo: 2, Account: testGL, Debit: 300, Currency: "INR"},
			{ID: "jel-3", LineNo: 3, Account: "Debtors - AL", Credit: 500, Currency: "INR"},
		},
	})

	// The cleared line drops out before the one-vs-many decision.
	candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.False(t, candidates[0].Composite)
	assert.Equal(t, "je-1", candidates[0].DocumentID)
	assert.Equal(t, 300.0, candidates[0].Amount)
	assert.Empty(t, candidates[0].SubCandidates)
}

func TestFindCandidates_SignSymmetry(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-credit", 500, day(2025, 3, 10))
	seedDebitTx(repo, "bt-debit", 500, day(2025, 3, 10))

	repo.AddJournalEntry(&storage.JournalEntry{
		ID: "je-1", Company: testCompany, PostingDate: day(2025, 3, 8), Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "jel-1", LineNo: 1, Account: testGL, Debit: 500, Currency: "INR"},
			{ID: "jel-2", LineNo: 2, Account: "Debtors - AL", Credit: 500, Currency: "INR"},
		},
	})

	ctx := context.Background()
	fromCredit, err := engine.FindCandidates(ctx, "bt-credit", false)
	require.NoError(t, err)
	fromDebit, err := engine.FindCandidates(ctx, "bt-debit", false)
	require.NoError(t, err)

	require.Len(t, fromCredit, 1)
	require.Len(t, fromDebit, 1)
	assert.Equal(t, 500.0, fromCredit[0].Amount)
	assert.Equal(t, -500.0, fromDebit[0].Amount, "same line, inverted sign for the opposite direction")
}

func TestFindCandidates_Idempotent(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 1000, day(2025, 3, 10))

	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-1", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 400, Submitted: true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-2", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 600, Submitted: true,
	})
	repo.AddJournalEntry(&storage.JournalEntry{
		ID: "je-1", Company: testCompany, PostingDate: day(2025, 3, 5), Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "jel-1", LineNo: 1, Account: testGL, Debit: 1000, Currency: "INR"},
		},
	})

	ctx := context.Background()
	first, err := engine.FindCandidates(ctx, "bt-1", false)
	require.NoError(t, err)
	second, err := engine.FindCandidates(ctx, "bt-1", false)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].DocumentID, second[i].DocumentID)
		assert.Equal(t, first[i].Amount, second[i].Amount)
	}
}

func TestFindCandidates_Ranking(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 1000, day(2025, 3, 10))

	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-old", Company: testCompany, PostingDate: day(2025, 3, 1),
		PaidTo: testGL, ReceivedAmount: 100, Submitted: true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-new", Company: testCompany, PostingDate: day(2025, 3, 9),
		PaidTo: testGL, ReceivedAmount: 200, Submitted: true,
	})
	// Same date as pe-new but a later kind: the tie keeps discovery order.
	repo.AddJournalEntry(&storage.JournalEntry{
		ID: "je-tied", Company: testCompany, PostingDate: day(2025, 3, 9), Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "jel-1", LineNo: 1, Account: testGL, Debit: 300, Currency: "INR"},
		},
	})

	ctx := context.Background()

	t.Run("most recent first by default", func(t *testing.T) {
		candidates, err := engine.FindCandidates(ctx, "bt-1", false)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		assert.Equal(t, "pe-new", candidates[0].DocumentID)
		assert.Equal(t, "je-tied", candidates[1].DocumentID)
		assert.Equal(t, "pe-old", candidates[2].DocumentID)
	})

	t.Run("reverse is oldest first", func(t *testing.T) {
		candidates, err := engine.FindCandidates(ctx, "bt-1", true)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		assert.Equal(t, "pe-old", candidates[0].DocumentID)
		assert.Equal(t, "pe-new", candidates[1].DocumentID)
		assert.Equal(t, "je-tied", candidates[2].DocumentID)
	})
}

func TestFindCandidates_FutureDatedFlaggedNotFiltered(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))

	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-future", Company: testCompany, PostingDate: day(2025, 3, 15),
		PaidTo: testGL, ReceivedAmount: 500, Submitted: true,
	})

	candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].FutureDated)
}

func TestFindCandidates_PaymentEntryFallbackPooling(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 1000, day(2025, 3, 10))

	t.Run("pool of two becomes a composite under the invoice", func(t *testing.T) {
		repo.AddSalesInvoice(&storage.SalesInvoice{
			ID: "si-pooled", Company: testCompany, PostingDate: day(2025, 3, 2),
			CustomerName: "Initech", Currency: "INR", Status: "unpaid", Submitted: true,
		})
		repo.AddPaymentEntry(&storage.PaymentEntry{
			ID: "pe-a", Company: testCompany, PostingDate: day(2025, 3, 3),
			PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 400, Submitted: true,
			ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-pooled",
		})
		repo.AddPaymentEntry(&storage.PaymentEntry{
			ID: "pe-b", Company: testCompany, PostingDate: day(2025, 3, 4),
			PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 600, Submitted: true,
			ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-pooled",
		})

		candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
		require.NoError(t, err)
		require.Len(t, candidates, 1)

		c := candidates[0]
		assert.Equal(t, storage.KindSalesInvoice, c.Kind)
		assert.Equal(t, "si-pooled", c.DocumentID)
		assert.True(t, c.Composite)
		assert.Equal(t, 1000.0, c.Amount)
		require.Len(t, c.SubCandidates, 2)
		assert.Equal(t, storage.KindPaymentEntry, c.SubCandidates[0].Kind)
		assert.Equal(t, "pe-a", c.SubCandidates[0].DocumentID)
	})

	t.Run("pool of one stays a plain payment entry", func(t *testing.T) {
		engine, repo := newTestEngine(t)
		seedAccount(repo)
		seedCreditTx(repo, "bt-1", 1000, day(2025, 3, 10))

		repo.AddPurchaseInvoice(&storage.PurchaseInvoice{
			ID: "pi-1", Company: testCompany, PostingDate: day(2025, 3, 2),
			SupplierName: "Paper Co", PaidAmount: 250,
			CashBankAccount: "Petty Cash - AL", IsPaid: true, Submitted: true,
		})
		repo.AddPaymentEntry(&storage.PaymentEntry{
			ID: "pe-solo", Company: testCompany, PostingDate: day(2025, 3, 3),
			PaidFrom: testGL, PaidFromCurrency: "INR", PaidAmount: 250, Submitted: true,
			ReferenceKind: storage.KindPurchaseInvoice, ReferenceName: "pi-1",
		})

		candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, storage.KindPaymentEntry, candidates[0].Kind)
		assert.Equal(t, "pe-solo", candidates[0].DocumentID)
		assert.False(t, candidates[0].Composite)
	})
}

func TestFindCandidates_PooledPaymentsSurfaceOnce(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 1500, day(2025, 3, 10))

	repo.AddSalesInvoice(&storage.SalesInvoice{
		ID: "si-1", Company: testCompany, PostingDate: day(2025, 3, 2),
		CustomerName: "Initech", Currency: "INR", Status: "unpaid", Submitted: true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-a", Company: testCompany, PostingDate: day(2025, 3, 3),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 400, Submitted: true,
		ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-1",
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-b", Company: testCompany, PostingDate: day(2025, 3, 4),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 600, Submitted: true,
		ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-1",
	})
	// A payment with no document reference keeps surfacing on its own.
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-free", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 120, Submitted: true,
	})

	candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.DocumentID)
	}
	assert.ElementsMatch(t, []string{"pe-free", "si-1"}, ids,
		"pooled payments only appear under the owning invoice")

	for _, c := range candidates {
		if c.DocumentID == "si-1" {
			require.Len(t, c.SubCandidates, 2)
			assert.Equal(t, "pe-a", c.SubCandidates[0].DocumentID)
			assert.Equal(t, "pe-b", c.SubCandidates[1].DocumentID)
		}
	}
}

func TestFindCandidates_InternalLinePreferredOverPool(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))

	repo.AddSalesInvoice(&storage.SalesInvoice{
		ID: "si-1", Company: testCompany, PostingDate: day(2025, 3, 2),
		CustomerName: "Initech", Currency: "INR", Status: "unpaid", Submitted: true,
		Payments: []storage.SalesInvoicePayment{
			{ID: "sip-1", LineNo: 1, Account: testGL, Amount: 500},
		},
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-ref", Company: testCompany, PostingDate: day(2025, 3, 3),
		PaidTo: testGL, ReceivedAmount: 500, Submitted: true,
		ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-1",
	})

	candidates, err := engine.FindCandidates(context.Background(), "bt-1", false)
	require.NoError(t, err)

	// The invoice surfaces through its internal line only; the referencing
	// payment still appears on its own through payment entry discovery.
	var invoiceCandidates []*MatchCandidate
	for _, c := range candidates {
		if c.Kind == storage.KindSalesInvoice {
			invoiceCandidates = append(invoiceCandidates, c)
		}
	}
	require.Len(t, invoiceCandidates, 1)
	assert.Equal(t, "si-1", invoiceCandidates[0].DocumentID)
	assert.False(t, invoiceCandidates[0].Composite)
	assert.Equal(t, 500.0, invoiceCandidates[0].Amount)
}

func TestReconcile_PaymentEntry(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-1", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 500, Submitted: true,
	})

	ctx := context.Background()
	link, err := engine.Reconcile(ctx, "bt-1", storage.KindPaymentEntry, "pe-1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, link.AllocatedAmount)
	assert.Equal(t, storage.KindPaymentEntry, link.DocumentKind)

	tx, err := repo.GetBankTransaction(ctx, "bt-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, tx.Unallocated)

	pe, err := repo.GetPaymentEntry(ctx, "pe-1")
	require.NoError(t, err)
	require.NotNil(t, pe.ClearanceDate)
	assert.True(t, pe.ClearanceDate.Equal(day(2025, 3, 10)), "clearance date is the transaction date")
}

func TestReconcile_JournalEntryDocumentAndLine(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))
	seedCreditTx(repo, "bt-2", 300, day(2025, 3, 11))

	repo.AddJournalEntry(&storage.JournalEntry{
		ID: "je-1", Company: testCompany, PostingDate: day(2025, 3, 8), Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "jel-1", LineNo: 1, Account: testGL, Debit: 200, Currency: "INR"},
			{ID: "jel-2", LineNo: 2, Account: testGL, Debit: 300, Currency: "INR"},
			{ID: "jel-3", LineNo: 3, Account: "Debtors - AL", Credit: 500, Currency: "INR"},
		},
	})

	ctx := context.Background()

	t.Run("single line by line ID", func(t *testing.T) {
		link, err := engine.Reconcile(ctx, "bt-2", storage.KindJournalEntry, "jel-2")
		require.NoError(t, err)
		assert.Equal(t, 300.0, link.AllocatedAmount)

		line, err := repo.GetJournalEntryLine(ctx, "jel-2")
		require.NoError(t, err)
		assert.NotNil(t, line.ClearanceDate)

		// The off-account line is untouched.
		other, err := repo.GetJournalEntryLine(ctx, "jel-3")
		require.NoError(t, err)
		assert.Nil(t, other.ClearanceDate)
	})

	t.Run("document ID clears the remaining open lines", func(t *testing.T) {
		link, err := engine.Reconcile(ctx, "bt-1", storage.KindJournalEntry, "je-1")
		require.NoError(t, err)
		assert.Equal(t, 200.0, link.AllocatedAmount)

		line, err := repo.GetJournalEntryLine(ctx, "jel-1")
		require.NoError(t, err)
		assert.NotNil(t, line.ClearanceDate)
	})

	t.Run("everything cleared loses the next commit", func(t *testing.T) {
		_, err := engine.Reconcile(ctx, "bt-1", storage.KindJournalEntry, "je-1")
		assert.ErrorIs(t, err, ErrAlreadyReconciled)
	})
}

func TestReconcile_ClearedPurchaseInvoice(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedDebitTx(repo, "bt-1", 150, day(2025, 3, 10))

	cleared := day(2025, 3, 1)
	repo.AddPurchaseInvoice(&storage.PurchaseInvoice{
		ID: "pi-1", Company: testCompany, PostingDate: day(2025, 2, 20),
		SupplierName: "Paper Co", PaidAmount: 150, CashBankAccount: testGL,
		IsPaid: true, Submitted: true, ClearanceDate: &cleared,
	})

	_, err := engine.Reconcile(context.Background(), "bt-1", storage.KindPurchaseInvoice, "pi-1")
	assert.ErrorIs(t, err, ErrAlreadyReconciled)

	// The losing commit leaves no trace.
	assert.Empty(t, repo.Links())
	tx, err := repo.GetBankTransaction(context.Background(), "bt-1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, tx.Unallocated)
}

func TestReconcile_ClampsUnallocatedAtZero(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 300, day(2025, 3, 10))
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-big", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 500, Submitted: true,
	})

	ctx := context.Background()
	link, err := engine.Reconcile(ctx, "bt-1", storage.KindPaymentEntry, "pe-big")
	require.NoError(t, err)
	assert.Equal(t, 500.0, link.AllocatedAmount)

	tx, err := repo.GetBankTransaction(ctx, "bt-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, tx.Unallocated, "never negative")
}

func TestReconcile_ErrorTaxonomy(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))

	ctx := context.Background()

	t.Run("unsupported kind", func(t *testing.T) {
		_, err := engine.Reconcile(ctx, "bt-1", storage.DocKind("gl_entry"), "doc-1")
		assert.ErrorIs(t, err, ErrUnsupportedDocumentKind)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := engine.Reconcile(ctx, "bt-1", storage.KindPaymentEntry, "pe-gone")
		assert.ErrorIs(t, err, ErrUnknownDocument)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := engine.Reconcile(ctx, "bt-gone", storage.KindPaymentEntry, "pe-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("fully allocated transaction", func(t *testing.T) {
		repo.AddBankTransaction(&storage.BankTransaction{
			ID: "bt-done", BankAccountID: "acc-1", Date: day(2025, 3, 10),
			Credit: 100, Currency: "INR", Unallocated: 0, Submitted: true,
		})
		repo.AddPaymentEntry(&storage.PaymentEntry{
			ID: "pe-1", Company: testCompany, PostingDate: day(2025, 3, 5),
			PaidTo: testGL, ReceivedAmount: 100, Submitted: true,
		})
		_, err := engine.Reconcile(ctx, "bt-done", storage.KindPaymentEntry, "pe-1")
		assert.ErrorIs(t, err, ErrAlreadyReconciled)
	})
}

func TestReconcile_CommitExclusivity(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))
	seedCreditTx(repo, "bt-2", 500, day(2025, 3, 11))
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-contested", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 500, Submitted: true,
	})

	ctx := context.Background()
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i, txID := range []string{"bt-1", "bt-2"} {
		wg.Add(1)
		go func(i int, txID string) {
			defer wg.Done()
			_, results[i] = engine.Reconcile(ctx, txID, storage.KindPaymentEntry, "pe-contested")
		}(i, txID)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrAlreadyReconciled):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners, "exactly one commit wins")
	assert.Equal(t, 1, losers)
	assert.Len(t, repo.Links(), 1)
}

func TestFindCandidates_ConcurrentWithCommit(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 500, day(2025, 3, 10))
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-1", Company: testCompany, PostingDate: day(2025, 3, 5),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 500, Submitted: true,
	})

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, err := engine.FindCandidates(ctx, "bt-1", false)
			assert.NoError(t, err)
		}
	}()

	_, err := engine.Reconcile(ctx, "bt-1", storage.KindPaymentEntry, "pe-1")
	require.NoError(t, err)
	<-done

	tx, err := repo.GetBankTransaction(ctx, "bt-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, tx.Unallocated)
}

func TestReconcile_SalesInvoiceFallbackPool(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 1000, day(2025, 3, 10))

	repo.AddSalesInvoice(&storage.SalesInvoice{
		ID: "si-1", Company: testCompany, PostingDate: day(2025, 3, 2),
		CustomerName: "Initech", Currency: "INR", Status: "unpaid", Submitted: true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-a", Company: testCompany, PostingDate: day(2025, 3, 3),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 400, Submitted: true,
		ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-1",
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-b", Company: testCompany, PostingDate: day(2025, 3, 4),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 600, Submitted: true,
		ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-1",
	})

	ctx := context.Background()
	link, err := engine.Reconcile(ctx, "bt-1", storage.KindSalesInvoice, "si-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, link.AllocatedAmount, "pool cleared as one unit")

	for _, id := range []string{"pe-a", "pe-b"} {
		pe, err := repo.GetPaymentEntry(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, pe.ClearanceDate)
	}
}

func TestReconcile_SpentPoolIsConflict(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-1", 1500, day(2025, 3, 10))

	repo.AddSalesInvoice(&storage.SalesInvoice{
		ID: "si-1", Company: testCompany, PostingDate: day(2025, 3, 2),
		CustomerName: "Initech", Currency: "INR", Status: "unpaid", Submitted: true,
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-a", Company: testCompany, PostingDate: day(2025, 3, 3),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 400, Submitted: true,
		ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-1",
	})
	repo.AddPaymentEntry(&storage.PaymentEntry{
		ID: "pe-b", Company: testCompany, PostingDate: day(2025, 3, 4),
		PaidTo: testGL, PaidToCurrency: "INR", ReceivedAmount: 600, Submitted: true,
		ReferenceKind: storage.KindSalesInvoice, ReferenceName: "si-1",
	})

	ctx := context.Background()
	_, err := engine.Reconcile(ctx, "bt-1", storage.KindSalesInvoice, "si-1")
	require.NoError(t, err)

	// The pool is spent; a second commit is a lost race, not a bad request.
	_, err = engine.Reconcile(ctx, "bt-1", storage.KindSalesInvoice, "si-1")
	assert.ErrorIs(t, err, ErrAlreadyReconciled)
	assert.NotErrorIs(t, err, ErrNoMatchingLine)
	assert.Len(t, repo.Links(), 1)
}

func TestListOpenTransactions(t *testing.T) {
	engine, repo := newTestEngine(t)
	seedAccount(repo)
	seedCreditTx(repo, "bt-b", 100, day(2025, 3, 12))
	seedCreditTx(repo, "bt-a", 200, day(2025, 3, 1))
	repo.AddBankTransaction(&storage.BankTransaction{
		ID: "bt-settled", BankAccountID: "acc-1", Date: day(2025, 3, 2),
		Credit: 50, Currency: "INR", Unallocated: 0, Submitted: true,
	})

	open, err := engine.ListOpenTransactions(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "bt-a", open[0].ID)
	assert.Equal(t, "bt-b", open[1].ID)

	_, err = engine.ListOpenTransactions(context.Background(), "acc-missing")
	assert.ErrorIs(t, err, ErrInvalidQueryContext)
}
