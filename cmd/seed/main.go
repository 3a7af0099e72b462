// Loads a small demo ledger into a fresh database so the server and
// dashboard can be exercised locally without an upstream accounting system.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/config"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/logging"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

const (
	company   = "Acme Ltd"
	glAccount = "HDFC Bank - AL"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(configPath)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "seed")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if err := seed(context.Background(), store, logger); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	logger.Info("demo ledger loaded", "database", cfg.Storage.DatabasePath)
}

func seed(ctx context.Context, store *storage.Storage, logger *slog.Logger) error {
	if err := store.InsertBankAccount(ctx, &storage.BankAccount{
		ID:        "acc-hdfc",
		Name:      "HDFC Current",
		Company:   company,
		GLAccount: glAccount,
	}); err != nil {
		return err
	}

	transactions := []*storage.BankTransaction{
		{ID: "bt-0001", BankAccountID: "acc-hdfc", Date: day(2025, 3, 10), Description: "NEFT UTR 99123 INITECH", Credit: 500, Currency: "INR", Unallocated: 500, Submitted: true},
		{ID: "bt-0002", BankAccountID: "acc-hdfc", Date: day(2025, 3, 11), Description: "CHQ 001122 PAPER CO", Debit: 150, Currency: "INR", Unallocated: 150, Submitted: true},
		{ID: "bt-0003", BankAccountID: "acc-hdfc", Date: day(2025, 3, 12), Description: "IMPS REIMB R BANERJEE", Debit: 75, Currency: "INR", Unallocated: 75, Submitted: true},
		{ID: "bt-0004", BankAccountID: "acc-hdfc", Date: day(2025, 3, 14), Description: "NEFT UTR 99456 GLOBEX POOLED", Credit: 1000, Currency: "INR", Unallocated: 1000, Submitted: true},
	}
	for _, tx := range transactions {
		if err := store.InsertBankTransaction(ctx, tx); err != nil {
			return err
		}
	}

	// A direct payment matching bt-0001.
	if err := store.InsertPaymentEntry(ctx, &storage.PaymentEntry{
		ID: "PE-2025-0001", Company: company, PostingDate: day(2025, 3, 9),
		Party: "Initech", PartyType: "Customer", ReferenceNo: "UTR99123",
		PaidFrom: "Debtors - AL", PaidTo: glAccount, PaidToCurrency: "INR",
		ReceivedAmount: 500, Submitted: true,
	}); err != nil {
		return err
	}

	// A two-line deposit voucher, reconcilable as one composite.
	if err := store.InsertJournalEntry(ctx, &storage.JournalEntry{
		ID: "JE-2025-0001", Company: company, PostingDate: day(2025, 3, 8),
		ChequeNo: "334455", PayToRecdFrom: "Initech", Submitted: true,
		Lines: []storage.JournalEntryLine{
			{ID: "JE-2025-0001-1", LineNo: 1, Account: glAccount, Debit: 200, Currency: "INR"},
			{ID: "JE-2025-0001-2", LineNo: 2, Account: glAccount, Debit: 300, Currency: "INR"},
			{ID: "JE-2025-0001-3", LineNo: 3, Account: "Debtors - AL", Credit: 500, Currency: "INR"},
		},
	}); err != nil {
		return err
	}

	// An invoice settled at the counter, straight into the bank account.
	if err := store.InsertSalesInvoice(ctx, &storage.SalesInvoice{
		ID: "SI-2025-0001", Company: company, PostingDate: day(2025, 3, 7),
		Customer: "CUST-001", CustomerName: "Initech", PONo: "PO-7788",
		Currency: "INR", Status: "unpaid", Submitted: true,
		Payments: []storage.SalesInvoicePayment{
			{ID: "SI-2025-0001-P1", LineNo: 1, Account: glAccount, Amount: 500, ModeOfPayment: "Wire Transfer"},
		},
	}); err != nil {
		return err
	}

	// An invoice settled by two separate payments; surfaces as a pooled
	// composite for bt-0004.
	if err := store.InsertSalesInvoice(ctx, &storage.SalesInvoice{
		ID: "SI-2025-0002", Company: company, PostingDate: day(2025, 3, 6),
		Customer: "CUST-002", CustomerName: "Globex", Currency: "INR",
		Status: "unpaid", Submitted: true,
	}); err != nil {
		return err
	}
	pooled := []*storage.PaymentEntry{
		{
			ID: "PE-2025-0002", Company: company, PostingDate: day(2025, 3, 12),
			Party: "Globex", PartyType: "Customer", ReferenceNo: "UTR99456-A",
			PaidFrom: "Debtors - AL", PaidTo: glAccount, PaidToCurrency: "INR",
			ReceivedAmount: 400, Submitted: true,
			ReferenceKind: storage.KindSalesInvoice, ReferenceName: "SI-2025-0002",
		},
		{
			ID: "PE-2025-0003", Company: company, PostingDate: day(2025, 3, 13),
			Party: "Globex", PartyType: "Customer", ReferenceNo: "UTR99456-B",
			PaidFrom: "Debtors - AL", PaidTo: glAccount, PaidToCurrency: "INR",
			ReceivedAmount: 600, Submitted: true,
			ReferenceKind: storage.KindSalesInvoice, ReferenceName: "SI-2025-0002",
		},
	}
	for _, p := range pooled {
		if err := store.InsertPaymentEntry(ctx, p); err != nil {
			return err
		}
	}

	// A supplier invoice paid straight from the bank account (bt-0002).
	if err := store.InsertPurchaseInvoice(ctx, &storage.PurchaseInvoice{
		ID: "PI-2025-0001", Company: company, PostingDate: day(2025, 3, 5),
		SupplierName: "Paper Co", BillNo: "BILL-4455", Currency: "INR",
		PaidAmount: 150, CashBankAccount: glAccount, IsPaid: true, Submitted: true,
	}); err != nil {
		return err
	}

	// An employee reimbursement paid from the bank account (bt-0003).
	if err := store.InsertExpenseClaim(ctx, &storage.ExpenseClaim{
		ID: "EC-2025-0001", Company: company, PostingDate: day(2025, 3, 4),
		EmployeeName: "R. Banerjee", BillNo: "EXP-1102", Currency: "INR",
		SanctionedTotal: 75, PaymentAccount: glAccount, IsPaid: true, Submitted: true,
	}); err != nil {
		return err
	}

	logger.Info("seeded",
		"transactions", len(transactions),
		"payment_entries", 3,
		"journal_entries", 1,
		"sales_invoices", 2,
		"purchase_invoices", 1,
		"expense_claims", 1)
	return nil
}
