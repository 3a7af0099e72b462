package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and sorts reads the way the SQLite queries do.
// One mutex guards every read and write so discovery can run while a commit
// is in flight; reads hand out copies, the stored structs are only touched
// under the lock.
type MockRepository struct {
	mu sync.Mutex

	accounts         map[string]*BankAccount
	transactions     map[string]*BankTransaction
	paymentEntries   map[string]*PaymentEntry
	journalEntries   map[string]*JournalEntry
	salesInvoices    map[string]*SalesInvoice
	purchaseInvoices map[string]*PurchaseInvoice
	expenseClaims    map[string]*ExpenseClaim
	links            []*ReconciliationLink

	// Hooks for test assertions
	ReconcileTxCalled bool

	// Error injection for testing error paths
	ReconcileTxErr error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts:         make(map[string]*BankAccount),
		transactions:     make(map[string]*BankTransaction),
		paymentEntries:   make(map[string]*PaymentEntry),
		journalEntries:   make(map[string]*JournalEntry),
		salesInvoices:    make(map[string]*SalesInvoice),
		purchaseInvoices: make(map[string]*PurchaseInvoice),
		expenseClaims:    make(map[string]*ExpenseClaim),
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// Copy helpers. Reads return copies so callers never share memory with the
// structs a reconcile transaction mutates.

func copyBankAccount(a *BankAccount) *BankAccount {
	c := *a
	return &c
}

func copyBankTransaction(t *BankTransaction) *BankTransaction {
	c := *t
	return &c
}

func copyPaymentEntry(p *PaymentEntry) *PaymentEntry {
	c := *p
	return &c
}

func copyJournalEntry(j *JournalEntry) *JournalEntry {
	c := *j
	c.Lines = append([]JournalEntryLine(nil), j.Lines...)
	return &c
}

func copySalesInvoice(inv *SalesInvoice) *SalesInvoice {
	c := *inv
	c.Payments = append([]SalesInvoicePayment(nil), inv.Payments...)
	return &c
}

func copyPurchaseInvoice(p *PurchaseInvoice) *PurchaseInvoice {
	c := *p
	return &c
}

func copyExpenseClaim(e *ExpenseClaim) *ExpenseClaim {
	c := *e
	return &c
}

// Test setup helpers

// AddBankAccount adds a bank account directly (for test setup)
func (m *MockRepository) AddBankAccount(acct *BankAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.ID] = acct
}

// AddBankTransaction adds a bank transaction directly (for test setup)
func (m *MockRepository) AddBankTransaction(t *BankTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.ID] = t
}

// AddPaymentEntry adds a payment entry directly (for test setup)
func (m *MockRepository) AddPaymentEntry(p *PaymentEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentEntries[p.ID] = p
}

// AddJournalEntry adds a journal entry with its lines (for test setup)
func (m *MockRepository) AddJournalEntry(j *JournalEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range j.Lines {
		j.Lines[i].JournalEntryID = j.ID
	}
	m.journalEntries[j.ID] = j
}

// AddSalesInvoice adds a sales invoice with its payment lines (for test setup)
func (m *MockRepository) AddSalesInvoice(inv *SalesInvoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range inv.Payments {
		inv.Payments[i].SalesInvoiceID = inv.ID
	}
	m.salesInvoices[inv.ID] = inv
}

// AddPurchaseInvoice adds a purchase invoice directly (for test setup)
func (m *MockRepository) AddPurchaseInvoice(p *PurchaseInvoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchaseInvoices[p.ID] = p
}

// AddExpenseClaim adds an expense claim directly (for test setup)
func (m *MockRepository) AddExpenseClaim(e *ExpenseClaim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenseClaims[e.ID] = e
}

// Links returns all recorded reconciliation links (for assertions)
func (m *MockRepository) Links() []*ReconciliationLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ReconciliationLink, len(m.links))
	copy(out, m.links)
	return out
}

// ----------------------------------------------------------------
// TransactionReader
// ----------------------------------------------------------------

func (m *MockRepository) GetBankAccount(_ context.Context, id string) (*BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBankAccount(acct), nil
}

func (m *MockRepository) GetBankTransaction(_ context.Context, id string) (*BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBankTransactionLocked(id)
}

func (m *MockRepository) getBankTransactionLocked(id string) (*BankTransaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBankTransaction(t), nil
}

func (m *MockRepository) ListOpenTransactions(_ context.Context, bankAccountID string) ([]*BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*BankTransaction
	for _, t := range m.transactions {
		if t.BankAccountID == bankAccountID && t.Submitted && t.Unallocated > 0 {
			result = append(result, copyBankTransaction(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ----------------------------------------------------------------
// DocumentReader
// ----------------------------------------------------------------

func sortByPostingDate[T any](items []*T, date func(*T) time.Time, id func(*T) string) {
	sort.Slice(items, func(i, j int) bool {
		di, dj := date(items[i]), date(items[j])
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return id(items[i]) < id(items[j])
	})
}

func (m *MockRepository) OpenPaymentEntries(_ context.Context, glAccount, company string) ([]*PaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPaymentEntriesLocked(glAccount, company)
}

func (m *MockRepository) openPaymentEntriesLocked(glAccount, company string) ([]*PaymentEntry, error) {
	var result []*PaymentEntry
	for _, p := range m.paymentEntries {
		if p.Submitted && p.ClearanceDate == nil && p.Company == company &&
			(p.PaidTo == glAccount || p.PaidFrom == glAccount) {
			result = append(result, copyPaymentEntry(p))
		}
	}
	sortByPostingDate(result,
		func(p *PaymentEntry) time.Time { return p.PostingDate },
		func(p *PaymentEntry) string { return p.ID })
	return result, nil
}

func (m *MockRepository) PaymentEntriesByReference(_ context.Context, glAccount string, refKind DocKind, refName string) ([]*PaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paymentEntriesByReferenceLocked(glAccount, refKind, refName)
}

// paymentEntriesByReferenceLocked keeps cleared entries in the result, like
// the SQL query: the committer needs them to tell a spent pool from a
// missing one.
func (m *MockRepository) paymentEntriesByReferenceLocked(glAccount string, refKind DocKind, refName string) ([]*PaymentEntry, error) {
	var result []*PaymentEntry
	for _, p := range m.paymentEntries {
		if p.Submitted &&
			p.ReferenceKind == refKind && p.ReferenceName == refName &&
			(p.PaidTo == glAccount || p.PaidFrom == glAccount) {
			result = append(result, copyPaymentEntry(p))
		}
	}
	sortByPostingDate(result,
		func(p *PaymentEntry) time.Time { return p.PostingDate },
		func(p *PaymentEntry) string { return p.ID })
	return result, nil
}

func (m *MockRepository) OpenJournalEntries(_ context.Context, glAccount, company string) ([]*JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openJournalEntriesLocked(glAccount, company)
}

func (m *MockRepository) openJournalEntriesLocked(glAccount, company string) ([]*JournalEntry, error) {
	var result []*JournalEntry
	for _, j := range m.journalEntries {
		if !j.Submitted || j.Company != company {
			continue
		}
		for _, line := range j.Lines {
			if line.Account == glAccount && line.ClearanceDate == nil {
				result = append(result, copyJournalEntry(j))
				break
			}
		}
	}
	sortByPostingDate(result,
		func(j *JournalEntry) time.Time { return j.PostingDate },
		func(j *JournalEntry) string { return j.ID })
	return result, nil
}

func (m *MockRepository) OpenSalesInvoices(_ context.Context, company string) ([]*SalesInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openSalesInvoicesLocked(company)
}

func (m *MockRepository) openSalesInvoicesLocked(company string) ([]*SalesInvoice, error) {
	var result []*SalesInvoice
	for _, inv := range m.salesInvoices {
		if inv.Submitted && inv.Company == company && inv.Status != "paid" {
			result = append(result, copySalesInvoice(inv))
		}
	}
	sortByPostingDate(result,
		func(s *SalesInvoice) time.Time { return s.PostingDate },
		func(s *SalesInvoice) string { return s.ID })
	return result, nil
}

func (m *MockRepository) OpenPurchaseInvoices(_ context.Context, company string) ([]*PurchaseInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPurchaseInvoicesLocked(company)
}

func (m *MockRepository) openPurchaseInvoicesLocked(company string) ([]*PurchaseInvoice, error) {
	var result []*PurchaseInvoice
	for _, p := range m.purchaseInvoices {
		if p.Submitted && p.ClearanceDate == nil && p.IsPaid && p.Company == company {
			result = append(result, copyPurchaseInvoice(p))
		}
	}
	sortByPostingDate(result,
		func(p *PurchaseInvoice) time.Time { return p.PostingDate },
		func(p *PurchaseInvoice) string { return p.ID })
	return result, nil
}

func (m *MockRepository) OpenExpenseClaims(_ context.Context, company string) ([]*ExpenseClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openExpenseClaimsLocked(company)
}

func (m *MockRepository) openExpenseClaimsLocked(company string) ([]*ExpenseClaim, error) {
	var result []*ExpenseClaim
	for _, e := range m.expenseClaims {
		if e.Submitted && e.ClearanceDate == nil && e.IsPaid && e.Company == company {
			result = append(result, copyExpenseClaim(e))
		}
	}
	sortByPostingDate(result,
		func(e *ExpenseClaim) time.Time { return e.PostingDate },
		func(e *ExpenseClaim) string { return e.ID })
	return result, nil
}

func (m *MockRepository) GetPaymentEntry(_ context.Context, id string) (*PaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPaymentEntryLocked(id)
}

func (m *MockRepository) getPaymentEntryLocked(id string) (*PaymentEntry, error) {
	p, ok := m.paymentEntries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPaymentEntry(p), nil
}

func (m *MockRepository) GetJournalEntry(_ context.Context, id string) (*JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getJournalEntryLocked(id)
}

func (m *MockRepository) getJournalEntryLocked(id string) (*JournalEntry, error) {
	j, ok := m.journalEntries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJournalEntry(j), nil
}

func (m *MockRepository) GetJournalEntryLine(_ context.Context, id string) (*JournalEntryLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getJournalEntryLineLocked(id)
}

func (m *MockRepository) getJournalEntryLineLocked(id string) (*JournalEntryLine, error) {
	for _, j := range m.journalEntries {
		for i := range j.Lines {
			if j.Lines[i].ID == id {
				line := j.Lines[i]
				return &line, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *MockRepository) GetSalesInvoice(_ context.Context, id string) (*SalesInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSalesInvoiceLocked(id)
}

func (m *MockRepository) getSalesInvoiceLocked(id string) (*SalesInvoice, error) {
	inv, ok := m.salesInvoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySalesInvoice(inv), nil
}

func (m *MockRepository) GetSalesInvoicePayment(_ context.Context, id string) (*SalesInvoicePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSalesInvoicePaymentLocked(id)
}

func (m *MockRepository) getSalesInvoicePaymentLocked(id string) (*SalesInvoicePayment, error) {
	for _, inv := range m.salesInvoices {
		for i := range inv.Payments {
			if inv.Payments[i].ID == id {
				line := inv.Payments[i]
				return &line, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *MockRepository) GetPurchaseInvoice(_ context.Context, id string) (*PurchaseInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPurchaseInvoiceLocked(id)
}

func (m *MockRepository) getPurchaseInvoiceLocked(id string) (*PurchaseInvoice, error) {
	p, ok := m.purchaseInvoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPurchaseInvoice(p), nil
}

func (m *MockRepository) GetExpenseClaim(_ context.Context, id string) (*ExpenseClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getExpenseClaimLocked(id)
}

func (m *MockRepository) getExpenseClaimLocked(id string) (*ExpenseClaim, error) {
	e, ok := m.expenseClaims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyExpenseClaim(e), nil
}

// ----------------------------------------------------------------
// Reconcile transaction
// ----------------------------------------------------------------

// mockReconcileOps buffers mutations and applies them only when the callback
// succeeds, mirroring the all-or-nothing behavior of the SQL transaction.
// The repository mutex is held for the whole transaction, so its read methods
// shadow the public ones to avoid re-locking.
type mockReconcileOps struct {
	repo *MockRepository

	pendingClears      []func()
	pendingClearTarget map[string]bool // table+id already cleared in this tx
	pendingLinks       []*ReconciliationLink
	pendingUnallocated map[string]float64
}

var _ ReconcileOps = (*mockReconcileOps)(nil)

// WithinReconcileTx serializes commits with the repository mutex and applies
// buffered mutations only on success.
func (m *MockRepository) WithinReconcileTx(_ context.Context, fn func(ops ReconcileOps) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReconcileTxCalled = true
	if m.ReconcileTxErr != nil {
		return m.ReconcileTxErr
	}

	ops := &mockReconcileOps{
		repo:               m,
		pendingClearTarget: make(map[string]bool),
		pendingUnallocated: make(map[string]float64),
	}
	if err := fn(ops); err != nil {
		return err
	}

	for _, apply := range ops.pendingClears {
		apply()
	}
	m.links = append(m.links, ops.pendingLinks...)
	for id, amount := range ops.pendingUnallocated {
		if t, ok := m.transactions[id]; ok {
			t.Unallocated = amount
		}
	}
	return nil
}

// In-transaction reads. The lock is already held by WithinReconcileTx.

func (o *mockReconcileOps) GetBankTransaction(_ context.Context, id string) (*BankTransaction, error) {
	return o.repo.getBankTransactionLocked(id)
}

func (o *mockReconcileOps) OpenPaymentEntries(_ context.Context, glAccount, company string) ([]*PaymentEntry, error) {
	return o.repo.openPaymentEntriesLocked(glAccount, company)
}

func (o *mockReconcileOps) PaymentEntriesByReference(_ context.Context, glAccount string, refKind DocKind, refName string) ([]*PaymentEntry, error) {
	return o.repo.paymentEntriesByReferenceLocked(glAccount, refKind, refName)
}

func (o *mockReconcileOps) OpenJournalEntries(_ context.Context, glAccount, company string) ([]*JournalEntry, error) {
	return o.repo.openJournalEntriesLocked(glAccount, company)
}

func (o *mockReconcileOps) OpenSalesInvoices(_ context.Context, company string) ([]*SalesInvoice, error) {
	return o.repo.openSalesInvoicesLocked(company)
}

func (o *mockReconcileOps) OpenPurchaseInvoices(_ context.Context, company string) ([]*PurchaseInvoice, error) {
	return o.repo.openPurchaseInvoicesLocked(company)
}

func (o *mockReconcileOps) OpenExpenseClaims(_ context.Context, company string) ([]*ExpenseClaim, error) {
	return o.repo.openExpenseClaimsLocked(company)
}

func (o *mockReconcileOps) GetPaymentEntry(_ context.Context, id string) (*PaymentEntry, error) {
	return o.repo.getPaymentEntryLocked(id)
}

func (o *mockReconcileOps) GetJournalEntry(_ context.Context, id string) (*JournalEntry, error) {
	return o.repo.getJournalEntryLocked(id)
}

func (o *mockReconcileOps) GetJournalEntryLine(_ context.Context, id string) (*JournalEntryLine, error) {
	return o.repo.getJournalEntryLineLocked(id)
}

func (o *mockReconcileOps) GetSalesInvoice(_ context.Context, id string) (*SalesInvoice, error) {
	return o.repo.getSalesInvoiceLocked(id)
}

func (o *mockReconcileOps) GetSalesInvoicePayment(_ context.Context, id string) (*SalesInvoicePayment, error) {
	return o.repo.getSalesInvoicePaymentLocked(id)
}

func (o *mockReconcileOps) GetPurchaseInvoice(_ context.Context, id string) (*PurchaseInvoice, error) {
	return o.repo.getPurchaseInvoiceLocked(id)
}

func (o *mockReconcileOps) GetExpenseClaim(_ context.Context, id string) (*ExpenseClaim, error) {
	return o.repo.getExpenseClaimLocked(id)
}

// In-transaction writes, buffered until the callback succeeds.

func (o *mockReconcileOps) clear(table, id string, current **time.Time, date time.Time) error {
	key := table + "/" + id
	if *current != nil || o.pendingClearTarget[key] {
		return ErrAlreadyCleared
	}
	o.pendingClearTarget[key] = true
	target := current
	d := date
	o.pendingClears = append(o.pendingClears, func() { *target = &d })
	return nil
}

func (o *mockReconcileOps) ClearPaymentEntry(_ context.Context, id string, date time.Time) error {
	p, ok := o.repo.paymentEntries[id]
	if !ok {
		return ErrNotFound
	}
	return o.clear("payment_entries", id, &p.ClearanceDate, date)
}

func (o *mockReconcileOps) ClearJournalEntryLine(_ context.Context, id string, date time.Time) error {
	for _, j := range o.repo.journalEntries {
		for i := range j.Lines {
			if j.Lines[i].ID == id {
				return o.clear("journal_entry_lines", id, &j.Lines[i].ClearanceDate, date)
			}
		}
	}
	return ErrNotFound
}

func (o *mockReconcileOps) ClearSalesInvoicePayment(_ context.Context, id string, date time.Time) error {
	for _, inv := range o.repo.salesInvoices {
		for i := range inv.Payments {
			if inv.Payments[i].ID == id {
				return o.clear("sales_invoice_payments", id, &inv.Payments[i].ClearanceDate, date)
			}
		}
	}
	return ErrNotFound
}

func (o *mockReconcileOps) ClearPurchaseInvoice(_ context.Context, id string, date time.Time) error {
	p, ok := o.repo.purchaseInvoices[id]
	if !ok {
		return ErrNotFound
	}
	return o.clear("purchase_invoices", id, &p.ClearanceDate, date)
}

func (o *mockReconcileOps) ClearExpenseClaim(_ context.Context, id string, date time.Time) error {
	e, ok := o.repo.expenseClaims[id]
	if !ok {
		return ErrNotFound
	}
	return o.clear("expense_claims", id, &e.ClearanceDate, date)
}

func (o *mockReconcileOps) AddLink(_ context.Context, link *ReconciliationLink) error {
	copied := *link
	o.pendingLinks = append(o.pendingLinks, &copied)
	return nil
}

func (o *mockReconcileOps) SetUnallocated(_ context.Context, bankTransactionID string, amount float64) error {
	if _, ok := o.repo.transactions[bankTransactionID]; !ok {
		return ErrNotFound
	}
	o.pendingUnallocated[bankTransactionID] = amount
	return nil
}

// ----------------------------------------------------------------
// Links and stats
// ----------------------------------------------------------------

func (m *MockRepository) ListLinks(_ context.Context, bankTransactionID string) ([]*ReconciliationLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*ReconciliationLink
	for _, l := range m.links {
		if l.BankTransactionID == bankTransactionID {
			copied := *l
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockRepository) GetStats(_ context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{
		LinksByKind:     make(map[DocKind]int),
		AllocatedByKind: make(map[DocKind]float64),
	}
	for _, t := range m.transactions {
		if !t.Submitted {
			continue
		}
		if t.Unallocated > 0 {
			stats.OpenTransactions++
			stats.TotalUnallocated += t.Unallocated
		} else {
			stats.ReconciledTransactions++
		}
	}
	for _, l := range m.links {
		stats.LinksByKind[l.DocumentKind]++
		stats.AllocatedByKind[l.DocumentKind] += l.AllocatedAmount
		stats.TotalLinks++
	}
	return stats, nil
}
