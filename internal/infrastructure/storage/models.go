package storage

import "time"

// DocKind identifies one of the supported reconcilable document kinds.
type DocKind string

const (
	KindPaymentEntry    DocKind = "payment_entry"
	KindJournalEntry    DocKind = "journal_entry"
	KindSalesInvoice    DocKind = "sales_invoice"
	KindPurchaseInvoice DocKind = "purchase_invoice"
	KindExpenseClaim    DocKind = "expense_claim"
)

// AllKinds lists the supported kinds in discovery order. Ranking tie-breaks
// depend on this order, so it must stay stable.
var AllKinds = []DocKind{
	KindPaymentEntry,
	KindJournalEntry,
	KindSalesInvoice,
	KindPurchaseInvoice,
	KindExpenseClaim,
}

// Valid reports whether k is one of the supported document kinds.
func (k DocKind) Valid() bool {
	switch k {
	case KindPaymentEntry, KindJournalEntry, KindSalesInvoice, KindPurchaseInvoice, KindExpenseClaim:
		return true
	}
	return false
}

// BankAccount binds a bank account to its general-ledger account and company.
// The GL account is the matching key for line-level candidates.
type BankAccount struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Company   string `json:"company"`
	GLAccount string `json:"gl_account"`
}

// BankTransaction is one imported statement row awaiting allocation.
// Exactly one of Debit/Credit is expected to be non-zero.
type BankTransaction struct {
	ID            string    `json:"id"`
	BankAccountID string    `json:"bank_account_id"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	Debit         float64   `json:"debit"`
	Credit        float64   `json:"credit"`
	Currency      string    `json:"currency"`
	Unallocated   float64   `json:"unallocated_amount"`
	Submitted     bool      `json:"submitted"`
}

// IsCredit reports whether the transaction is money in.
func (t *BankTransaction) IsCredit() bool { return t.Credit > 0 }

// Amount returns the gross transaction amount regardless of direction.
func (t *BankTransaction) Amount() float64 { return t.Debit + t.Credit }

// PaymentEntry is a standalone payment document. PaidFrom/PaidTo carry the
// GL accounts on each side; ReferenceKind/ReferenceName optionally link the
// payment to the invoice or claim it settles.
type PaymentEntry struct {
	ID               string     `json:"id"`
	Company          string     `json:"company"`
	PostingDate      time.Time  `json:"posting_date"`
	Party            string     `json:"party"`
	PartyType        string     `json:"party_type"`
	ReferenceNo      string     `json:"reference_no"`
	ReferenceDate    *time.Time `json:"reference_date,omitempty"`
	Remarks          string     `json:"remarks"`
	PaidFrom         string     `json:"paid_from"`
	PaidFromCurrency string     `json:"paid_from_currency"`
	PaidAmount       float64    `json:"paid_amount"`
	PaidTo           string     `json:"paid_to"`
	PaidToCurrency   string     `json:"paid_to_currency"`
	ReceivedAmount   float64    `json:"received_amount"`
	ReferenceKind    DocKind    `json:"reference_kind,omitempty"`
	ReferenceName    string     `json:"reference_name,omitempty"`
	Submitted        bool       `json:"submitted"`
	ClearanceDate    *time.Time `json:"clearance_date,omitempty"`
}

// JournalEntry is a multi-line accounting voucher. Lines are kept in
// document order; that order is preserved in composite candidates.
type JournalEntry struct {
	ID            string     `json:"id"`
	Company       string     `json:"company"`
	PostingDate   time.Time  `json:"posting_date"`
	ChequeNo      string     `json:"cheque_no"`
	ChequeDate    *time.Time `json:"cheque_date,omitempty"`
	PayToRecdFrom string     `json:"pay_to_recd_from"`
	UserRemark    string     `json:"user_remark"`
	Remark        string     `json:"remark"`
	Submitted     bool       `json:"submitted"`

	Lines []JournalEntryLine `json:"lines"`
}

// JournalEntryLine is one account row of a journal entry. The clearance date
// lives on the line, not the document.
type JournalEntryLine struct {
	ID             string     `json:"id"`
	JournalEntryID string     `json:"journal_entry_id"`
	LineNo         int        `json:"line_no"`
	Account        string     `json:"account"`
	Party          string     `json:"party"`
	AgainstAccount string     `json:"against_account"`
	Debit          float64    `json:"debit"`
	Credit         float64    `json:"credit"`
	Currency       string     `json:"currency"`
	UserRemark     string     `json:"user_remark"`
	ReferenceName  string     `json:"reference_name"`
	ClearanceDate  *time.Time `json:"clearance_date,omitempty"`
}

// SalesInvoice is an outgoing invoice; its internal payment lines (POS-style
// payments) carry the clearance dates.
type SalesInvoice struct {
	ID           string    `json:"id"`
	Company      string    `json:"company"`
	PostingDate  time.Time `json:"posting_date"`
	Customer     string    `json:"customer"`
	CustomerName string    `json:"customer_name"`
	Remarks      string    `json:"remarks"`
	PONo         string    `json:"po_no"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"` // "unpaid", "partially_paid", "paid"
	Submitted    bool      `json:"submitted"`

	Payments []SalesInvoicePayment `json:"payments"`
}

// SalesInvoicePayment is one internal payment line of a sales invoice.
type SalesInvoicePayment struct {
	ID             string     `json:"id"`
	SalesInvoiceID string     `json:"sales_invoice_id"`
	LineNo         int        `json:"line_no"`
	Account        string     `json:"account"`
	Amount         float64    `json:"amount"`
	ModeOfPayment  string     `json:"mode_of_payment"`
	ClearanceDate  *time.Time `json:"clearance_date,omitempty"`
}

// PurchaseInvoice is an incoming invoice paid directly from a cash/bank
// account. The clearance date lives on the document itself.
type PurchaseInvoice struct {
	ID              string     `json:"id"`
	Company         string     `json:"company"`
	PostingDate     time.Time  `json:"posting_date"`
	SupplierName    string     `json:"supplier_name"`
	BillNo          string     `json:"bill_no"`
	Currency        string     `json:"currency"`
	PaidAmount      float64    `json:"paid_amount"`
	CashBankAccount string     `json:"cash_bank_account"`
	IsPaid          bool       `json:"is_paid"`
	Submitted       bool       `json:"submitted"`
	ClearanceDate   *time.Time `json:"clearance_date,omitempty"`
}

// ExpenseClaim is an employee reimbursement. PaymentAccount is the GL account
// the claim was paid out of.
type ExpenseClaim struct {
	ID              string     `json:"id"`
	Company         string     `json:"company"`
	PostingDate     time.Time  `json:"posting_date"`
	EmployeeName    string     `json:"employee_name"`
	BillNo          string     `json:"bill_no"`
	SanctionedTotal float64    `json:"total_sanctioned_amount"`
	Currency        string     `json:"currency"`
	PaymentAccount  string     `json:"payment_account"`
	IsPaid          bool       `json:"is_paid"`
	Submitted       bool       `json:"submitted"`
	ClearanceDate   *time.Time `json:"clearance_date,omitempty"`
}

// ReconciliationLink is the durable result of one commit: it pairs a bank
// transaction with a cleared document (or document line).
type ReconciliationLink struct {
	ID                string    `json:"id"`
	BankTransactionID string    `json:"bank_transaction_id"`
	DocumentKind      DocKind   `json:"document_kind"`
	DocumentID        string    `json:"document_id"`
	AllocatedAmount   float64   `json:"allocated_amount"`
	CreatedAt         time.Time `json:"created_at"`
}

// Stats summarizes the reconciliation state of the ledger for dashboards.
type Stats struct {
	OpenTransactions       int                 `json:"open_transactions"`
	ReconciledTransactions int                 `json:"reconciled_transactions"`
	TotalUnallocated       float64             `json:"total_unallocated"`
	TotalLinks             int                 `json:"total_links"`
	LinksByKind            map[DocKind]int     `json:"links_by_kind"`
	AllocatedByKind        map[DocKind]float64 `json:"allocated_by_kind"`
}
