package storage

import (
	"context"
	"database/sql"
	"time"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so the same query code
// serves the auto-commit store and the reconcile transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier implements the read side against any dbtx.
type querier struct {
	db dbtx
}

// ----------------------------------------------------------------
// Bank accounts and transactions
// ----------------------------------------------------------------

func (q *querier) GetBankAccount(ctx context.Context, id string) (*BankAccount, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, company, gl_account
		FROM bank_accounts WHERE id = ?
	`, id)

	acct := &BankAccount{}
	err := row.Scan(&acct.ID, &acct.Name, &acct.Company, &acct.GLAccount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

const bankTransactionColumns = `id, bank_account_id, date, description, debit, credit,
	currency, unallocated_amount, submitted`

func scanBankTransaction(row interface{ Scan(...interface{}) error }) (*BankTransaction, error) {
	t := &BankTransaction{}
	err := row.Scan(
		&t.ID,
		&t.BankAccountID,
		&t.Date,
		&t.Description,
		&t.Debit,
		&t.Credit,
		&t.Currency,
		&t.Unallocated,
		&t.Submitted,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (q *querier) GetBankTransaction(ctx context.Context, id string) (*BankTransaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+bankTransactionColumns+`
		FROM bank_transactions WHERE id = ?
	`, id)

	t, err := scanBankTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (q *querier) ListOpenTransactions(ctx context.Context, bankAccountID string) ([]*BankTransaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+bankTransactionColumns+`
		FROM bank_transactions
		WHERE bank_account_id = ? AND submitted = 1 AND unallocated_amount > 0
		ORDER BY date ASC, id ASC
	`, bankAccountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*BankTransaction
	for rows.Next() {
		t, err := scanBankTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// ----------------------------------------------------------------
// Payment entries
// ----------------------------------------------------------------

const paymentEntryColumns = `id, company, posting_date, party, party_type, reference_no,
	reference_date, remarks, paid_from, paid_from_currency, paid_amount,
	paid_to, paid_to_currency, received_amount, reference_kind, reference_name,
	submitted, clearance_date`

func scanPaymentEntry(row interface{ Scan(...interface{}) error }) (*PaymentEntry, error) {
	p := &PaymentEntry{}
	var refDate, clearance sql.NullTime
	var refKind string
	err := row.Scan(
		&p.ID,
		&p.Company,
		&p.PostingDate,
		&p.Party,
		&p.PartyType,
		&p.ReferenceNo,
		&refDate,
		&p.Remarks,
		&p.PaidFrom,
		&p.PaidFromCurrency,
		&p.PaidAmount,
		&p.PaidTo,
		&p.PaidToCurrency,
		&p.ReceivedAmount,
		&refKind,
		&p.ReferenceName,
		&p.Submitted,
		&clearance,
	)
	if err != nil {
		return nil, err
	}
	p.ReferenceKind = DocKind(refKind)
	p.ReferenceDate = nullTimePtr(refDate)
	p.ClearanceDate = nullTimePtr(clearance)
	return p, nil
}

func (q *querier) queryPaymentEntries(ctx context.Context, where string, args ...interface{}) ([]*PaymentEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+paymentEntryColumns+`
		FROM payment_entries
		WHERE `+where+`
		ORDER BY posting_date ASC, id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*PaymentEntry
	for rows.Next() {
		p, err := scanPaymentEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (q *querier) OpenPaymentEntries(ctx context.Context, glAccount, company string) ([]*PaymentEntry, error) {
	return q.queryPaymentEntries(ctx,
		`submitted = 1 AND clearance_date IS NULL AND company = ?
		 AND (paid_to = ? OR paid_from = ?)`,
		company, glAccount, glAccount)
}

func (q *querier) PaymentEntriesByReference(ctx context.Context, glAccount string, refKind DocKind, refName string) ([]*PaymentEntry, error) {
	return q.queryPaymentEntries(ctx,
		`submitted = 1
		 AND reference_kind = ? AND reference_name = ?
		 AND (paid_to = ? OR paid_from = ?)`,
		string(refKind), refName, glAccount, glAccount)
}

func (q *querier) GetPaymentEntry(ctx context.Context, id string) (*PaymentEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+paymentEntryColumns+`
		FROM payment_entries WHERE id = ?
	`, id)

	p, err := scanPaymentEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ----------------------------------------------------------------
// Journal entries
// ----------------------------------------------------------------

const journalEntryColumns = `id, company, posting_date, cheque_no, cheque_date,
	pay_to_recd_from, user_remark, remark, submitted`

func scanJournalEntry(row interface{ Scan(...interface{}) error }) (*JournalEntry, error) {
	j := &JournalEntry{}
	var chequeDate sql.NullTime
	err := row.Scan(
		&j.ID,
		&j.Company,
		&j.PostingDate,
		&j.ChequeNo,
		&chequeDate,
		&j.PayToRecdFrom,
		&j.UserRemark,
		&j.Remark,
		&j.Submitted,
	)
	if err != nil {
		return nil, err
	}
	j.ChequeDate = nullTimePtr(chequeDate)
	return j, nil
}

const journalEntryLineColumns = `id, journal_entry_id, line_no, account, party,
	against_account, debit, credit, currency, user_remark, reference_name, clearance_date`

func scanJournalEntryLine(row interface{ Scan(...interface{}) error }) (*JournalEntryLine, error) {
	l := &JournalEntryLine{}
	var clearance sql.NullTime
	err := row.Scan(
		&l.ID,
		&l.JournalEntryID,
		&l.LineNo,
		&l.Account,
		&l.Party,
		&l.AgainstAccount,
		&l.Debit,
		&l.Credit,
		&l.Currency,
		&l.UserRemark,
		&l.ReferenceName,
		&clearance,
	)
	if err != nil {
		return nil, err
	}
	l.ClearanceDate = nullTimePtr(clearance)
	return l, nil
}

func (q *querier) loadJournalLines(ctx context.Context, journalEntryID string) ([]JournalEntryLine, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+journalEntryLineColumns+`
		FROM journal_entry_lines
		WHERE journal_entry_id = ?
		ORDER BY line_no ASC
	`, journalEntryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []JournalEntryLine
	for rows.Next() {
		l, err := scanJournalEntryLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

func (q *querier) OpenJournalEntries(ctx context.Context, glAccount, company string) ([]*JournalEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT je.id, je.company, je.posting_date, je.cheque_no, je.cheque_date,
			je.pay_to_recd_from, je.user_remark, je.remark, je.submitted
		FROM journal_entries je
		JOIN journal_entry_lines jel ON jel.journal_entry_id = je.id
		WHERE je.submitted = 1 AND je.company = ?
			AND jel.account = ? AND jel.clearance_date IS NULL
		ORDER BY je.posting_date ASC, je.id ASC
	`, company, glAccount)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*JournalEntry
	for rows.Next() {
		j, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, j := range entries {
		lines, err := q.loadJournalLines(ctx, j.ID)
		if err != nil {
			return nil, err
		}
		j.Lines = lines
	}
	return entries, nil
}

func (q *querier) GetJournalEntry(ctx context.Context, id string) (*JournalEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+journalEntryColumns+`
		FROM journal_entries WHERE id = ?
	`, id)

	j, err := scanJournalEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	lines, err := q.loadJournalLines(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	j.Lines = lines
	return j, nil
}

func (q *querier) GetJournalEntryLine(ctx context.Context, id string) (*JournalEntryLine, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+journalEntryLineColumns+`
		FROM journal_entry_lines WHERE id = ?
	`, id)

	l, err := scanJournalEntryLine(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ----------------------------------------------------------------
// Sales invoices
// ----------------------------------------------------------------

func scanSalesInvoice(row interface{ Scan(...interface{}) error }) (*SalesInvoice, error) {
	s := &SalesInvoice{}
	err := row.Scan(
		&s.ID,
		&s.Company,
		&s.PostingDate,
		&s.Customer,
		&s.CustomerName,
		&s.Remarks,
		&s.PONo,
		&s.Currency,
		&s.Status,
		&s.Submitted,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

const salesInvoiceColumns = `id, company, posting_date, customer, customer_name,
	remarks, po_no, currency, status, submitted`

const salesInvoicePaymentColumns = `id, sales_invoice_id, line_no, account, amount,
	mode_of_payment, clearance_date`

func scanSalesInvoicePayment(row interface{ Scan(...interface{}) error }) (*SalesInvoicePayment, error) {
	p := &SalesInvoicePayment{}
	var clearance sql.NullTime
	err := row.Scan(
		&p.ID,
		&p.SalesInvoiceID,
		&p.LineNo,
		&p.Account,
		&p.Amount,
		&p.ModeOfPayment,
		&clearance,
	)
	if err != nil {
		return nil, err
	}
	p.ClearanceDate = nullTimePtr(clearance)
	return p, nil
}

func (q *querier) loadInvoicePayments(ctx context.Context, invoiceID string) ([]SalesInvoicePayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+salesInvoicePaymentColumns+`
		FROM sales_invoice_payments
		WHERE sales_invoice_id = ?
		ORDER BY line_no ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var payments []SalesInvoicePayment
	for rows.Next() {
		p, err := scanSalesInvoicePayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (q *querier) OpenSalesInvoices(ctx context.Context, company string) ([]*SalesInvoice, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+salesInvoiceColumns+`
		FROM sales_invoices
		WHERE submitted = 1 AND company = ? AND status != 'paid'
		ORDER BY posting_date ASC, id ASC
	`, company)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var invoices []*SalesInvoice
	for rows.Next() {
		s, err := scanSalesInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range invoices {
		payments, err := q.loadInvoicePayments(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Payments = payments
	}
	return invoices, nil
}

func (q *querier) GetSalesInvoice(ctx context.Context, id string) (*SalesInvoice, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+salesInvoiceColumns+`
		FROM sales_invoices WHERE id = ?
	`, id)

	s, err := scanSalesInvoice(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	payments, err := q.loadInvoicePayments(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Payments = payments
	return s, nil
}

func (q *querier) GetSalesInvoicePayment(ctx context.Context, id string) (*SalesInvoicePayment, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+salesInvoicePaymentColumns+`
		FROM sales_invoice_payments WHERE id = ?
	`, id)

	p, err := scanSalesInvoicePayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ----------------------------------------------------------------
// Purchase invoices and expense claims
// ----------------------------------------------------------------

const purchaseInvoiceColumns = `id, company, posting_date, supplier_name, bill_no,
	currency, paid_amount, cash_bank_account, is_paid, submitted, clearance_date`

func scanPurchaseInvoice(row interface{ Scan(...interface{}) error }) (*PurchaseInvoice, error) {
	p := &PurchaseInvoice{}
	var clearance sql.NullTime
	err := row.Scan(
		&p.ID,
		&p.Company,
		&p.PostingDate,
		&p.SupplierName,
		&p.BillNo,
		&p.Currency,
		&p.PaidAmount,
		&p.CashBankAccount,
		&p.IsPaid,
		&p.Submitted,
		&clearance,
	)
	if err != nil {
		return nil, err
	}
	p.ClearanceDate = nullTimePtr(clearance)
	return p, nil
}

func (q *querier) OpenPurchaseInvoices(ctx context.Context, company string) ([]*PurchaseInvoice, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+purchaseInvoiceColumns+`
		FROM purchase_invoices
		WHERE submitted = 1 AND clearance_date IS NULL AND is_paid = 1 AND company = ?
		ORDER BY posting_date ASC, id ASC
	`, company)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*PurchaseInvoice
	for rows.Next() {
		p, err := scanPurchaseInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (q *querier) GetPurchaseInvoice(ctx context.Context, id string) (*PurchaseInvoice, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+purchaseInvoiceColumns+`
		FROM purchase_invoices WHERE id = ?
	`, id)

	p, err := scanPurchaseInvoice(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

const expenseClaimColumns = `id, company, posting_date, employee_name, bill_no,
	total_sanctioned_amount, currency, payment_account, is_paid, submitted, clearance_date`

func scanExpenseClaim(row interface{ Scan(...interface{}) error }) (*ExpenseClaim, error) {
	e := &ExpenseClaim{}
	var clearance sql.NullTime
	err := row.Scan(
		&e.ID,
		&e.Company,
		&e.PostingDate,
		&e.EmployeeName,
		&e.BillNo,
		&e.SanctionedTotal,
		&e.Currency,
		&e.PaymentAccount,
		&e.IsPaid,
		&e.Submitted,
		&clearance,
	)
	if err != nil {
		return nil, err
	}
	e.ClearanceDate = nullTimePtr(clearance)
	return e, nil
}

func (q *querier) OpenExpenseClaims(ctx context.Context, company string) ([]*ExpenseClaim, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+expenseClaimColumns+`
		FROM expense_claims
		WHERE submitted = 1 AND clearance_date IS NULL AND is_paid = 1 AND company = ?
		ORDER BY posting_date ASC, id ASC
	`, company)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*ExpenseClaim
	for rows.Next() {
		e, err := scanExpenseClaim(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (q *querier) GetExpenseClaim(ctx context.Context, id string) (*ExpenseClaim, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+expenseClaimColumns+`
		FROM expense_claims WHERE id = ?
	`, id)

	e, err := scanExpenseClaim(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ----------------------------------------------------------------
// Reconcile mutations (used inside WithinReconcileTx)
// ----------------------------------------------------------------

// clearRow sets the clearance date on one row provided it is still empty.
// The condition makes the precondition check and the write one statement.
func (q *querier) clearRow(ctx context.Context, table, id string, date time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE `+table+` SET clearance_date = ? WHERE id = ? AND clearance_date IS NULL`,
		date, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrAlreadyCleared
}

func (q *querier) ClearPaymentEntry(ctx context.Context, id string, date time.Time) error {
	return q.clearRow(ctx, "payment_entries", id, date)
}

func (q *querier) ClearJournalEntryLine(ctx context.Context, id string, date time.Time) error {
	return q.clearRow(ctx, "journal_entry_lines", id, date)
}

func (q *querier) ClearSalesInvoicePayment(ctx context.Context, id string, date time.Time) error {
	return q.clearRow(ctx, "sales_invoice_payments", id, date)
}

func (q *querier) ClearPurchaseInvoice(ctx context.Context, id string, date time.Time) error {
	return q.clearRow(ctx, "purchase_invoices", id, date)
}

func (q *querier) ClearExpenseClaim(ctx context.Context, id string, date time.Time) error {
	return q.clearRow(ctx, "expense_claims", id, date)
}

func (q *querier) AddLink(ctx context.Context, link *ReconciliationLink) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reconciliation_links
		(id, bank_transaction_id, document_kind, document_id, allocated_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		link.ID,
		link.BankTransactionID,
		string(link.DocumentKind),
		link.DocumentID,
		link.AllocatedAmount,
		link.CreatedAt,
	)
	return err
}

func (q *querier) SetUnallocated(ctx context.Context, bankTransactionID string, amount float64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE bank_transactions SET unallocated_amount = ? WHERE id = ?`,
		amount, bankTransactionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// nullTimePtr converts a sql.NullTime into the *time.Time the models use.
func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// timeOrNil converts an optional time into a driver-friendly value.
func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// boolToInt stores Go bools in SQLite BOOLEAN columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
