package storage

import (
	"context"
	"fmt"
)

// Insert helpers used by the seed command and by storage tests. Statement
// ingestion and document posting proper are out of scope; these exist so a
// local database can be populated without another system.

// InsertBankAccount inserts a bank account row.
func (s *Storage) InsertBankAccount(ctx context.Context, acct *BankAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, name, company, gl_account)
		VALUES (?, ?, ?, ?)
	`, acct.ID, acct.Name, acct.Company, acct.GLAccount)
	return err
}

// InsertBankTransaction inserts a bank transaction row.
func (s *Storage) InsertBankTransaction(ctx context.Context, t *BankTransaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_transactions
		(id, bank_account_id, date, description, debit, credit, currency, unallocated_amount, submitted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.BankAccountID,
		t.Date,
		t.Description,
		t.Debit,
		t.Credit,
		t.Currency,
		t.Unallocated,
		boolToInt(t.Submitted),
	)
	return err
}

// InsertPaymentEntry inserts a payment entry row.
func (s *Storage) InsertPaymentEntry(ctx context.Context, p *PaymentEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_entries
		(id, company, posting_date, party, party_type, reference_no, reference_date,
		 remarks, paid_from, paid_from_currency, paid_amount, paid_to, paid_to_currency,
		 received_amount, reference_kind, reference_name, submitted, clearance_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.Company,
		p.PostingDate,
		p.Party,
		p.PartyType,
		p.ReferenceNo,
		timeOrNil(p.ReferenceDate),
		p.Remarks,
		p.PaidFrom,
		p.PaidFromCurrency,
		p.PaidAmount,
		p.PaidTo,
		p.PaidToCurrency,
		p.ReceivedAmount,
		string(p.ReferenceKind),
		p.ReferenceName,
		boolToInt(p.Submitted),
		timeOrNil(p.ClearanceDate),
	)
	return err
}

// InsertJournalEntry inserts a journal entry and its lines.
func (s *Storage) InsertJournalEntry(ctx context.Context, j *JournalEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journal_entries
		(id, company, posting_date, cheque_no, cheque_date, pay_to_recd_from,
		 user_remark, remark, submitted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		j.ID,
		j.Company,
		j.PostingDate,
		j.ChequeNo,
		timeOrNil(j.ChequeDate),
		j.PayToRecdFrom,
		j.UserRemark,
		j.Remark,
		boolToInt(j.Submitted),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, line := range j.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO journal_entry_lines
			(id, journal_entry_id, line_no, account, party, against_account,
			 debit, credit, currency, user_remark, reference_name, clearance_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			line.ID,
			j.ID,
			line.LineNo,
			line.Account,
			line.Party,
			line.AgainstAccount,
			line.Debit,
			line.Credit,
			line.Currency,
			line.UserRemark,
			line.ReferenceName,
			timeOrNil(line.ClearanceDate),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert journal entry line %s: %w", line.ID, err)
		}
	}

	return tx.Commit()
}

// InsertSalesInvoice inserts a sales invoice and its payment lines.
func (s *Storage) InsertSalesInvoice(ctx context.Context, inv *SalesInvoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales_invoices
		(id, company, posting_date, customer, customer_name, remarks, po_no,
		 currency, status, submitted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID,
		inv.Company,
		inv.PostingDate,
		inv.Customer,
		inv.CustomerName,
		inv.Remarks,
		inv.PONo,
		inv.Currency,
		inv.Status,
		boolToInt(inv.Submitted),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, p := range inv.Payments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales_invoice_payments
			(id, sales_invoice_id, line_no, account, amount, mode_of_payment, clearance_date)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			p.ID,
			inv.ID,
			p.LineNo,
			p.Account,
			p.Amount,
			p.ModeOfPayment,
			timeOrNil(p.ClearanceDate),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert sales invoice payment %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// InsertPurchaseInvoice inserts a purchase invoice row.
func (s *Storage) InsertPurchaseInvoice(ctx context.Context, p *PurchaseInvoice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_invoices
		(id, company, posting_date, supplier_name, bill_no, currency, paid_amount,
		 cash_bank_account, is_paid, submitted, clearance_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.Company,
		p.PostingDate,
		p.SupplierName,
		p.BillNo,
		p.Currency,
		p.PaidAmount,
		p.CashBankAccount,
		boolToInt(p.IsPaid),
		boolToInt(p.Submitted),
		timeOrNil(p.ClearanceDate),
	)
	return err
}

// InsertExpenseClaim inserts an expense claim row.
func (s *Storage) InsertExpenseClaim(ctx context.Context, e *ExpenseClaim) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_claims
		(id, company, posting_date, employee_name, bill_no, total_sanctioned_amount,
		 currency, payment_account, is_paid, submitted, clearance_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Company,
		e.PostingDate,
		e.EmployeeName,
		e.BillNo,
		e.SanctionedTotal,
		e.Currency,
		e.PaymentAccount,
		boolToInt(e.IsPaid),
		boolToInt(e.Submitted),
		timeOrNil(e.ClearanceDate),
	)
	return err
}
