package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response with the current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// TransactionResponse represents an open bank transaction in API responses.
// Direction is "Cr" for money in and "Dr" for money out, matching statement
// conventions.
type TransactionResponse struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
	Direction   string  `json:"direction"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Unallocated float64 `json:"unallocated_amount"`
}

// TransactionListResponse wraps the open transactions of one bank account.
type TransactionListResponse struct {
	BankAccountID string                `json:"bank_account_id"`
	Transactions  []TransactionResponse `json:"transactions"`
	TotalCount    int                   `json:"total_count"`
}

// CandidateResponse represents one match proposal. Composite candidates carry
// their per-line sub-candidates in source order.
type CandidateResponse struct {
	Kind          string              `json:"kind"`
	DocumentID    string              `json:"document_id"`
	DocumentName  string              `json:"document_name"`
	PostingDate   string              `json:"posting_date"`
	ReferenceDate string              `json:"reference_date,omitempty"`
	Party         string              `json:"party,omitempty"`
	Reference     string              `json:"reference,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	Amount        float64             `json:"amount"`
	FutureDated   bool                `json:"future_dated"`
	Composite     bool                `json:"composite"`
	SubCandidates []CandidateResponse `json:"sub_candidates,omitempty"`
}

// CandidateListResponse wraps the ranked proposals for one transaction.
type CandidateListResponse struct {
	TransactionID string              `json:"transaction_id"`
	Candidates    []CandidateResponse `json:"candidates"`
	TotalCount    int                 `json:"total_count"`
}

// ReconcileResponse is returned after a successful commit.
type ReconcileResponse struct {
	LinkID          string  `json:"link_id"`
	TransactionID   string  `json:"transaction_id"`
	DocumentKind    string  `json:"document_kind"`
	DocumentID      string  `json:"document_id"`
	AllocatedAmount float64 `json:"allocated_amount"`
	CreatedAt       string  `json:"created_at"`
}

// LinkResponse represents one recorded reconciliation link.
type LinkResponse struct {
	ID              string  `json:"id"`
	DocumentKind    string  `json:"document_kind"`
	DocumentID      string  `json:"document_id"`
	AllocatedAmount float64 `json:"allocated_amount"`
	CreatedAt       string  `json:"created_at"`
}

// LinkListResponse wraps the links of one transaction.
type LinkListResponse struct {
	TransactionID string         `json:"transaction_id"`
	Links         []LinkResponse `json:"links"`
	TotalCount    int            `json:"total_count"`
}

// StatsResponse summarizes reconciliation state for dashboards.
type StatsResponse struct {
	OpenTransactions       int                `json:"open_transactions"`
	ReconciledTransactions int                `json:"reconciled_transactions"`
	TotalUnallocated       float64            `json:"total_unallocated"`
	TotalLinks             int                `json:"total_links"`
	LinksByKind            map[string]int     `json:"links_by_kind"`
	AllocatedByKind        map[string]float64 `json:"allocated_by_kind"`
}
