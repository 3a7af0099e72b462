package dto

// ReconcileRequest is the body of POST /api/transactions/{id}/reconcile.
// DocumentID may be a document ID or a line ID taken from a sub-candidate.
type ReconcileRequest struct {
	DocumentKind string `json:"document_kind"`
	DocumentID   string `json:"document_id"`
}
