package domain

import "time"

type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanRejected LoanStatus = "rejected"
	LoanBorrowed LoanStatus = "borrowed"
	LoanReturned LoanStatus = "returned"
)

type Loan struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	EnterpriseID    string     `json:"enterprise_id"`
	BorrowerID      string     `json:"borrower_id"`
	BorrowerName    string     `json:"borrower_name"`
	Department      string     `json:"department,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	DueDate         time.Time  `json:"due_date"`
	ReturnedAt      *time.Time `json:"returned_at,omitempty"`
	Status          LoanStatus `json:"status"`
	LoanType        string     `json:"loan_type,omitempty"`
	Purpose         string     `json:"purpose,omitempty"`
	ApproverID      string     `json:"approver_id,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Items           []LoanItem `json:"items"`
}

type LoanItem struct {
	ID           string     `json:"id"`
	LoanID       string     `json:"loan_id"`
	DocumentID   string     `json:"document_id"`
	DocumentName string     `json:"document_name"`
	Returned     bool       `json:"returned"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// IsOverdue is derived on read; it is never stored.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanBorrowed && now.After(l.DueDate)
}

func (l Loan) AllReturned() bool {
	for _, item := range l.Items {
		if !item.Returned {
			return false
		}
	}
	return len(l.Items) > 0
}

func (l Loan) Item(id string) (LoanItem, bool) {
	for _, item := range l.Items {
		if item.ID == id {
			return item, true
		}
	}
	return LoanItem{}, false
}

type LoanFilter struct {
	EnterpriseID string
	BorrowerID   string
	Status       LoanStatus
}
