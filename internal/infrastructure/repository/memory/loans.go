package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (s *Store) CreateLoan(_ context.Context, loan *domain.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.loans {
		if l.Code == loan.Code {
			return &domain.FieldError{
				Kind:    domain.ErrDuplicateCode,
				Entity:  "loan",
				Field:   "code",
				Message: fmt.Sprintf("loan code %q already in use", loan.Code),
			}
		}
	}
	s.loans[loan.ID] = cloneLoan(*loan)
	return nil
}

func (s *Store) GetLoan(_ context.Context, id string) (*domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.loans[id]
	if !ok {
		return nil, domain.NotFound("loan", id)
	}
	out := cloneLoan(l)
	return &out, nil
}

func (s *Store) UpdateLoanStatus(_ context.Context, loan *domain.Loan, expected domain.LoanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.loans[loan.ID]
	if !ok {
		return domain.NotFound("loan", loan.ID)
	}
	if current.Status != expected {
		return domain.InvalidTransition("loan", loan.ID, string(current.Status), string(loan.Status))
	}
	current.Status = loan.Status
	current.ApproverID = loan.ApproverID
	current.ApprovedAt = cloneTime(loan.ApprovedAt)
	current.RejectionReason = loan.RejectionReason
	current.UpdatedAt = loan.UpdatedAt
	s.loans[loan.ID] = current
	return nil
}

func (s *Store) ReturnLoanItems(_ context.Context, loanID string, itemIDs []string, at time.Time) (*domain.Loan, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.loans[loanID]
	if !ok {
		return nil, 0, domain.NotFound("loan", loanID)
	}
	loan := cloneLoan(stored)
	switch loan.Status {
	case domain.LoanBorrowed:
	case domain.LoanReturned:
		return &loan, 0, nil
	default:
		return nil, 0, domain.InvalidTransition("loan", loanID, string(loan.Status), "return")
	}

	index := make(map[string]int, len(loan.Items))
	for i, item := range loan.Items {
		index[item.ID] = i
	}
	for _, id := range itemIDs {
		if _, ok := index[id]; !ok {
			return nil, 0, domain.NotFound("loan_item", id)
		}
	}
	returned := 0
	for _, id := range itemIDs {
		item := &loan.Items[index[id]]
		if item.Returned {
			continue
		}
		returnedAt := at
		item.Returned = true
		item.ReturnedAt = &returnedAt
		returned++
	}
	if loan.AllReturned() {
		returnedAt := at
		loan.Status = domain.LoanReturned
		loan.ReturnedAt = &returnedAt
	}
	loan.UpdatedAt = at
	s.loans[loanID] = loan

	out := cloneLoan(loan)
	return &out, returned, nil
}

func (s *Store) ListLoans(_ context.Context, filter domain.LoanFilter, page domain.PageRequest) (domain.Page[domain.Loan], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Loan, 0)
	for _, l := range s.loans {
		if filter.EnterpriseID != "" && l.EnterpriseID != filter.EnterpriseID {
			continue
		}
		if filter.BorrowerID != "" && l.BorrowerID != filter.BorrowerID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if page.Query != "" && !containsFold(l.Code, page.Query) && !containsFold(l.BorrowerName, page.Query) {
			continue
		}
		matched = append(matched, cloneLoan(l))
	}
	return paginate(matched, page, loanLess(page.Sort)), nil
}

func (s *Store) ListBorrowedDueBefore(_ context.Context, enterpriseID string, before time.Time) ([]domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Loan, 0)
	for _, l := range s.loans {
		if l.Status != domain.LoanBorrowed || !l.DueDate.Before(before) {
			continue
		}
		if enterpriseID != "" && l.EnterpriseID != enterpriseID {
			continue
		}
		out = append(out, cloneLoan(l))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func loanLess(key string) func(a, b domain.Loan) bool {
	switch key {
	case "due_date":
		return func(a, b domain.Loan) bool { return a.DueDate.Before(b.DueDate) }
	case "code":
		return func(a, b domain.Loan) bool { return a.Code < b.Code }
	default:
		return func(a, b domain.Loan) bool { return a.RequestedAt.Before(b.RequestedAt) }
	}
}
