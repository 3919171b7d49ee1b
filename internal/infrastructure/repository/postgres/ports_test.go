package postgres

import "github.com/kirillkom/document-profiles/internal/core/ports"

var (
	_ ports.ProfileRepository  = (*ProfileRepository)(nil)
	_ ports.FieldRepository    = (*FieldRepository)(nil)
	_ ports.ValueRepository    = (*ValueRepository)(nil)
	_ ports.DocumentRepository = (*DocumentRepository)(nil)
	_ ports.LoanRepository     = (*LoanRepository)(nil)
	_ ports.ApprovalRepository = (*ApprovalRepository)(nil)
	_ ports.HistoryStore       = (*HistoryRepository)(nil)
	_ ports.HistoryOutbox      = (*HistoryRepository)(nil)
)
