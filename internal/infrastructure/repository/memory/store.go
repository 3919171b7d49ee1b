// Package memory keeps every repository port in process memory. It enforces the
// same uniqueness and compare-and-swap rules as the postgres adapter and backs
// STORAGE_DRIVER=memory as well as the use-case tests.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

type Store struct {
	mu        sync.RWMutex
	profiles  map[string]domain.Profile
	fields    map[string]domain.MetadataField
	values    map[string]domain.MetadataValue
	documents map[string]domain.ProfileDocument
	loans     map[string]domain.Loan
	approvals map[string]domain.Approval
	history   []domain.HistoryEntry
	outbox    map[string]domain.PendingHistory
}

func New() *Store {
	return &Store{
		profiles:  make(map[string]domain.Profile),
		fields:    make(map[string]domain.MetadataField),
		values:    make(map[string]domain.MetadataValue),
		documents: make(map[string]domain.ProfileDocument),
		loans:     make(map[string]domain.Loan),
		approvals: make(map[string]domain.Approval),
		outbox:    make(map[string]domain.PendingHistory),
	}
}

func paginate[T any](items []T, page domain.PageRequest, less func(a, b T) bool) domain.Page[T] {
	sort.SliceStable(items, func(i, j int) bool {
		if page.Desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
	out := domain.Page[T]{Items: []T{}, Total: len(items), Page: page.Page, Size: page.Size}
	start := page.Offset()
	if start >= len(items) {
		return out
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	out.Items = append(out.Items, items[start:end]...)
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func timeLess(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneLoan(l domain.Loan) domain.Loan {
	out := l
	out.ReturnedAt = cloneTime(l.ReturnedAt)
	out.ApprovedAt = cloneTime(l.ApprovedAt)
	out.Items = make([]domain.LoanItem, len(l.Items))
	for i, item := range l.Items {
		item.ReturnedAt = cloneTime(item.ReturnedAt)
		out.Items[i] = item
	}
	return out
}

func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
