package memory

import (
	"context"
	"sort"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (s *Store) AppendHistory(_ context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.history {
		if e.ID == entry.ID {
			return nil
		}
	}
	s.history = append(s.history, entry)
	return nil
}

// PublishHistory lets the store act as the audit sink when no broker is configured.
func (s *Store) PublishHistory(ctx context.Context, entry domain.HistoryEntry) error {
	return s.AppendHistory(ctx, entry)
}

// History returns the recorded entries for entityID in arrival order.
func (s *Store) History(entityID string) []domain.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HistoryEntry, 0)
	for _, e := range s.history {
		if entityID == "" || e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) ParkHistory(_ context.Context, entry domain.HistoryEntry, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.outbox[entry.ID]
	if !ok {
		pending = domain.PendingHistory{Entry: entry, ParkedAt: time.Now().UTC()}
	}
	pending.Attempts++
	pending.LastError = cause
	s.outbox[entry.ID] = pending
	return nil
}

// PendingHistory returns parked entries oldest first.
func (s *Store) PendingHistory(_ context.Context, limit int) ([]domain.PendingHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PendingHistory, 0, len(s.outbox))
	for _, p := range s.outbox {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ParkedAt.Equal(out[j].ParkedAt) {
			return out[i].Entry.ID < out[j].Entry.ID
		}
		return out[i].ParkedAt.Before(out[j].ParkedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AckHistory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outbox, id)
	return nil
}
