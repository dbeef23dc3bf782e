package memory

import (
	"context"
	"fmt"
	"sync"

	"bollette/internal/sheets"
)

// Store keeps ledger entries in memory. Used in tests and local
// development where no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items []sheets.Entry
}

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e sheets.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []sheets.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Entry(nil), s.items...)
}
