package service

import (
	"context"
	"strings"
	"sync"
)

// SearchInput holds the user's draft city, separate from the committed city.
// It never talks to the network; Submit hands the trimmed draft to onSearch.
type SearchInput struct {
	mu       sync.Mutex
	draft    string
	onSearch func(ctx context.Context, city string)
}

func NewSearchInput(initial string, onSearch func(ctx context.Context, city string)) *SearchInput {
	return &SearchInput{draft: initial, onSearch: onSearch}
}

func (s *SearchInput) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *SearchInput) SetDraft(v string) {
	s.mu.Lock()
	s.draft = v
	s.mu.Unlock()
}

// Sync replaces the draft with a city committed elsewhere (startup load, search).
func (s *SearchInput) Sync(committed string) {
	s.SetDraft(committed)
}

// SubmitDraft replaces the draft with v and emits that value trimmed.
// The emitted city is the caller's own, whatever else writes the draft meanwhile.
func (s *SearchInput) SubmitDraft(ctx context.Context, v string) bool {
	s.SetDraft(v)
	return s.emit(ctx, v)
}

// Submit emits the trimmed draft. Blank drafts are dropped and Submit returns false.
func (s *SearchInput) Submit(ctx context.Context) bool {
	return s.emit(ctx, s.Draft())
}

func (s *SearchInput) emit(ctx context.Context, draft string) bool {
	city := strings.TrimSpace(draft)
	if city == "" || s.onSearch == nil {
		return false
	}
	s.onSearch(ctx, city)
	return true
}
