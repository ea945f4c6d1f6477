package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryShortURLStorage is a map-backed implementation of the port. It backs
// the contract test suite and the "memory" provider for local development.
type MemoryShortURLStorage struct {
	mu        sync.Mutex
	links     map[string]ShortURL
	analytics map[string]ShortURLAnalytics
}

func NewMemoryShortURLStorage() *MemoryShortURLStorage {
	return &MemoryShortURLStorage{
		links:     make(map[string]ShortURL),
		analytics: make(map[string]ShortURLAnalytics),
	}
}

func (s *MemoryShortURLStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[code]
	return ok, nil
}

func (s *MemoryShortURLStorage) Create(ctx context.Context, shortURL *ShortURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[shortURL.Code]; ok {
		return ErrDuplicateCode
	}
	s.links[shortURL.Code] = *shortURL
	return nil
}

func (s *MemoryShortURLStorage) GetByCode(ctx context.Context, code string) (*ShortURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[code]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (s *MemoryShortURLStorage) RecordResolution(ctx context.Context, code string, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resolvedAt = resolvedAt.UTC()
	row := s.analytics[code]
	row.Code = code
	row.TotalResolutions++
	row.LastResolvedAt = &resolvedAt
	s.analytics[code] = row
	return nil
}

func (s *MemoryShortURLStorage) GetAnalytics(ctx context.Context, code string) (ShortURLAnalytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.analytics[code]
	if !ok {
		return ShortURLAnalytics{Code: code}, nil
	}
	return row, nil
}
