package memory

import (
	"context"
	"sort"
	"sync"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

// CurvePointStore is an in-memory implementation of storage.CurvePointStore.
type CurvePointStore struct {
	mu   sync.RWMutex
	data []*domain.CurvePoint
}

// NewCurvePointStore creates a new in-memory curve point store.
func NewCurvePointStore() *CurvePointStore {
	return &CurvePointStore{}
}

// Insert adds a curve state sample.
func (s *CurvePointStore) Insert(_ context.Context, p *domain.CurvePoint) error {
	if p == nil || p.MintID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.data = append(s.data, &copy)
	return nil
}

// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
func (s *CurvePointStore) GetByMint(_ context.Context, mintID string) ([]*domain.CurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CurvePoint
	for _, p := range s.data {
		if p.MintID == mintID {
			copy := *p
			result = append(result, &copy)
		}
	}
	sortCurvePoints(result)
	return result, nil
}

// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
func (s *CurvePointStore) GetByTimeRange(_ context.Context, mintID string, start, end int64) ([]*domain.CurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CurvePoint
	for _, p := range s.data {
		if p.MintID == mintID && p.TimestampMs >= start && p.TimestampMs <= end {
			copy := *p
			result = append(result, &copy)
		}
	}
	sortCurvePoints(result)
	return result, nil
}

func sortCurvePoints(result []*domain.CurvePoint) {
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
}

var _ storage.CurvePointStore = (*CurvePointStore)(nil)
