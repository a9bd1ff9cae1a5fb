package memory

import (
	"context"
	"sort"
	"sync"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.TradeRecord // keyed by trade_id
	bySig  map[string]string              // external_signature → trade_id
	serial int64                          // insertion order tiebreaker
	order  map[string]int64               // trade_id → insertion serial
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data:  make(map[string]*domain.TradeRecord),
		bySig: make(map[string]string),
		order: make(map[string]int64),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id or
// external_signature exists.
func (s *TradeRecordStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" || t.ExternalSignature == "" {
		return storage.ErrInvalidInput
	}
	if t.TokenAmount <= 0 || t.SolAmount <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(t)
}

// insertLocked performs the duplicate checks and insert under s.mu.
// Used by the memory TokenStore to pair the append with a reserve CAS.
func (s *TradeRecordStore) insertLocked(t *domain.TradeRecord) error {
	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.bySig[t.ExternalSignature]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	s.bySig[t.ExternalSignature] = t.TradeID
	s.serial++
	s.order[t.TradeID] = s.serial
	return nil
}

// GetBySignature retrieves a trade by its external signature.
func (s *TradeRecordStore) GetBySignature(_ context.Context, externalSignature string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.bySig[externalSignature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *s.data[id]
	return &copy, nil
}

// GetByMint retrieves all trades for a mint, ordered by created_at ASC.
func (s *TradeRecordStore) GetByMint(_ context.Context, mintID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.MintID == mintID {
			copy := *t
			result = append(result, &copy)
		}
	}
	s.sortByInsertion(result)
	return result, nil
}

// GetByTrader retrieves all trades for a trader, ordered by created_at ASC.
func (s *TradeRecordStore) GetByTrader(_ context.Context, traderID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.TraderID == traderID {
			copy := *t
			result = append(result, &copy)
		}
	}
	s.sortByInsertion(result)
	return result, nil
}

// CountByMint returns the number of records for a mint.
func (s *TradeRecordStore) CountByMint(_ context.Context, mintID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.data {
		if t.MintID == mintID {
			n++
		}
	}
	return n, nil
}

// sortByInsertion orders by created_at with insertion order as tiebreaker,
// matching the postgres created_at ASC, trade_id ASC contract closely
// enough for same-millisecond appends.
func (s *TradeRecordStore) sortByInsertion(result []*domain.TradeRecord) {
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return s.order[result[i].TradeID] < s.order[result[j].TradeID]
	})
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)
