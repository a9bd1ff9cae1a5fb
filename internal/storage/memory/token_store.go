package memory

import (
	"context"
	"sort"
	"sync"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
//
// ApplyTrade pairs the reserve CAS with the trade record append under both
// store locks, mirroring the single transaction the postgres store uses.
type TokenStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Token // keyed by mint_id
	trades *TradeRecordStore
}

// NewTokenStore creates a new in-memory token store. Trades appended by
// ApplyTrade land in the given trade record store.
func NewTokenStore(trades *TradeRecordStore) *TokenStore {
	return &TokenStore{
		data:   make(map[string]*domain.Token),
		trades: trades,
	}
}

// Insert adds a new token. Returns ErrDuplicateKey if mint_id exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.MintID == "" {
		return storage.ErrInvalidInput
	}
	if t.SolReserves <= 0 || t.TokenReserves <= 0 || t.TotalSupply <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.MintID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.MintID] = &copy
	return nil
}

// GetByMint retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(_ context.Context, mintID string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[mintID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// List retrieves all tokens ordered by created_at ASC.
func (s *TokenStore) List(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Token, 0, len(s.data))
	for _, t := range s.data {
		copy := *t
		result = append(result, &copy)
	}
	sortTokens(result)
	return result, nil
}

// ListUngraduated retrieves tokens with status active or migrating.
func (s *TokenStore) ListUngraduated(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if t.Status != domain.StatusGraduated {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTokens(result)
	return result, nil
}

// ApplyTrade atomically applies a guarded reserve update and appends the
// trade record. Reserves are untouched on any failure.
func (s *TokenStore) ApplyTrade(_ context.Context, upd storage.ReserveUpdate, rec *domain.TradeRecord) error {
	if rec == nil || upd.NewSolReserves <= 0 || upd.NewTokenReserves <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[upd.MintID]
	if !exists {
		return storage.ErrNotFound
	}
	if !t.IsActive {
		return storage.ErrTradingDisabled
	}
	if t.SolReserves != upd.PrevSolReserves || t.TokenReserves != upd.PrevTokenReserves {
		return storage.ErrConflict
	}

	// Idempotency gate before the reserves change: a replayed signature
	// must leave the token untouched.
	s.trades.mu.Lock()
	err := s.trades.insertLocked(rec)
	s.trades.mu.Unlock()
	if err != nil {
		return err
	}

	t.SolReserves = upd.NewSolReserves
	t.TokenReserves = upd.NewTokenReserves
	t.TotalVolume += upd.VolumeDelta
	return nil
}

// LockForMigration attempts the one-way active → migrating transition.
func (s *TokenStore) LockForMigration(_ context.Context, mintID string) (storage.LockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[mintID]
	if !exists {
		return storage.LockResult{}, storage.ErrNotFound
	}
	if t.Status != domain.StatusActive || t.MigrationExecuted {
		return storage.LockResult{Locked: false}, nil
	}

	t.Status = domain.StatusMigrating
	t.IsActive = false
	t.MigrationExecuted = true

	copy := *t
	return storage.LockResult{Locked: true, Token: &copy}, nil
}

// FinalizeGraduation completes migrating → graduated.
func (s *TokenStore) FinalizeGraduation(_ context.Context, mintID, poolReference string, migratedAt int64) error {
	if poolReference == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[mintID]
	if !exists {
		return storage.ErrNotFound
	}
	if t.Status != domain.StatusMigrating {
		return storage.ErrConflict
	}

	t.Status = domain.StatusGraduated
	t.PoolReference = &poolReference
	t.MigrationTimestamp = &migratedAt
	return nil
}

func sortTokens(result []*domain.Token) {
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].MintID < result[j].MintID
	})
}

var _ storage.TokenStore = (*TokenStore)(nil)
