package storage

import (
	"context"

	"curve-launchpad/internal/domain"
)

// ReserveUpdate is a compare-and-swap reserve overwrite. Prev values are
// the reserves the caller computed the trade against; the write succeeds
// only if they still hold.
type ReserveUpdate struct {
	MintID            string
	PrevSolReserves   int64
	PrevTokenReserves int64
	NewSolReserves    int64
	NewTokenReserves  int64
	VolumeDelta       int64 // gross SOL value added to total_volume
}

// LockResult is the outcome of a conditional migration-lock write. The
// race is part of the contract, so it is a tagged value, not an error:
// callers must branch on Locked rather than catch anything.
type LockResult struct {
	Locked bool
	Token  *domain.Token // post-lock state, set only when Locked
}

// Lost reports whether another caller already won the lock.
func (r LockResult) Lost() bool { return !r.Locked }

// TokenStore owns Token rows. Only the trade ledger and the migration
// coordinator mutate tokens, and only through the conditional writes below.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if mint_id exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetByMint retrieves a token. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mintID string) (*domain.Token, error)

	// List retrieves all tokens ordered by created_at ASC.
	List(ctx context.Context) ([]*domain.Token, error)

	// ListUngraduated retrieves tokens with status active or migrating,
	// ordered by created_at ASC. Used by the graduation sweep.
	ListUngraduated(ctx context.Context) ([]*domain.Token, error)

	// ApplyTrade atomically overwrites reserves, increments total_volume,
	// and appends the trade record, as one unit of work guarded by the
	// previous reserves. Returns ErrNotFound, ErrTradingDisabled,
	// ErrConflict (CAS lost, retry), or ErrDuplicateKey (replayed
	// external signature, reserves untouched).
	ApplyTrade(ctx context.Context, upd ReserveUpdate, rec *domain.TradeRecord) error

	// LockForMigration attempts the one-way active → migrating transition:
	// sets status=migrating, is_active=false, migration_executed=true,
	// guarded by status=active AND migration_executed=false. A lost race
	// is reported in the LockResult, never as an error.
	LockForMigration(ctx context.Context, mintID string) (LockResult, error)

	// FinalizeGraduation completes migrating → graduated, recording the
	// pool reference and timestamp. Returns ErrConflict if the token is
	// not in the migrating state.
	FinalizeGraduation(ctx context.Context, mintID, poolReference string, migratedAt int64) error
}

// TradeRecordStore provides access to the append-only trade_records stream.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id or
	// external_signature exists. Normal trade flow appends through
	// TokenStore.ApplyTrade; Insert exists for backfill and tests.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetBySignature retrieves a trade by its external signature.
	// Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, externalSignature string) (*domain.TradeRecord, error)

	// GetByMint retrieves all trades for a mint, ordered by created_at ASC.
	GetByMint(ctx context.Context, mintID string) ([]*domain.TradeRecord, error)

	// GetByTrader retrieves all trades for a trader, ordered by created_at ASC.
	GetByTrader(ctx context.Context, traderID string) ([]*domain.TradeRecord, error)

	// CountByMint returns the number of records for a mint.
	CountByMint(ctx context.Context, mintID string) (int64, error)
}

// CurvePointStore provides access to curve_points analytics storage.
type CurvePointStore interface {
	// Insert adds a curve state sample.
	Insert(ctx context.Context, p *domain.CurvePoint) error

	// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mintID string) ([]*domain.CurvePoint, error)

	// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mintID string, start, end int64) ([]*domain.CurvePoint, error)
}
