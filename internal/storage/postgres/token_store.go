package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
//
// Reserve mutations are conditional updates: the WHERE clause carries the
// expected pre-write state, and zero rows affected tells the caller the
// race was lost. No row-level SELECT FOR UPDATE is needed.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	mint_id, name, symbol,
	sol_reserves, token_reserves, total_supply, total_volume,
	status, is_active, migration_executed,
	pool_reference, migration_timestamp, created_at
`

// Insert adds a new token. Returns ErrDuplicateKey if mint_id exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (
			mint_id, name, symbol,
			sol_reserves, token_reserves, total_supply, total_volume,
			status, is_active, migration_executed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		t.MintID, t.Name, t.Symbol,
		t.SolReserves, t.TokenReserves, t.TotalSupply, t.TotalVolume,
		string(t.Status), t.IsActive, t.MigrationExecuted, t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByMint retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(ctx context.Context, mintID string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE mint_id = $1`

	row := s.pool.QueryRow(ctx, query, mintID)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// List retrieves all tokens ordered by created_at ASC.
func (s *TokenStore) List(ctx context.Context) ([]*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens ORDER BY created_at ASC, mint_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListUngraduated retrieves tokens with status active or migrating.
func (s *TokenStore) ListUngraduated(ctx context.Context) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE status != $1
		ORDER BY created_at ASC, mint_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.StatusGraduated))
	if err != nil {
		return nil, fmt.Errorf("list ungraduated tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ApplyTrade atomically overwrites reserves, increments total_volume, and
// appends the trade record in one transaction. The reserve update is
// guarded by the expected pre-trade reserves; the trade append is guarded
// by the unique external_signature constraint.
func (s *TokenStore) ApplyTrade(ctx context.Context, upd storage.ReserveUpdate, rec *domain.TradeRecord) error {
	if rec == nil || upd.NewSolReserves <= 0 || upd.NewTokenReserves <= 0 {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Duplicate signature first: a replay must be rejected before the
	// guarded reserve write, leaving the token untouched.
	insertTrade := `
		INSERT INTO trade_records (
			trade_id, mint_id, trader_id, trade_kind,
			token_amount, sol_amount, external_signature, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.Exec(ctx, insertTrade,
		rec.TradeID, rec.MintID, rec.TraderID, string(rec.Kind),
		rec.TokenAmount, rec.SolAmount, rec.ExternalSignature, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append trade record: %w", err)
	}

	update := `
		UPDATE tokens
		SET sol_reserves = $1,
		    token_reserves = $2,
		    total_volume = total_volume + $3
		WHERE mint_id = $4
		  AND is_active = TRUE
		  AND sol_reserves = $5
		  AND token_reserves = $6
	`
	tag, err := tx.Exec(ctx, update,
		upd.NewSolReserves, upd.NewTokenReserves, upd.VolumeDelta,
		upd.MintID, upd.PrevSolReserves, upd.PrevTokenReserves,
	)
	if err != nil {
		return fmt.Errorf("apply reserve update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Rollback happens via defer; classify why the guard failed.
		return s.classifyGuardFailure(ctx, upd.MintID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit trade: %w", err)
	}
	return nil
}

// classifyGuardFailure distinguishes not-found, disabled trading, and a
// plain CAS conflict after a zero-rows conditional update.
func (s *TokenStore) classifyGuardFailure(ctx context.Context, mintID string) error {
	var isActive bool
	err := s.pool.QueryRow(ctx, `SELECT is_active FROM tokens WHERE mint_id = $1`, mintID).Scan(&isActive)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("classify guard failure: %w", err)
	}
	if !isActive {
		return storage.ErrTradingDisabled
	}
	return storage.ErrConflict
}

// LockForMigration attempts the one-way active → migrating transition.
func (s *TokenStore) LockForMigration(ctx context.Context, mintID string) (storage.LockResult, error) {
	query := `
		UPDATE tokens
		SET status = $1, is_active = FALSE, migration_executed = TRUE
		WHERE mint_id = $2
		  AND status = $3
		  AND migration_executed = FALSE
		RETURNING ` + tokenColumns

	row := s.pool.QueryRow(ctx, query,
		string(domain.StatusMigrating), mintID, string(domain.StatusActive),
	)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			// Zero rows: either the token does not exist or another
			// caller already holds the lock.
			if _, getErr := s.GetByMint(ctx, mintID); getErr != nil {
				return storage.LockResult{}, getErr
			}
			return storage.LockResult{Locked: false}, nil
		}
		return storage.LockResult{}, fmt.Errorf("lock for migration: %w", err)
	}
	return storage.LockResult{Locked: true, Token: t}, nil
}

// FinalizeGraduation completes migrating → graduated.
func (s *TokenStore) FinalizeGraduation(ctx context.Context, mintID, poolReference string, migratedAt int64) error {
	if poolReference == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE tokens
		SET status = $1, pool_reference = $2, migration_timestamp = $3
		WHERE mint_id = $4 AND status = $5
	`
	tag, err := s.pool.Exec(ctx, query,
		string(domain.StatusGraduated), poolReference, migratedAt,
		mintID, string(domain.StatusMigrating),
	)
	if err != nil {
		return fmt.Errorf("finalize graduation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetByMint(ctx, mintID); getErr != nil {
			return getErr
		}
		return storage.ErrConflict
	}
	return nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var statusStr string

	err := row.Scan(
		&t.MintID, &t.Name, &t.Symbol,
		&t.SolReserves, &t.TokenReserves, &t.TotalSupply, &t.TotalVolume,
		&statusStr, &t.IsActive, &t.MigrationExecuted,
		&t.PoolReference, &t.MigrationTimestamp, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TokenStatus(statusStr)
	return &t, nil
}

// scanTokens scans multiple rows into a slice of Token.
func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token

	for rows.Next() {
		var t domain.Token
		var statusStr string

		err := rows.Scan(
			&t.MintID, &t.Name, &t.Symbol,
			&t.SolReserves, &t.TokenReserves, &t.TotalSupply, &t.TotalVolume,
			&statusStr, &t.IsActive, &t.MigrationExecuted,
			&t.PoolReference, &t.MigrationTimestamp, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}

		t.Status = domain.TokenStatus(statusStr)
		tokens = append(tokens, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	return tokens, nil
}
