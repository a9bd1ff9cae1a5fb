package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeColumns = `
	trade_id, mint_id, trader_id, trade_kind,
	token_amount, sol_amount, external_signature, created_at
`

// Insert appends a trade record. Returns ErrDuplicateKey when the
// external signature (or trade id) was already recorded.
func (s *TradeRecordStore) Insert(ctx context.Context, rec *domain.TradeRecord) error {
	if rec == nil || rec.TokenAmount <= 0 || rec.SolAmount <= 0 || !rec.Kind.Valid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_records (
			trade_id, mint_id, trader_id, trade_kind,
			token_amount, sol_amount, external_signature, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		rec.TradeID, rec.MintID, rec.TraderID, string(rec.Kind),
		rec.TokenAmount, rec.SolAmount, rec.ExternalSignature, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// GetBySignature retrieves the record for an external signature.
func (s *TradeRecordStore) GetBySignature(ctx context.Context, signature string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_records WHERE external_signature = $1`

	row := s.pool.QueryRow(ctx, query, signature)
	rec, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by signature: %w", err)
	}
	return rec, nil
}

// GetByMint retrieves all trades for a mint ordered by created_at ASC.
func (s *TradeRecordStore) GetByMint(ctx context.Context, mintID string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trade_records
		WHERE mint_id = $1
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mintID)
	if err != nil {
		return nil, fmt.Errorf("get trades by mint: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetByTrader retrieves all trades by a trader ordered by created_at ASC.
func (s *TradeRecordStore) GetByTrader(ctx context.Context, traderID string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trade_records
		WHERE trader_id = $1
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, traderID)
	if err != nil {
		return nil, fmt.Errorf("get trades by trader: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// CountByMint returns the number of trades recorded for a mint.
func (s *TradeRecordStore) CountByMint(ctx context.Context, mintID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_records WHERE mint_id = $1`, mintID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count trades by mint: %w", err)
	}
	return count, nil
}

func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var rec domain.TradeRecord
	var kindStr string

	err := row.Scan(
		&rec.TradeID, &rec.MintID, &rec.TraderID, &kindStr,
		&rec.TokenAmount, &rec.SolAmount, &rec.ExternalSignature, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = domain.TradeKind(kindStr)
	return &rec, nil
}

func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var records []*domain.TradeRecord

	for rows.Next() {
		var rec domain.TradeRecord
		var kindStr string

		err := rows.Scan(
			&rec.TradeID, &rec.MintID, &rec.TraderID, &kindStr,
			&rec.TokenAmount, &rec.SolAmount, &rec.ExternalSignature, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		rec.Kind = domain.TradeKind(kindStr)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return records, nil
}
