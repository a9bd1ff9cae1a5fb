package clickhouse

import (
	"context"
	"fmt"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

// CurvePointStore implements storage.CurvePointStore using ClickHouse.
//
// Points are post-trade curve snapshots. MergeTree does not enforce
// uniqueness; the ledger writes exactly one point per committed trade, so
// no dedup is needed on this path.
type CurvePointStore struct {
	conn *Conn
}

// NewCurvePointStore creates a new CurvePointStore.
func NewCurvePointStore(conn *Conn) *CurvePointStore {
	return &CurvePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CurvePointStore = (*CurvePointStore)(nil)

// Insert records a single curve state sample.
func (s *CurvePointStore) Insert(ctx context.Context, p *domain.CurvePoint) error {
	if p == nil || p.MintID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO curve_points (
			mint_id, timestamp_ms, trade_kind, price,
			sol_reserves, token_reserves, volume_delta
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		p.MintID, p.TimestampMs, string(p.Kind), p.Price,
		p.SolReserves, p.TokenReserves, p.VolumeDelta,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
func (s *CurvePointStore) GetByMint(ctx context.Context, mintID string) ([]*domain.CurvePoint, error) {
	query := `
		SELECT mint_id, timestamp_ms, trade_kind, price,
		       sol_reserves, token_reserves, volume_delta
		FROM curve_points
		WHERE mint_id = ?
		ORDER BY timestamp_ms ASC
	`
	return s.queryPoints(ctx, query, mintID)
}

// GetByTimeRange retrieves points for a mint within [start, end] inclusive.
func (s *CurvePointStore) GetByTimeRange(ctx context.Context, mintID string, start, end int64) ([]*domain.CurvePoint, error) {
	query := `
		SELECT mint_id, timestamp_ms, trade_kind, price,
		       sol_reserves, token_reserves, volume_delta
		FROM curve_points
		WHERE mint_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`
	return s.queryPoints(ctx, query, mintID, start, end)
}

func (s *CurvePointStore) queryPoints(ctx context.Context, query string, args ...any) ([]*domain.CurvePoint, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query curve points: %w", err)
	}
	defer rows.Close()

	var points []*domain.CurvePoint
	for rows.Next() {
		var p domain.CurvePoint
		var kindStr string

		err := rows.Scan(
			&p.MintID, &p.TimestampMs, &kindStr, &p.Price,
			&p.SolReserves, &p.TokenReserves, &p.VolumeDelta,
		)
		if err != nil {
			return nil, fmt.Errorf("scan curve point: %w", err)
		}

		p.Kind = domain.TradeKind(kindStr)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curve points: %w", err)
	}

	return points, nil
}
