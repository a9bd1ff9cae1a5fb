package graduation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

// ErrUnknownToken is returned for display queries on missing mints.
var ErrUnknownToken = errors.New("unknown token")

// DisplayState is the externally visible graduation status of a token,
// shaped for API responses and websocket pushes.
type DisplayState struct {
	MintID             string          `json:"mint_id"`
	Phase              string          `json:"phase"` // active | migrating | graduated
	MarketCapUSD       decimal.Decimal `json:"market_cap_usd"`
	ProgressPct        decimal.Decimal `json:"progress_pct"`
	RemainingUSD       decimal.Decimal `json:"remaining_usd"`
	TradeCount         int64           `json:"trade_count"`
	TotalVolume        int64           `json:"total_volume"`
	PoolReference      *string         `json:"pool_reference,omitempty"`
	MigrationTimestamp *int64          `json:"migration_timestamp,omitempty"`
}

// ReadModel assembles DisplayStates from stored token state and the
// evaluator's valuation.
type ReadModel struct {
	tokens    storage.TokenStore
	trades    storage.TradeRecordStore
	evaluator *Evaluator
}

// NewReadModel creates a ReadModel.
func NewReadModel(tokens storage.TokenStore, trades storage.TradeRecordStore, evaluator *Evaluator) *ReadModel {
	return &ReadModel{tokens: tokens, trades: trades, evaluator: evaluator}
}

// State returns the display state for one token.
//
// Graduated tokens report a pinned 100% progress and zero remaining; their
// reserves are historical and no longer priced.
func (r *ReadModel) State(ctx context.Context, mintID string) (*DisplayState, error) {
	token, err := r.tokens.GetByMint(ctx, mintID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, fmt.Errorf("read token: %w", err)
	}

	count, err := r.trades.CountByMint(ctx, mintID)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}

	state := &DisplayState{
		MintID:             token.MintID,
		Phase:              string(token.Status),
		TradeCount:         count,
		TotalVolume:        token.TotalVolume,
		PoolReference:      token.PoolReference,
		MigrationTimestamp: token.MigrationTimestamp,
	}

	if token.Status == domain.StatusGraduated {
		state.ProgressPct = decimal.NewFromInt(100)
		state.RemainingUSD = decimal.Zero
		state.MarketCapUSD = GraduationThresholdUSD
		return state, nil
	}

	ev, err := r.evaluator.Evaluate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("evaluate token: %w", err)
	}

	state.MarketCapUSD = ev.MarketCapUSD
	state.ProgressPct = ev.ProgressPct
	state.RemainingUSD = r.evaluator.RemainingUSD(ev)
	return state, nil
}
