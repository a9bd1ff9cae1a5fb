package graduation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/pricefeed"
)

// valuationToken builds a token with hand-picked reserves so the expected
// market cap is easy to compute: price = sol/token reserves, circulating =
// supply - token reserves.
func valuationToken(sol, tokens, supply int64) *domain.Token {
	return &domain.Token{
		MintID:        "mint-1",
		SolReserves:   sol,
		TokenReserves: tokens,
		TotalSupply:   supply,
		Status:        domain.StatusActive,
		IsActive:      true,
	}
}

func TestEvaluate_ExactThreshold(t *testing.T) {
	// price = 1e9/1e3 = 1e6 lamports per unit; circulating = 1000;
	// cap = 1e6 * 1000 / 1e9 = 1 SOL. At $50,000/SOL that is exactly
	// the threshold, and >= means ready.
	tok := valuationToken(1_000_000_000, 1_000, 2_000)
	ev := NewEvaluator(pricefeed.NewStaticFeed(decimal.NewFromInt(50_000)))

	got, err := ev.Evaluate(context.Background(), tok)
	require.NoError(t, err)

	assert.True(t, got.MarketCapUSD.Equal(decimal.NewFromInt(50_000)), "cap %s", got.MarketCapUSD)
	assert.True(t, got.Ready)
	assert.True(t, got.ProgressPct.Equal(decimal.NewFromInt(100)))
	assert.True(t, ev.RemainingUSD(got).IsZero())
}

func TestEvaluate_JustBelowThreshold(t *testing.T) {
	tok := valuationToken(1_000_000_000, 1_000, 2_000)
	ev := NewEvaluator(pricefeed.NewStaticFeed(decimal.NewFromInt(49_999)))

	got, err := ev.Evaluate(context.Background(), tok)
	require.NoError(t, err)

	assert.True(t, got.MarketCapUSD.Equal(decimal.NewFromInt(49_999)))
	assert.False(t, got.Ready)
	assert.True(t, got.ProgressPct.LessThan(decimal.NewFromInt(100)))
	assert.True(t, ev.RemainingUSD(got).Equal(decimal.NewFromInt(1)))
}

func TestEvaluate_FreshLaunchFarFromThreshold(t *testing.T) {
	tok := domain.NewToken("mint-1", "Test", "TST", 0)
	ev := NewEvaluator(pricefeed.NewStaticFeed(decimal.NewFromInt(150)))

	got, err := ev.Evaluate(context.Background(), tok)
	require.NoError(t, err)

	// Launch reserves leave 5% of supply circulating; the implied cap is
	// a few hundred dollars, nowhere near $50k.
	assert.False(t, got.Ready)
	assert.True(t, got.MarketCapUSD.LessThan(decimal.NewFromInt(1_000)), "cap %s", got.MarketCapUSD)
	assert.True(t, got.ProgressPct.LessThan(decimal.NewFromInt(2)))
}

func TestEvaluate_ZeroTokenReserves(t *testing.T) {
	tok := valuationToken(1_000_000_000, 0, 2_000)
	ev := NewEvaluator(pricefeed.NewStaticFeed(decimal.NewFromInt(150)))

	got, err := ev.Evaluate(context.Background(), tok)
	require.NoError(t, err)

	assert.False(t, got.Ready)
	assert.True(t, got.MarketCapUSD.IsZero())
}

func TestEvaluate_NoCirculatingSupply(t *testing.T) {
	// All supply still on the curve: zero circulating, zero cap, even at
	// an absurd SOL price.
	tok := valuationToken(1_000_000_000, 2_000, 2_000)
	ev := NewEvaluator(pricefeed.NewStaticFeed(decimal.NewFromInt(1_000_000)))

	got, err := ev.Evaluate(context.Background(), tok)
	require.NoError(t, err)

	assert.False(t, got.Ready)
	assert.True(t, got.MarketCapUSD.IsZero())
}

func TestEvaluate_ProgressCappedAt100(t *testing.T) {
	tok := valuationToken(1_000_000_000, 1_000, 2_000)
	ev := NewEvaluator(pricefeed.NewStaticFeed(decimal.NewFromInt(500_000)))

	got, err := ev.Evaluate(context.Background(), tok)
	require.NoError(t, err)

	assert.True(t, got.Ready)
	assert.True(t, got.ProgressPct.Equal(decimal.NewFromInt(100)))
}
