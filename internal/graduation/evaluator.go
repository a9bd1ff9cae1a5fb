// Package graduation decides when a bonding-curve token has outgrown the
// curve and moves it to an external pool.
package graduation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/pricefeed"
)

// GraduationThresholdUSD is the market cap at which a token leaves the curve.
var GraduationThresholdUSD = decimal.NewFromInt(50_000)

// lamportsPerSol converts reserve lamports to SOL for valuation.
var lamportsPerSol = decimal.NewFromInt(1_000_000_000)

// Evaluation is the valuation of one token against the threshold.
type Evaluation struct {
	PriceSol     decimal.Decimal // SOL per token base unit
	MarketCapUSD decimal.Decimal
	ProgressPct  decimal.Decimal // 0..100, capped
	Ready        bool
}

// Evaluator computes market caps from curve reserves and the SOL price.
type Evaluator struct {
	feed      pricefeed.Feed
	threshold decimal.Decimal
}

// NewEvaluator creates an Evaluator using the given price feed.
func NewEvaluator(feed pricefeed.Feed) *Evaluator {
	return &Evaluator{feed: feed, threshold: GraduationThresholdUSD}
}

// Evaluate values the token at the current SOL price.
//
// The spot price is solReserves/tokenReserves. Circulating supply is total
// supply minus what still sits on the curve; a token nobody bought has
// zero circulating supply and therefore zero market cap.
func (e *Evaluator) Evaluate(ctx context.Context, token *domain.Token) (Evaluation, error) {
	solUSD, err := e.feed.SolPrice(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("sol price: %w", err)
	}
	return e.evaluateAt(token, solUSD), nil
}

func (e *Evaluator) evaluateAt(token *domain.Token, solUSD decimal.Decimal) Evaluation {
	var ev Evaluation

	if token.TokenReserves <= 0 {
		return ev
	}

	sol := decimal.NewFromInt(token.SolReserves)
	tokens := decimal.NewFromInt(token.TokenReserves)
	ev.PriceSol = sol.Div(tokens)

	circulating := token.TotalSupply - token.TokenReserves
	if circulating < 0 {
		circulating = 0
	}

	capSol := ev.PriceSol.Mul(decimal.NewFromInt(circulating)).Div(lamportsPerSol)
	ev.MarketCapUSD = capSol.Mul(solUSD)

	ev.Ready = ev.MarketCapUSD.GreaterThanOrEqual(e.threshold)
	ev.ProgressPct = ev.MarketCapUSD.Div(e.threshold).Mul(decimal.NewFromInt(100))
	if ev.ProgressPct.GreaterThan(decimal.NewFromInt(100)) {
		ev.ProgressPct = decimal.NewFromInt(100)
	}

	return ev
}

// RemainingUSD is how much market cap is still missing to graduate.
// Zero once the threshold is met.
func (e *Evaluator) RemainingUSD(ev Evaluation) decimal.Decimal {
	remaining := e.threshold.Sub(ev.MarketCapUSD)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
