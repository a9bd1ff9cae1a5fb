// Package curve implements constant-product pricing for bonding-curve
// trades. It is pure computation: no storage access, no side effects.
//
// All reserve arithmetic is integer with floor division. Products of two
// reserves exceed 64 bits, so the invariant k is carried in math/big.
// Rounding always favors the pool: the fee is floored out of the SOL leg
// and reserve divisions floor toward keeping value on the curve.
package curve

import (
	"errors"
	"math"
	"math/big"

	"curve-launchpad/internal/domain"
)

// FeeBps is the protocol fee in basis points, taken from the SOL side of
// every trade (the side leaving the curve), never from the token side.
const (
	FeeBps         int64 = 100
	BpsDenominator int64 = 10_000
)

var (
	// ErrInvalidInput is returned for non-positive amounts or reserves.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientLiquidity is returned when a trade would round to a
	// zero or negative output. Expected for extreme sizes against small
	// reserves; a user-facing rejection, not a fault.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// Quote is the computed outcome of a trade against current reserves.
type Quote struct {
	Kind     domain.TradeKind
	AmountIn int64 // gross input: lamports for a buy, token units for a sell

	TokensOut int64 // set for buys
	SolOut    int64 // set for sells, net of fee

	Fee              int64 // protocol fee, lamports
	NewSolReserves   int64
	NewTokenReserves int64

	PriceImpactPct float64 // |execution - spot| / spot * 100
}

// GrossSolValue is the SOL volume the trade contributes: the gross input
// for a buy, the pre-fee output for a sell.
func (q *Quote) GrossSolValue() int64 {
	if q.Kind == domain.TradeKindBuy {
		return q.AmountIn
	}
	return q.SolOut + q.Fee
}

// Buy quotes spending amountIn lamports against the curve.
func Buy(solReserves, tokenReserves, amountIn int64) (*Quote, error) {
	if amountIn <= 0 || solReserves <= 0 || tokenReserves <= 0 {
		return nil, ErrInvalidInput
	}

	fee := mulDivFloor(amountIn, FeeBps, BpsDenominator)
	solAfterFee := amountIn - fee
	if solAfterFee > math.MaxInt64-solReserves {
		return nil, ErrInvalidInput
	}

	k := new(big.Int).Mul(big.NewInt(solReserves), big.NewInt(tokenReserves))
	newSol := solReserves + solAfterFee
	newToken := new(big.Int).Quo(k, big.NewInt(newSol)).Int64()

	tokensOut := tokenReserves - newToken
	if tokensOut <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	q := &Quote{
		Kind:             domain.TradeKindBuy,
		AmountIn:         amountIn,
		TokensOut:        tokensOut,
		Fee:              fee,
		NewSolReserves:   newSol,
		NewTokenReserves: newToken,
	}
	q.PriceImpactPct = priceImpact(solReserves, tokenReserves, solAfterFee, tokensOut)
	return q, nil
}

// Sell quotes redeeming amountIn token units against the curve.
func Sell(solReserves, tokenReserves, amountIn int64) (*Quote, error) {
	if amountIn <= 0 || solReserves <= 0 || tokenReserves <= 0 {
		return nil, ErrInvalidInput
	}
	if amountIn > math.MaxInt64-tokenReserves {
		return nil, ErrInvalidInput
	}

	k := new(big.Int).Mul(big.NewInt(solReserves), big.NewInt(tokenReserves))
	newToken := tokenReserves + amountIn
	newSol := new(big.Int).Quo(k, big.NewInt(newToken)).Int64()

	grossSolOut := solReserves - newSol
	fee := mulDivFloor(grossSolOut, FeeBps, BpsDenominator)
	solOut := grossSolOut - fee
	if solOut <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	q := &Quote{
		Kind:             domain.TradeKindSell,
		AmountIn:         amountIn,
		SolOut:           solOut,
		Fee:              fee,
		NewSolReserves:   newSol,
		NewTokenReserves: newToken,
	}
	q.PriceImpactPct = priceImpact(solReserves, tokenReserves, solOut, amountIn)
	return q, nil
}

// Apply dispatches on trade kind.
func Apply(solReserves, tokenReserves int64, kind domain.TradeKind, amountIn int64) (*Quote, error) {
	switch kind {
	case domain.TradeKindBuy:
		return Buy(solReserves, tokenReserves, amountIn)
	case domain.TradeKindSell:
		return Sell(solReserves, tokenReserves, amountIn)
	default:
		return nil, ErrInvalidInput
	}
}

// priceImpact compares the post-fee execution rate (solAmount/tokenAmount)
// against the pre-trade spot price.
func priceImpact(solReserves, tokenReserves, solAmount, tokenAmount int64) float64 {
	spot := float64(solReserves) / float64(tokenReserves)
	if spot == 0 || tokenAmount == 0 {
		return 0
	}
	exec := float64(solAmount) / float64(tokenAmount)
	impact := (exec - spot) / spot * 100
	if impact < 0 {
		impact = -impact
	}
	return impact
}

// mulDivFloor computes floor(a*b/den) without intermediate overflow.
func mulDivFloor(a, b, den int64) int64 {
	r := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return r.Quo(r, big.NewInt(den)).Int64()
}
