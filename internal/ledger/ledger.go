// Package ledger executes bonding-curve trades: it quotes against current
// reserves, then commits the reserve update and trade record atomically.
//
// Concurrency is optimistic. The quote is computed from a snapshot read;
// if another trade lands between the read and the write, the store reports
// a conflict and the ledger re-reads and re-quotes. Retries are bounded so
// a hot token degrades to client-visible conflicts instead of spinning.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"curve-launchpad/internal/curve"
	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/idhash"
	"curve-launchpad/internal/observability"
	"curve-launchpad/internal/storage"
)

// maxRetries bounds the re-quote loop on reserve conflicts.
const maxRetries = 5

var (
	// ErrTokenNotFound is returned when the mint does not exist.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTradingDisabled is returned when the token has left the curve.
	ErrTradingDisabled = errors.New("trading disabled for token")

	// ErrDuplicateSignature is returned when the external signature was
	// already recorded. The original trade stands; nothing was changed.
	ErrDuplicateSignature = errors.New("external signature already recorded")

	// ErrTooMuchContention is returned after exhausting conflict retries.
	ErrTooMuchContention = errors.New("too much contention on token reserves")

	// ErrInvalidRequest is returned for malformed trade requests.
	ErrInvalidRequest = errors.New("invalid trade request")
)

// TradeRequest describes one buy or sell against a token's curve.
type TradeRequest struct {
	MintID            string
	TraderID          string
	Kind              domain.TradeKind
	AmountIn          int64 // lamports for a buy, token units for a sell
	ExternalSignature string
}

// TradeResult is the committed outcome of a trade.
type TradeResult struct {
	Record *domain.TradeRecord
	Quote  *curve.Quote
	Token  *domain.Token // post-trade state
}

// Ledger coordinates quoting and atomic commitment of trades.
type Ledger struct {
	tokens storage.TokenStore
	points storage.CurvePointStore // optional analytics sink
	logger *log.Logger
	nowMs  func() int64
}

// Config configures a Ledger.
type Config struct {
	Tokens storage.TokenStore
	Points storage.CurvePointStore // nil disables curve analytics
	Logger *log.Logger
}

// New creates a Ledger.
func New(cfg Config) (*Ledger, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("ledger: token store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{
		tokens: cfg.Tokens,
		points: cfg.Points,
		logger: logger,
		nowMs:  func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Execute quotes and commits a trade. On success the returned result holds
// the appended record, the executed quote, and the post-trade token state.
//
// A replayed external signature returns ErrDuplicateSignature and leaves
// all state untouched.
func (l *Ledger) Execute(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	if err := validateRequest(req); err != nil {
		observability.RecordTradeRejected("invalid_request")
		return nil, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		token, err := l.tokens.GetByMint(ctx, req.MintID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				observability.RecordTradeRejected("token_not_found")
				return nil, ErrTokenNotFound
			}
			return nil, fmt.Errorf("read token: %w", err)
		}
		if !token.IsActive {
			observability.RecordTradeRejected("trading_disabled")
			return nil, ErrTradingDisabled
		}

		quote, err := curve.Apply(token.SolReserves, token.TokenReserves, req.Kind, req.AmountIn)
		if err != nil {
			observability.RecordTradeRejected("quote_rejected")
			// Both curve rejections are the caller's doing.
			if errors.Is(err, curve.ErrInvalidInput) || errors.Is(err, curve.ErrInsufficientLiquidity) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
			return nil, fmt.Errorf("quote trade: %w", err)
		}

		rec := l.buildRecord(req, quote)
		upd := storage.ReserveUpdate{
			MintID:            req.MintID,
			PrevSolReserves:   token.SolReserves,
			PrevTokenReserves: token.TokenReserves,
			NewSolReserves:    quote.NewSolReserves,
			NewTokenReserves:  quote.NewTokenReserves,
			VolumeDelta:       quote.GrossSolValue(),
		}

		err = l.tokens.ApplyTrade(ctx, upd, rec)
		switch {
		case err == nil:
			token.SolReserves = quote.NewSolReserves
			token.TokenReserves = quote.NewTokenReserves
			token.TotalVolume += upd.VolumeDelta

			observability.RecordTradeExecuted(string(req.Kind), upd.VolumeDelta)
			l.recordCurvePoint(ctx, token, quote, rec)

			return &TradeResult{Record: rec, Quote: quote, Token: token}, nil

		case errors.Is(err, storage.ErrConflict):
			observability.RecordReserveConflict()
			continue

		case errors.Is(err, storage.ErrDuplicateKey):
			observability.RecordTradeRejected("duplicate_signature")
			return nil, ErrDuplicateSignature

		case errors.Is(err, storage.ErrTradingDisabled):
			observability.RecordTradeRejected("trading_disabled")
			return nil, ErrTradingDisabled

		case errors.Is(err, storage.ErrNotFound):
			observability.RecordTradeRejected("token_not_found")
			return nil, ErrTokenNotFound

		default:
			return nil, fmt.Errorf("commit trade: %w", err)
		}
	}

	observability.RecordTradeRejected("contention")
	return nil, ErrTooMuchContention
}

func (l *Ledger) buildRecord(req TradeRequest, quote *curve.Quote) *domain.TradeRecord {
	rec := &domain.TradeRecord{
		TradeID:           idhash.ComputeTradeID(req.MintID, req.TraderID, req.ExternalSignature),
		MintID:            req.MintID,
		TraderID:          req.TraderID,
		Kind:              req.Kind,
		ExternalSignature: req.ExternalSignature,
		CreatedAt:         l.nowMs(),
	}
	if req.Kind == domain.TradeKindBuy {
		rec.TokenAmount = quote.TokensOut
		rec.SolAmount = quote.AmountIn
	} else {
		rec.TokenAmount = quote.AmountIn
		rec.SolAmount = quote.SolOut
	}
	return rec
}

// recordCurvePoint writes a post-trade curve sample. Analytics failures are
// logged but never fail the trade.
func (l *Ledger) recordCurvePoint(ctx context.Context, token *domain.Token, quote *curve.Quote, rec *domain.TradeRecord) {
	if l.points == nil {
		return
	}

	point := &domain.CurvePoint{
		MintID:        token.MintID,
		TimestampMs:   rec.CreatedAt,
		Kind:          rec.Kind,
		Price:         float64(quote.NewSolReserves) / float64(quote.NewTokenReserves),
		SolReserves:   quote.NewSolReserves,
		TokenReserves: quote.NewTokenReserves,
		VolumeDelta:   quote.GrossSolValue(),
	}

	err := l.points.Insert(ctx, point)
	observability.RecordCurvePoint(err)
	if err != nil {
		l.logger.Printf("curve point write failed for %s: %v", token.MintID, err)
	}
}

func validateRequest(req TradeRequest) error {
	if req.MintID == "" || req.TraderID == "" || req.ExternalSignature == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidRequest)
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown trade kind %q", ErrInvalidRequest, req.Kind)
	}
	if req.AmountIn <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}
