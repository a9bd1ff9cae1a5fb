package domain

// TradeKind is the direction of a trade against the curve.
type TradeKind string

const (
	TradeKindBuy  TradeKind = "buy"
	TradeKindSell TradeKind = "sell"
)

// Valid reports whether k is a known trade kind.
func (k TradeKind) Valid() bool {
	return k == TradeKindBuy || k == TradeKindSell
}

// TradeRecord is an immutable record of one executed trade.
// Records are append-only: never updated, never deleted.
// Corresponds to trade_records table in PostgreSQL.
//
// TokenAmount and SolAmount are always positive. For a buy, TokenAmount is
// the tokens received and SolAmount the gross SOL spent; for a sell,
// TokenAmount is the tokens redeemed and SolAmount the net SOL received.
// Either way SolAmount/TokenAmount is the effective price of the record.
type TradeRecord struct {
	TradeID           string    `json:"trade_id"`
	MintID            string    `json:"mint_id"`
	TraderID          string    `json:"trader_id"`
	Kind              TradeKind `json:"kind"`
	TokenAmount       int64     `json:"token_amount"`
	SolAmount         int64     `json:"sol_amount"`
	ExternalSignature string    `json:"external_signature"` // idempotency key for the on-chain leg, UNIQUE
	CreatedAt         int64     `json:"created_at"`         // Unix ms
}
