package domain

// CurvePoint is one analytics sample of curve state taken after a trade.
// Corresponds to curve_points table in ClickHouse. Best-effort: a missing
// point never indicates a missing trade, the ledger is the source of truth.
type CurvePoint struct {
	MintID        string    `json:"mint_id"`
	TimestampMs   int64     `json:"timestamp_ms"`
	Kind          TradeKind `json:"kind"`
	Price         float64   `json:"price"` // sol_reserves / token_reserves after the trade
	SolReserves   int64     `json:"sol_reserves"`
	TokenReserves int64     `json:"token_reserves"`
	VolumeDelta   int64     `json:"volume_delta"` // gross SOL value of the trade, lamports
}
