package domain

// TokenStatus is the lifecycle state of a launched token.
// Transitions are one-way: active → migrating → graduated.
type TokenStatus string

const (
	StatusActive    TokenStatus = "active"
	StatusMigrating TokenStatus = "migrating"
	StatusGraduated TokenStatus = "graduated"
)

// Launch defaults for new tokens. Reserves are virtual: the curve prices
// trades against them, they do not correspond 1:1 to custodied funds.
// Amounts are in smallest units (lamports / token base units).
const (
	DefaultSolReserves   int64 = 25_000_000_000          // 25 SOL
	DefaultTokenReserves int64 = 950_000_000_000_000_000 // 95% of supply on the curve
	DefaultTotalSupply   int64 = 1_000_000_000_000_000_000
)

// Token represents one launched asset and its bonding-curve state.
// Corresponds to tokens table in PostgreSQL.
type Token struct {
	MintID string `json:"mint_id"` // PRIMARY KEY
	Name   string `json:"name"`
	Symbol string `json:"symbol"`

	SolReserves   int64 `json:"sol_reserves"`   // virtual SOL reserves, lamports
	TokenReserves int64 `json:"token_reserves"` // virtual token reserves, base units
	TotalSupply   int64 `json:"total_supply"`   // immutable after creation
	TotalVolume   int64 `json:"total_volume"`   // cumulative gross trade volume, lamports

	Status            TokenStatus `json:"status"`
	IsActive          bool        `json:"is_active"`          // trading enabled; false once Status != active
	MigrationExecuted bool        `json:"migration_executed"` // one-shot latch guarding the migration body

	PoolReference      *string `json:"pool_reference,omitempty"`      // external pool address, set at graduation
	MigrationTimestamp *int64  `json:"migration_timestamp,omitempty"` // Unix ms, set at graduation

	CreatedAt int64 `json:"created_at"` // Unix ms
}

// NewToken constructs a token with launch-default reserves.
func NewToken(mintID, name, symbol string, createdAt int64) *Token {
	return &Token{
		MintID:        mintID,
		Name:          name,
		Symbol:        symbol,
		SolReserves:   DefaultSolReserves,
		TokenReserves: DefaultTokenReserves,
		TotalSupply:   DefaultTotalSupply,
		Status:        StatusActive,
		IsActive:      true,
		CreatedAt:     createdAt,
	}
}
