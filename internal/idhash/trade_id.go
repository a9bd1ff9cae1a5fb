package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(mint_id|trader_id|external_signature)
// Returns hex-encoded hash (64 characters).
//
// The external signature alone already identifies a trade; mint and
// trader are folded in so a malformed client cannot collide ids across
// tokens by reusing a signature string.
func ComputeTradeID(mintID, traderID, externalSignature string) string {
	data := fmt.Sprintf("%s|%s|%s", mintID, traderID, externalSignature)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
