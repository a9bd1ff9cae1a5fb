package graduation

import (
	"context"
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"curve-launchpad/internal/domain"
)

// PoolHandoff provisions the external trading venue for a graduating
// token and returns an opaque pool reference.
type PoolHandoff interface {
	CreatePool(ctx context.Context, token *domain.Token) (string, error)
}

// SimulatedHandoff derives a deterministic pool address instead of
// submitting a real pool creation. Re-running it for the same mint yields
// the same reference, which keeps finalize resumable after a crash.
type SimulatedHandoff struct {
	programSeed []byte
}

// NewSimulatedHandoff creates a handoff scoped to the given program name.
func NewSimulatedHandoff(program string) *SimulatedHandoff {
	seed := sha256.Sum256([]byte(program))
	return &SimulatedHandoff{programSeed: seed[:]}
}

var _ PoolHandoff = (*SimulatedHandoff)(nil)

// CreatePool derives the pool address for a mint.
func (h *SimulatedHandoff) CreatePool(_ context.Context, token *domain.Token) (string, error) {
	mintSeed := sha256.Sum256([]byte(token.MintID))
	addr := deriveProgramAddress([][]byte{[]byte("launch_pool"), mintSeed[:]}, h.programSeed)
	if addr == "" {
		return "", fmt.Errorf("derive pool address for %s: no off-curve bump", token.MintID)
	}
	return addr, nil
}

// deriveProgramAddress finds the first bump (255 down) whose
// sha256(seeds || bump || programID || "ProgramDerivedAddress") hash is
// off the ed25519 curve, and returns it base58-encoded.
func deriveProgramAddress(seeds [][]byte, programID []byte) string {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
