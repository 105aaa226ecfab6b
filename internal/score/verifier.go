package score

import (
	"math/big"

	"github.com/google/uuid"
)

// Proof is a merkle-backed attestation that an account holds a credit score
// under a protocol namespace. Score is 18-decimal fixed-point.
type Proof struct {
	Account     uuid.UUID
	Protocol    string
	Score       *big.Int
	MerkleProof [][32]byte
}

// Verifier validates score proofs. The core never re-implements proof
// verification, only consumes the verified score.
type Verifier interface {
	// Verify returns the proven score, or an error if the proof does not
	// resolve to the active root for its protocol. now is event time
	// (epoch seconds) used for pending-root activation.
	Verify(proof *Proof, now int64) (*big.Int, error)

	// MaxScore is the top of the score range; scores above it are clamped
	// by the ratio assessor.
	MaxScore() *big.Int
}
