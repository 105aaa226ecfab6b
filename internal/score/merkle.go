package score

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

var (
	ErrInvalidProof = errors.New("score proof failed verification")
	ErrUnauthorized = errors.New("caller may not manage score roots")
	ErrNoRoot       = errors.New("no active score root for protocol")
)

// MerkleStore holds per-protocol merkle roots of (account, protocol, score)
// leaves. Root rotation is role-gated and time-delayed: a staged root only
// becomes active after rootDelay seconds of event time, so a score downgrade
// cannot be used against an account in the same breath it is published.
type MerkleStore struct {
	maxScore  *big.Int
	admin     uuid.UUID
	updater   uuid.UUID
	rootDelay int64 // seconds

	active  map[string][32]byte
	pending map[string]pendingRoot
}

type pendingRoot struct {
	root        [32]byte
	activatesAt int64
}

func NewMerkleStore(admin uuid.UUID, maxScore *big.Int, rootDelaySeconds int64) *MerkleStore {
	return &MerkleStore{
		maxScore:  new(big.Int).Set(maxScore),
		admin:     admin,
		rootDelay: rootDelaySeconds,
		active:    make(map[string][32]byte),
		pending:   make(map[string]pendingRoot),
	}
}

func (s *MerkleStore) MaxScore() *big.Int {
	return new(big.Int).Set(s.maxScore)
}

// SetUpdater designates a secondary role allowed to stage roots. Admin only.
func (s *MerkleStore) SetUpdater(caller, updater uuid.UUID) error {
	if caller != s.admin {
		return ErrUnauthorized
	}
	s.updater = updater
	return nil
}

// StageRoot schedules a new root for a protocol. The root activates after the
// configured delay; an admin call with zero delay activates immediately.
func (s *MerkleStore) StageRoot(caller uuid.UUID, protocol string, root [32]byte, now int64) error {
	if caller != s.admin && caller != s.updater {
		return ErrUnauthorized
	}

	activatesAt := now + s.rootDelay
	if s.rootDelay == 0 {
		s.active[protocol] = root
		delete(s.pending, protocol)
		return nil
	}

	s.pending[protocol] = pendingRoot{root: root, activatesAt: activatesAt}
	return nil
}

// promote activates any pending root whose delay has elapsed.
func (s *MerkleStore) promote(protocol string, now int64) {
	p, ok := s.pending[protocol]
	if !ok || now < p.activatesAt {
		return
	}
	s.active[protocol] = p.root
	delete(s.pending, protocol)
}

// ActiveRoot returns the current root for a protocol, promoting a due
// pending root first.
func (s *MerkleStore) ActiveRoot(protocol string, now int64) ([32]byte, bool) {
	s.promote(protocol, now)
	root, ok := s.active[protocol]
	return root, ok
}

// Verify checks the proof against the active root for its protocol and
// returns the proven score.
func (s *MerkleStore) Verify(proof *Proof, now int64) (*big.Int, error) {
	if proof == nil || proof.Score == nil || proof.Score.Sign() < 0 {
		return nil, ErrInvalidProof
	}

	root, ok := s.ActiveRoot(proof.Protocol, now)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRoot, proof.Protocol)
	}

	node := LeafHash(proof.Account, proof.Protocol, proof.Score)
	for _, sibling := range proof.MerkleProof {
		node = combine(node, sibling)
	}

	if node != root {
		return nil, ErrInvalidProof
	}
	return new(big.Int).Set(proof.Score), nil
}

// LeafHash computes the leaf for an (account, protocol, score) tuple:
// sha256(account_bytes || protocol || score_be_bytes).
func LeafHash(account uuid.UUID, protocol string, score *big.Int) [32]byte {
	h := sha256.New()
	h.Write(account[:])
	h.Write([]byte(protocol))
	h.Write(score.Bytes())

	var leaf [32]byte
	copy(leaf[:], h.Sum(nil))
	return leaf
}

// combine hashes an interior node from two children in byte order, so the
// proof does not need left/right direction flags.
func combine(a, b [32]byte) [32]byte {
	h := sha256.New()
	if bytes.Compare(a[:], b[:]) <= 0 {
		h.Write(a[:])
		h.Write(b[:])
	} else {
		h.Write(b[:])
		h.Write(a[:])
	}

	var node [32]byte
	copy(node[:], h.Sum(nil))
	return node
}

// BuildRoot computes the root over a set of leaves, pairing sorted nodes at
// each level. Odd nodes promote unchanged. Used by tests and by the offline
// attestation publisher.
func BuildRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, combine(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

// BuildProof returns the sibling path for the leaf at index i. Proof layout
// matches BuildRoot's pairing.
func BuildProof(leaves [][32]byte, index int) [][32]byte {
	var path [][32]byte
	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		sibling := index ^ 1
		if sibling < len(level) {
			path = append(path, level[sibling])
		}

		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, combine(level[i], level[i+1]))
		}
		level = next
		index /= 2
	}
	return path
}
