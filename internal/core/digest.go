package core

import (
	"encoding/binary"
	"math/big"
	"sort"

	"ArcVault/internal/ledger"
	"ArcVault/internal/market"
	"ArcVault/internal/oracle"
	"ArcVault/internal/vault"
)

// computeStateDigest serializes the committed state into canonical bytes for
// the hash chain. Every replica that replays the same event prefix must
// produce identical bytes, so all map iteration is sorted and all integers
// use fixed-width little-endian or length-prefixed encodings.
func computeStateDigest(
	m *market.Market,
	vaults *vault.Store,
	balances *ledger.BalanceTracker,
	prices *oracle.Cache,
) []byte {
	digest := make([]byte, 0, 512)

	// Market state
	digest = append(digest, []byte(m.Config.MarketID)...)
	digest = appendBig(digest, m.Index.BorrowIndex())
	digest = appendInt64LE(digest, m.Index.LastUpdate())
	digest = appendBig(digest, m.Index.RatePerSecond())
	digest = appendBig(digest, m.TotalCollateral)
	digest = appendBig(digest, m.TotalNormalizedBorrowed)
	if m.Paused {
		digest = append(digest, 1)
	} else {
		digest = append(digest, 0)
	}

	// Vaults in account order
	for _, v := range vaults.All() {
		digest = append(digest, v.Account[:]...)
		digest = appendBig(digest, v.CollateralAmount)
		digest = appendBig(digest, v.Principal)
		digest = appendBig(digest, v.NormalizedBorrowedAmount)
	}

	// Ledger balances in account-path order
	snapshot := balances.Snapshot()
	keys := make([]ledger.AccountKey, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].AccountPath() < keys[j].AccountPath()
	})
	for _, key := range keys {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendBig(digest, snapshot[key])
	}

	// Latest prices in market order
	priceSnap := prices.Snapshot()
	markets := make([]string, 0, len(priceSnap))
	for id := range priceSnap {
		markets = append(markets, id)
	}
	sort.Strings(markets)
	for _, id := range markets {
		mp := priceSnap[id]
		digest = append(digest, byte(len(id)))
		digest = append(digest, []byte(id)...)
		digest = appendBig(digest, mp.Price)
		digest = appendInt64LE(digest, mp.PriceSequence)
		digest = appendInt64LE(digest, mp.Timestamp)
	}

	return digest
}

// appendBig encodes a non-negative big.Int as a 2-byte LE length followed by
// its big-endian magnitude bytes.
func appendBig(buf []byte, v *big.Int) []byte {
	var raw []byte
	if v != nil {
		raw = v.Bytes()
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(raw)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, raw...)
}

func appendInt64LE(buf []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}
