package domain

import "time"

// SnapshotKey identifies one balance snapshot: one token of one wallet on
// one network on one calendar date. The native currency uses
// NativeTokenAddress as its token address.
type SnapshotKey struct {
	WalletAddress string
	NetworkID     string
	TokenAddress  string
	Date          Date
}

// BalanceSnapshot is the recorded balance for one snapshot key. Balance is
// an arbitrary-precision integer carried as a decimal string; CapturedAt is
// the timestamp of the block the balance was read at. At most one snapshot
// exists per key; a later write for the same key fully replaces the row.
type BalanceSnapshot struct {
	WalletAddress string
	NetworkID     string
	TokenAddress  string
	Date          Date
	Symbol        string
	Balance       string
	BlockNumber   uint64
	CapturedAt    time.Time
}

// Key returns the composite key of the snapshot.
func (s *BalanceSnapshot) Key() SnapshotKey {
	return SnapshotKey{
		WalletAddress: s.WalletAddress,
		NetworkID:     s.NetworkID,
		TokenAddress:  s.TokenAddress,
		Date:          s.Date,
	}
}

// BlockMapping associates a calendar date with the block representing that
// date's end-of-day state on one network. Once resolved it is treated as
// immutable truth for that date.
type BlockMapping struct {
	NetworkID      string
	Date           Date
	BlockNumber    uint64
	BlockTimestamp uint64
}
