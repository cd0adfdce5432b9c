package domain

// MissingEntry describes one snapshot key that has no stored value or whose
// stored value is too stale to trust. Entries are produced by one
// reconciliation pass and discarded within it; they are never persisted.
type MissingEntry struct {
	WalletAddress string
	NetworkID     string
	TokenAddress  string
	Date          Date
}

// Key returns the snapshot key the entry refers to.
func (m MissingEntry) Key() SnapshotKey {
	return SnapshotKey{
		WalletAddress: m.WalletAddress,
		NetworkID:     m.NetworkID,
		TokenAddress:  m.TokenAddress,
		Date:          m.Date,
	}
}
