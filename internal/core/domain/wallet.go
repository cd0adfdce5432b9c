package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Wallet is a monitored account. Identity is the canonical address.
type Wallet struct {
	Address string
	Label   string
}

// ErrInvalidAddress is returned when an address fails canonicalization.
var ErrInvalidAddress = errors.New("invalid address")

// NormalizeAddress converts an account address to its canonical form:
// lowercase, 0x-prefixed, 40 hex digits. Anything else is rejected so that
// malformed input fails before any network or persistence call.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	if len(a) != 42 || !strings.HasPrefix(a, "0x") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	for _, c := range a[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
	}
	return a, nil
}
