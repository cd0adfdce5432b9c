package evm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// parseHexUint parses a 0x-prefixed hex quantity into a uint64.
func parseHexUint(s string) (uint64, error) {
	cleaned := strings.TrimPrefix(s, "0x")
	if cleaned == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	v, err := strconv.ParseUint(cleaned, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex quantity %q: %w", s, err)
	}
	return v, nil
}

// hexUint formats a uint64 as a 0x-prefixed hex quantity.
func hexUint(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// hexToDecimalString converts a 0x-prefixed hex quantity of arbitrary size
// into its decimal string form. Empty and zero-length quantities decode to
// "0".
func hexToDecimalString(s string) (string, error) {
	cleaned := strings.TrimPrefix(s, "0x")
	if cleaned == "" {
		return "0", nil
	}
	v, ok := new(big.Int).SetString(cleaned, 16)
	if !ok {
		return "", fmt.Errorf("invalid hex quantity %q", s)
	}
	return v.String(), nil
}
