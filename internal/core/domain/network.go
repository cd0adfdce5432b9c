package domain

// NativeTokenAddress is the sentinel token address used in snapshot keys
// for a network's native currency.
const NativeTokenAddress = "native"

// TokenInfo describes a fungible token tracked on a network.
type TokenInfo struct {
	Address  string
	Symbol   string
	Decimals int
}

// Network describes one blockchain network. Networks are loaded once from
// configuration and are immutable for the process lifetime.
type Network struct {
	ID           string
	Name         string
	RPCURL       string
	NativeToken  TokenInfo
	BlockTimeMs  int64
	RateLimitRPS float64
	Tokens       []TokenInfo
}
