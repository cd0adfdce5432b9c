package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
server:
  port: 9090
networks:
  - id: ethereum
    name: Ethereum
    rpc_url: https://rpc.example.com
    native_token:
      symbol: ETH
      decimals: 18
    tokens:
      - address: "0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48"
        symbol: USDC
        decimals: 6
wallets:
  - address: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
    label: main
history_days: 3
update_interval: 30s
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.HistoryDays != 3 {
		t.Errorf("history_days = %d, want 3", cfg.HistoryDays)
	}
	if cfg.UpdateInterval != 30*time.Second {
		t.Errorf("update_interval = %v, want 30s", cfg.UpdateInterval)
	}

	n := cfg.Networks[0]
	if n.BlockTimeMs != defaultBlockTimeMs {
		t.Errorf("block_time_ms default = %d, want %d", n.BlockTimeMs, defaultBlockTimeMs)
	}
	if n.RateLimitRPS != defaultRateLimitRPS {
		t.Errorf("rate_limit_rps default = %v, want %v", n.RateLimitRPS, float64(defaultRateLimitRPS))
	}

	// Addresses are canonicalized on load.
	if got := n.Tokens[0].Address; got != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Errorf("token address not canonical: %s", got)
	}
	if got := cfg.Wallets[0].Address; got != "0xab5801a7d398351b8be11c439e05c5b3259aec9b" {
		t.Errorf("wallet address not canonical: %s", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
networks:
  - id: ethereum
    rpc_url: https://rpc.example.com
    native_token:
      symbol: ETH
      decimals: 18
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.HistoryDays != defaultHistoryDays {
		t.Errorf("default history_days = %d, want %d", cfg.HistoryDays, defaultHistoryDays)
	}
	if cfg.UpdateInterval != defaultUpdateInterval {
		t.Errorf("default update_interval = %v, want %v", cfg.UpdateInterval, defaultUpdateInterval)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "https://env.example.com")
	cfg, err := Load(writeConfig(t, `
networks:
  - id: ethereum
    rpc_url: ${TEST_RPC_URL}
    native_token:
      symbol: ETH
      decimals: 18
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Networks[0].RPCURL != "https://env.example.com" {
		t.Errorf("rpc_url = %s, env var not expanded", cfg.Networks[0].RPCURL)
	}
}

func TestLoadRejectsBadAddress(t *testing.T) {
	_, err := Load(writeConfig(t, `
networks:
  - id: ethereum
    rpc_url: https://rpc.example.com
    native_token:
      symbol: ETH
      decimals: 18
wallets:
  - address: "not-an-address"
`))
	if err == nil {
		t.Fatal("expected error for malformed wallet address")
	}
}

func TestLoadRequiresNetworks(t *testing.T) {
	if _, err := Load(writeConfig(t, `server: {port: 8080}`)); err == nil {
		t.Fatal("expected error for empty network list")
	}
}

func TestDomainConversion(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	networks := cfg.DomainNetworks()
	if len(networks) != 1 {
		t.Fatalf("expected 1 network, got %d", len(networks))
	}
	if networks[0].NativeToken.Address != "native" {
		t.Errorf("native token address = %s, want sentinel", networks[0].NativeToken.Address)
	}

	wallets := cfg.DomainWallets()
	if len(wallets) != 1 || wallets[0].Label != "main" {
		t.Errorf("unexpected wallets: %+v", wallets)
	}
}
