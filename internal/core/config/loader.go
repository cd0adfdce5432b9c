package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/holdings/internal/core/domain"
)

const (
	defaultBlockTimeMs    = 12000
	defaultRateLimitRPS   = 10
	defaultHistoryDays    = 7
	defaultUpdateInterval = 5 * time.Minute
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *AppConfig) applyDefaults() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.HistoryDays < 1 {
		cfg.HistoryDays = defaultHistoryDays
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = defaultUpdateInterval
	}

	if len(cfg.Networks) == 0 {
		return fmt.Errorf("no networks configured")
	}
	for i := range cfg.Networks {
		n := &cfg.Networks[i]
		if n.ID == "" {
			return fmt.Errorf("network %d: id is required", i)
		}
		if n.RPCURL == "" {
			return fmt.Errorf("network %s: rpc_url is required", n.ID)
		}
		if n.BlockTimeMs <= 0 {
			n.BlockTimeMs = defaultBlockTimeMs
		}
		if n.RateLimitRPS <= 0 {
			n.RateLimitRPS = defaultRateLimitRPS
		}
		for j := range n.Tokens {
			addr, err := domain.NormalizeAddress(n.Tokens[j].Address)
			if err != nil {
				return fmt.Errorf("network %s: token %q: %w", n.ID, n.Tokens[j].Symbol, err)
			}
			n.Tokens[j].Address = addr
		}
	}

	for i := range cfg.Wallets {
		addr, err := domain.NormalizeAddress(cfg.Wallets[i].Address)
		if err != nil {
			return fmt.Errorf("wallet %d: %w", i, err)
		}
		cfg.Wallets[i].Address = addr
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return nil
}

// DomainNetworks converts the configured networks to domain types.
func (cfg *AppConfig) DomainNetworks() []domain.Network {
	networks := make([]domain.Network, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		tokens := make([]domain.TokenInfo, 0, len(n.Tokens))
		for _, t := range n.Tokens {
			tokens = append(tokens, domain.TokenInfo{
				Address:  t.Address,
				Symbol:   t.Symbol,
				Decimals: t.Decimals,
			})
		}
		networks = append(networks, domain.Network{
			ID:     n.ID,
			Name:   n.Name,
			RPCURL: n.RPCURL,
			NativeToken: domain.TokenInfo{
				Address:  domain.NativeTokenAddress,
				Symbol:   n.NativeToken.Symbol,
				Decimals: n.NativeToken.Decimals,
			},
			BlockTimeMs:  n.BlockTimeMs,
			RateLimitRPS: n.RateLimitRPS,
			Tokens:       tokens,
		})
	}
	return networks
}

// DomainWallets converts the configured wallets to domain types.
func (cfg *AppConfig) DomainWallets() []domain.Wallet {
	wallets := make([]domain.Wallet, 0, len(cfg.Wallets))
	for _, w := range cfg.Wallets {
		wallets = append(wallets, domain.Wallet{Address: w.Address, Label: w.Label})
	}
	return wallets
}
