package config

import (
	"time"

	redisclient "github.com/vietddude/holdings/internal/infra/redis"
	"github.com/vietddude/holdings/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server         ServerConfig       `yaml:"server"`
	Networks       []NetworkConfig    `yaml:"networks"`
	Wallets        []WalletConfig     `yaml:"wallets"`
	HistoryDays    int                `yaml:"history_days"`
	RetentionDays  int                `yaml:"retention_days"` // 0 keeps everything
	UpdateInterval time.Duration      `yaml:"update_interval"`
	Redis          redisclient.Config `yaml:"redis"`
	Logging        LoggingConfig      `yaml:"logging"`
	Database       postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// NetworkConfig holds settings for a specific blockchain network.
type NetworkConfig struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	RPCURL       string        `yaml:"rpc_url"`
	NativeToken  TokenConfig   `yaml:"native_token"`
	BlockTimeMs  int64         `yaml:"block_time_ms"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	Tokens       []TokenConfig `yaml:"tokens"`
}

// TokenConfig describes a token tracked on a network.
type TokenConfig struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
}

// WalletConfig holds one monitored wallet address.
type WalletConfig struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}
