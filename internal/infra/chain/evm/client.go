package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	logger "log/slog"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/infra/rpc"
)

// BalanceCall is a single balance read inside a multi-read batch. The
// native currency uses domain.NativeTokenAddress as its token address.
type BalanceCall struct {
	TokenAddress  string
	WalletAddress string
}

// ReadResult is the outcome of one call in a batch, order-aligned with the
// request list. Absent marks a missing or reverted result; callers treat it
// as a zero balance.
type ReadResult struct {
	Value  string // arbitrary-precision integer as decimal string
	Absent bool
}

// balanceOfSelector is the 4-byte selector of balanceOf(address).
const balanceOfSelector = "0x70a08231"

// Client reads account state from an EVM network over JSON-RPC. Every call
// funnels through the network's rate limiter.
type Client struct {
	networkID string
	provider  *rpc.Provider
	limiter   *rpc.Limiter
	log       *logger.Logger
}

// NewClient creates a rate-limited EVM client for one network.
func NewClient(networkID string, provider *rpc.Provider, limiter *rpc.Limiter) *Client {
	return &Client{
		networkID: networkID,
		provider:  provider,
		limiter:   limiter,
		log:       logger.Default().With("network", networkID),
	}
}

type blockHeader struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}

// LatestBlock returns the current block number and its unix timestamp.
func (c *Client) LatestBlock(ctx context.Context) (uint64, uint64, error) {
	var raw json.RawMessage
	err := c.limiter.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.provider.Call(ctx, "eth_getBlockByNumber", []any{"latest", false})
		return callErr
	})
	if err != nil {
		return 0, 0, fmt.Errorf("eth_getBlockByNumber latest failed: %w", err)
	}

	var header blockHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return 0, 0, fmt.Errorf("invalid block format: %w", err)
	}
	number, err := parseHexUint(header.Number)
	if err != nil {
		return 0, 0, err
	}
	timestamp, err := parseHexUint(header.Timestamp)
	if err != nil {
		return 0, 0, err
	}
	return number, timestamp, nil
}

// BlockAt returns the unix timestamp of the given block.
func (c *Client) BlockAt(ctx context.Context, number uint64) (uint64, error) {
	var raw json.RawMessage
	err := c.limiter.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.provider.Call(ctx, "eth_getBlockByNumber", []any{hexUint(number), false})
		return callErr
	})
	if err != nil {
		return 0, fmt.Errorf("eth_getBlockByNumber %d failed: %w", number, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("block %d not found", number)
	}

	var header blockHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return 0, fmt.Errorf("invalid block format: %w", err)
	}
	return parseHexUint(header.Timestamp)
}

// BatchRead bundles balance reads at a fixed block into one JSON-RPC batch.
// Native reads use eth_getBalance, token reads use eth_call of
// balanceOf(address). A failed or null entry maps to an absent result.
func (c *Client) BatchRead(ctx context.Context, calls []BalanceCall, atBlock uint64) ([]ReadResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	blockTag := hexUint(atBlock)
	batch := make([]rpc.BatchCall, len(calls))
	for i, bc := range calls {
		if bc.TokenAddress == domain.NativeTokenAddress {
			batch[i] = rpc.BatchCall{
				Method: "eth_getBalance",
				Params: []any{bc.WalletAddress, blockTag},
			}
			continue
		}
		batch[i] = rpc.BatchCall{
			Method: "eth_call",
			Params: []any{
				map[string]string{
					"to":   bc.TokenAddress,
					"data": balanceOfData(bc.WalletAddress),
				},
				blockTag,
			},
		}
	}

	var raw []rpc.BatchResult
	err := c.limiter.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.provider.CallBatch(ctx, batch)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("batch read at block %d failed: %w", atBlock, err)
	}

	results := make([]ReadResult, len(calls))
	for i, r := range raw {
		if r.Absent {
			results[i] = ReadResult{Absent: true}
			continue
		}
		var quantity string
		if err := json.Unmarshal(r.Result, &quantity); err != nil {
			c.log.Debug("unparseable batch entry treated as absent", "index", i, "error", err)
			results[i] = ReadResult{Absent: true}
			continue
		}
		value, err := hexToDecimalString(quantity)
		if err != nil {
			c.log.Debug("unparseable quantity treated as absent", "index", i, "error", err)
			results[i] = ReadResult{Absent: true}
			continue
		}
		results[i] = ReadResult{Value: value}
	}
	return results, nil
}

// balanceOfData encodes the calldata for balanceOf(wallet): the selector
// followed by the address left-padded to a 32-byte word.
func balanceOfData(wallet string) string {
	arg := strings.TrimPrefix(wallet, "0x")
	return balanceOfSelector + strings.Repeat("0", 64-len(arg)) + arg
}
