package chain

import (
	"context"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/infra/chain/evm"
	"github.com/vietddude/holdings/internal/infra/rpc"
)

// Client is the chain access interface required by the snapshot pipeline.
// All methods are admission-controlled by the network's rate limiter.
type Client interface {
	// LatestBlock returns the current block number and its unix timestamp.
	LatestBlock(ctx context.Context) (number uint64, timestamp uint64, err error)

	// BlockAt returns the unix timestamp of the given block. It fails if
	// the block does not exist or the call fails.
	BlockAt(ctx context.Context, number uint64) (timestamp uint64, err error)

	// BatchRead bundles many independent balance reads at a fixed block
	// into one transport call, returning per-call results in request order.
	BatchRead(ctx context.Context, calls []evm.BalanceCall, atBlock uint64) ([]evm.ReadResult, error)
}

// Registry holds one rate-limited client per configured network. It is
// constructed once from configuration and passed by reference wherever
// chain access is needed.
type Registry struct {
	clients  map[string]Client
	networks map[string]domain.Network
}

// NewRegistry builds clients for all configured networks.
func NewRegistry(networks []domain.Network, timeout time.Duration) *Registry {
	r := &Registry{
		clients:  make(map[string]Client, len(networks)),
		networks: make(map[string]domain.Network, len(networks)),
	}
	for _, n := range networks {
		provider := rpc.NewProvider(n.ID, n.RPCURL, timeout)
		limiter := rpc.NewLimiter(n.ID, n.RateLimitRPS)
		r.clients[n.ID] = evm.NewClient(n.ID, provider, limiter)
		r.networks[n.ID] = n
	}
	return r
}

// Client returns the client for a network, or false if the network is not
// configured.
func (r *Registry) Client(networkID string) (Client, bool) {
	c, ok := r.clients[networkID]
	return c, ok
}

// Network returns the configuration for a network id.
func (r *Registry) Network(networkID string) (domain.Network, bool) {
	n, ok := r.networks[networkID]
	return n, ok
}
