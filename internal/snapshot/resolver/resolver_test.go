package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/infra/storage/memory"
	"github.com/vietddude/holdings/internal/snapshot/emitter"
)

// fakeChain serves block timestamps from a fixture map and counts reads.
type fakeChain struct {
	blocks map[uint64]uint64
	latest uint64
	calls  int
	failAt map[uint64]bool
}

func (f *fakeChain) LatestBlock(ctx context.Context) (uint64, uint64, error) {
	f.calls++
	return f.latest, f.blocks[f.latest], nil
}

func (f *fakeChain) BlockAt(ctx context.Context, number uint64) (uint64, error) {
	f.calls++
	if f.failAt[number] {
		return 0, errors.New("rpc: connection reset")
	}
	ts, ok := f.blocks[number]
	if !ok {
		return 0, errors.New("block not found")
	}
	return ts, nil
}

// regularChain builds a chain with evenly spaced block timestamps where the
// tip block `latest` has timestamp tipTs and blocks are spacing seconds
// apart.
func regularChain(latest uint64, tipTs uint64, spacing uint64) *fakeChain {
	blocks := make(map[uint64]uint64, latest+1)
	for n := uint64(0); n <= latest; n++ {
		blocks[n] = tipTs - (latest-n)*spacing
	}
	return &fakeChain{blocks: blocks, latest: latest}
}

const testDate = domain.Date("2024-01-01")

func endOfDayUnix(t *testing.T) int64 {
	t.Helper()
	end, err := testDate.EndOfDay()
	if err != nil {
		t.Fatalf("end of day: %v", err)
	}
	return end.Unix()
}

func newResolver(cfg Config) (*Resolver, *memory.BlockMappingRepo) {
	store := memory.NewMemoryStorage()
	repo := memory.NewBlockMappingRepo(store)
	return New(repo, emitter.NopEmitter{}, cfg), repo
}

func network(blockTimeMs int64) domain.Network {
	return domain.Network{ID: "ethereum", BlockTimeMs: blockTimeMs}
}

// Current block 1000, 12s blocks, target one hour (300 blocks) back. The
// estimate lands exactly on block 700, whose timestamp equals the target;
// the resolver must return the greatest-numbered block at or before the
// target.
func TestResolveEndToEndScenario(t *testing.T) {
	target := endOfDayUnix(t)
	tipTs := uint64(target) + 3600
	chain := regularChain(1000, tipTs, 12)
	r, _ := newResolver(Config{})

	m, err := r.Resolve(context.Background(), chain, network(12000), testDate)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.BlockNumber != 700 {
		t.Errorf("block = %d, want 700", m.BlockNumber)
	}
	if int64(m.BlockTimestamp) != target {
		t.Errorf("timestamp = %d, want %d", m.BlockTimestamp, target)
	}
}

// A misconfigured (too long) block time makes the estimate land after the
// target; the resolver must walk backward to the last block at or before
// it.
func TestResolveBackwardWalk(t *testing.T) {
	target := endOfDayUnix(t)
	tipTs := uint64(target) + 3600
	chain := regularChain(1000, tipTs, 12)
	r, _ := newResolver(Config{})

	// blocksAgo = 3600e3/24000 = 150, estimate 850, ts(850) = target+1800.
	m, err := r.Resolve(context.Background(), chain, network(24000), testDate)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.BlockNumber != 700 {
		t.Errorf("block = %d, want 700", m.BlockNumber)
	}
	if int64(m.BlockTimestamp) > target {
		t.Errorf("resolved timestamp %d is after target %d", m.BlockTimestamp, target)
	}
}

// The forward search is bounded: with the estimate far before the target
// and no block within tolerance reachable, the resolver stops after
// MaxSearchSteps and returns the closest block seen.
func TestResolveForwardSearchBounded(t *testing.T) {
	target := endOfDayUnix(t)
	tipTs := uint64(target) + 3600
	chain := regularChain(1000, tipTs, 12)
	r, _ := newResolver(Config{})

	// blocksAgo = 3600e3/4000 = 900, estimate 100, gap 7200s > 1h.
	m, err := r.Resolve(context.Background(), chain, network(4000), testDate)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.BlockNumber != 200 {
		t.Errorf("block = %d, want 200 (estimate 100 + 100 bounded steps)", m.BlockNumber)
	}
	// 1 latest + 1 estimate + 100 search steps.
	if chain.calls > 102 {
		t.Errorf("chain calls = %d, want <= 102", chain.calls)
	}
}

// The forward search accepts early once a block lands within tolerance.
func TestResolveForwardSearchTolerance(t *testing.T) {
	target := endOfDayUnix(t)
	tipTs := uint64(target) + 3600
	chain := regularChain(1000, tipTs, 12)
	r, _ := newResolver(Config{Tolerance: 60 * time.Second})

	// blocksAgo = 3600e3/11612 = 310, estimate 690, ts(690) = target-120.
	// The gap shrinks 12s per step and reaches the 60s tolerance at block
	// 695.
	m, err := r.Resolve(context.Background(), chain, network(11612), testDate)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.BlockNumber != 695 {
		t.Errorf("block = %d, want 695", m.BlockNumber)
	}
	if int64(m.BlockTimestamp) != target-60 {
		t.Errorf("timestamp = %d, want %d", m.BlockTimestamp, target-60)
	}
}

// Resolving the same (network, date) twice returns identical results and
// the second call makes zero chain calls.
func TestResolveCacheIdempotence(t *testing.T) {
	target := endOfDayUnix(t)
	chain := regularChain(1000, uint64(target)+3600, 12)
	r, _ := newResolver(Config{})
	ctx := context.Background()

	first, err := r.Resolve(ctx, chain, network(12000), testDate)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	callsAfterFirst := chain.calls
	second, err := r.Resolve(ctx, chain, network(12000), testDate)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if chain.calls != callsAfterFirst {
		t.Errorf("second resolve made %d chain calls, want 0", chain.calls-callsAfterFirst)
	}
	if *first != *second {
		t.Errorf("second resolve = %+v, want %+v", second, first)
	}
}

// A date that has not closed yet resolves to the chain tip and must not be
// cached.
func TestResolveFutureDateNotCached(t *testing.T) {
	target := endOfDayUnix(t)
	// Tip is one hour before the end of the requested day.
	chain := regularChain(1000, uint64(target)-3600, 12)
	r, repo := newResolver(Config{})
	ctx := context.Background()

	m, err := r.Resolve(ctx, chain, network(12000), testDate)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.BlockNumber != 1000 {
		t.Errorf("block = %d, want current block 1000", m.BlockNumber)
	}

	cached, err := repo.Get(ctx, "ethereum", testDate)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if cached != nil {
		t.Errorf("future date was cached: %+v", cached)
	}
}

// When the closest block by absolute gap sits after the target, the last
// block at or before the target wins; the resolver never returns a block
// after the target when one at or before it was seen.
func TestResolveMonotonicTieBreak(t *testing.T) {
	target := endOfDayUnix(t)

	// Irregular chain: the target falls between blocks 15 (target-50) and
	// 16 (target+50); earlier blocks stretch further back.
	blocks := make(map[uint64]uint64)
	for n := uint64(0); n <= 15; n++ {
		blocks[n] = uint64(int64(target) - 50 - int64(15-n)*100)
	}
	blocks[16] = uint64(target + 50)
	blocks[17] = uint64(target + 150)
	blocks[18] = uint64(target + 250)
	blocks[19] = uint64(target + 350)
	blocks[20] = uint64(target + 500)
	chain := &fakeChain{blocks: blocks, latest: 20}

	r, _ := newResolver(Config{Tolerance: 10 * time.Second})

	// blocksAgo = 500e3/50000 = 10: the estimate lands on block 10
	// (target-550), below the target and outside tolerance. The forward
	// search reaches block 16, whose |gap| ties block 15's, then stops at
	// block 17 as the gap grows.
	m, err := r.Resolve(context.Background(), chain, network(50000), testDate)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if int64(m.BlockTimestamp) > target {
		t.Fatalf("resolved timestamp %d is after target %d", m.BlockTimestamp, target)
	}
	if m.BlockNumber != 15 {
		t.Errorf("block = %d, want 15 (last block at or before target)", m.BlockNumber)
	}
}

// Chain read failures propagate without retries and leave no cached
// mapping.
func TestResolveChainErrorPropagates(t *testing.T) {
	target := endOfDayUnix(t)
	chain := regularChain(1000, uint64(target)+3600, 12)
	chain.failAt = map[uint64]bool{700: true}
	r, repo := newResolver(Config{})
	ctx := context.Background()

	if _, err := r.Resolve(ctx, chain, network(12000), testDate); err == nil {
		t.Fatal("expected chain error to propagate")
	}

	cached, err := repo.Get(ctx, "ethereum", testDate)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if cached != nil {
		t.Errorf("failed resolution left a cached mapping: %+v", cached)
	}
}

// A successful resolution raises a block-mapping-changed event.
func TestResolveEmitsEvent(t *testing.T) {
	target := endOfDayUnix(t)
	chain := regularChain(1000, uint64(target)+3600, 12)

	store := memory.NewMemoryStorage()
	bus := emitter.NewBus()
	defer bus.Close()
	events, cancel := bus.Subscribe(4)
	defer cancel()

	r := New(memory.NewBlockMappingRepo(store), bus, Config{})
	if _, err := r.Resolve(context.Background(), chain, network(12000), testDate); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	select {
	case e := <-events:
		if e.Type != emitter.EventBlockMappingChanged {
			t.Errorf("event type = %s, want block_mapping_changed", e.Type)
		}
	default:
		t.Fatal("no event emitted")
	}
}
