package rpc

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// Issues 30 operations against a 10 rps limiter and verifies the admission
// times: no one-second window may carry more than 10 executed operations.
func TestLimiterPacing(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	l := NewLimiter("ethereum", 10)
	ctx := context.Background()

	var mu sync.Mutex
	var admitted []time.Time

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Execute(ctx, func(ctx context.Context) error {
				mu.Lock()
				admitted = append(admitted, time.Now())
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("Execute failed: %v", err)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// 30 operations at 10/s cannot finish in under ~2.9s.
	if elapsed < 2800*time.Millisecond {
		t.Errorf("30 ops at 10 rps finished in %v, limiter admitted too fast", elapsed)
	}

	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })

	// Sliding window check, shrunk slightly to absorb scheduler jitter.
	window := time.Second - 10*time.Millisecond
	for i := range admitted {
		count := 0
		for j := i; j < len(admitted) && admitted[j].Sub(admitted[i]) <= window; j++ {
			count++
		}
		if count > 10 {
			t.Fatalf("window starting at op %d carried %d operations, want <= 10", i, count)
		}
	}
}

func TestLimiterIndependentNetworks(t *testing.T) {
	// Drain one network's bucket; another network must still admit at once.
	a := NewLimiter("ethereum", 1)
	b := NewLimiter("polygon", 1)
	ctx := context.Background()

	if err := a.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("first execute on a: %v", err)
	}

	start := time.Now()
	if err := b.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("execute on b: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("drained bucket on one network delayed another network")
	}
}

func TestLimiterOperationErrorPropagates(t *testing.T) {
	l := NewLimiter("ethereum", 10)
	wantErr := errors.New("boom")

	calls := 0
	err := l.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected operation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1 (no retry on operation errors)", calls)
	}
}

func TestLimiterAcquireTimeoutRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	// One token every 200ms; a 10ms acquisition attempt must time out and
	// be retried until a token becomes available.
	l := NewLimiter("ethereum", 5)
	l.acquireTimeout = 10 * time.Millisecond
	l.retryBackoff = 5 * time.Millisecond
	ctx := context.Background()

	if err := l.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("first execute: %v", err)
	}

	start := time.Now()
	err := l.Execute(ctx, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("second execute should recover from acquisition timeouts, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("second execute admitted after %v, expected to wait for refill", elapsed)
	}
}

func TestLimiterContextCancellation(t *testing.T) {
	l := NewLimiter("ethereum", 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("first execute: %v", err)
	}

	cancel()
	err := l.Execute(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
