package e2e

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/holdings/internal/control"
)

func TestGracefulShutdown(t *testing.T) {
	node := newFakeNode(t)
	defer node.Close()

	svc, err := control.NewService(testConfig(node.URL, ""))
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	runError := make(chan error, 1)
	go func() {
		runError <- svc.Run(ctx)
	}()

	// Let it complete at least the initial pass
	time.Sleep(2 * time.Second)

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := svc.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	select {
	case err := <-runError:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Run did not return after cancellation")
	}
}
