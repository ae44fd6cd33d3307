package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type blockingEngine struct {
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (e *blockingEngine) Generate(ctx context.Context, _ string, _ Params) (string, error) {
	current := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		peak := e.peak.Load()
		if current <= peak || e.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	select {
	case <-e.release:
		return "SELECT 1", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	engine := &blockingEngine{release: make(chan struct{})}
	pool := NewPool(engine, 2, 0)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Generate(context.Background(), "p", Params{}); err != nil {
				t.Errorf("Generate() error = %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(engine.release)
	wg.Wait()

	if peak := engine.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestPoolTimeout(t *testing.T) {
	engine := &blockingEngine{release: make(chan struct{})}
	pool := NewPool(engine, 1, 20*time.Millisecond)

	_, err := pool.Generate(context.Background(), "p", Params{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
