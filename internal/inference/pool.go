package inference

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many Generate calls run against the engine at once and how
// long each may take. Callers beyond the limit wait for a slot or for their
// context to end.
type Pool struct {
	engine  Engine
	slots   *semaphore.Weighted
	timeout time.Duration
}

func NewPool(engine Engine, concurrency int, timeout time.Duration) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		engine:  engine,
		slots:   semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
	}
}

func (p *Pool) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for engine slot: %w", err)
	}
	defer p.slots.Release(1)

	text, err := p.engine.Generate(ctx, prompt, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("engine call timed out after %s: %w", p.timeout, err)
		}
		return "", err
	}
	return text, nil
}
