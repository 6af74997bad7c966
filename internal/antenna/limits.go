package antenna

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	logpkg "github.com/hotomoe/io/pkg/log"
)

// Policy is the slice of an owner's account policy the engine cares about.
type Policy struct {
	// FeedLimit caps the owner's per-antenna feed size.
	FeedLimit int `json:"feedLimit"`
}

// PolicySource resolves an owner's current policy. Individual calls may
// fail; the batch phase tolerates partial failure.
type PolicySource interface {
	PolicyOf(ctx context.Context, ownerID string) (Policy, error)
}

// LimitResolver resolves per-owner feed limits in two tiers: a concurrent
// best-effort batch that collects only successes, then a synchronous
// per-owner fallback for owners the batch missed. The batch bounds total
// latency; the fallback guarantees every used owner eventually gets a limit.
type LimitResolver struct {
	src         PolicySource
	concurrency int64
	logger      logpkg.Logger
}

// NewLimitResolver creates a LimitResolver. concurrency bounds outstanding
// policy lookups in the batch phase.
func NewLimitResolver(src PolicySource, concurrency int, logger logpkg.Logger) *LimitResolver {
	if concurrency <= 0 {
		concurrency = 16
	}
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("limits")
	}
	return &LimitResolver{src: src, concurrency: int64(concurrency), logger: logger}
}

// ResolveLimits runs the batch phase for the distinct owner ids and returns
// the successfully resolved limits. Failed lookups are logged and simply
// absent from the result; callers fall back per owner via Resolve.
func (r *LimitResolver) ResolveLimits(ctx context.Context, ownerIDs []string) map[string]int {
	distinct := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		distinct[id] = struct{}{}
	}

	sem := semaphore.NewWeighted(r.concurrency)
	var mu sync.Mutex
	out := make(map[string]int, len(distinct))
	var wg sync.WaitGroup
	for owner := range distinct {
		owner := owner
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			p, err := r.src.PolicyOf(ctx, owner)
			if err != nil {
				r.logger.Debug("policy lookup failed in batch phase",
					logpkg.Str("owner", owner), logpkg.Err(err))
				return
			}
			mu.Lock()
			out[owner] = p.FeedLimit
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// Resolve is the synchronous single-owner fallback.
func (r *LimitResolver) Resolve(ctx context.Context, ownerID string) (int, error) {
	p, err := r.src.PolicyOf(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return p.FeedLimit, nil
}
