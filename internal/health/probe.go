// Package health validates that an index is ready to serve queries and
// polls until it becomes so.
package health

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/go-go-golems/bluedex/internal/apierrors"
	"github.com/go-go-golems/bluedex/internal/cluster"
)

// WaitOptions configures WaitReady's poll loop.
type WaitOptions struct {
	Timeout          time.Duration
	CheckInterval    time.Duration
	ExpectedDocCount int64 // 0 means "not checked"
}

// DefaultWaitOptions mirrors the probe's ad-hoc validation defaults.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{Timeout: 60 * time.Second, CheckInterval: 2 * time.Second}
}

// Stats is the human-facing readiness summary for an index.
type Stats struct {
	DocCount     int64
	StoreSize    string
	IndexingRate float64
	SearchRate   float64
	Health       cluster.HealthStatus
}

// Probe validates index readiness and reports stats. It never mutates
// cluster state.
type Probe struct {
	gateway cluster.Gateway
	now     func() time.Time
}

// New builds a Probe over gateway.
func New(gateway cluster.Gateway) *Probe {
	return &Probe{gateway: gateway, now: time.Now}
}

// Validate reports whether index exists, its cluster health is not
// red, and stats retrieval succeeds. Yellow health is acceptable.
func (p *Probe) Validate(ctx context.Context, index string) (bool, error) {
	exists, err := p.gateway.IndexExists(ctx, index)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	health, err := p.gateway.ClusterHealth(ctx, index, "", 10)
	if err != nil {
		return false, err
	}
	if health.Status == cluster.HealthRed {
		return false, nil
	}

	if _, err := p.gateway.IndexStats(ctx, index); err != nil {
		return false, err
	}
	return true, nil
}

// WaitReady polls index until it is ready or opts.Timeout elapses. Each
// tick: if the index does not exist, it retries; if
// opts.ExpectedDocCount is set and the current count is short, it
// retries; otherwise it requests cluster health with
// wait_for_status=yellow and a 10s server-side timeout, succeeding
// unless the result is red. Any transient per-tick error is swallowed
// and retried. Deadline expiry fails with a Timeout error naming index.
func (p *Probe) WaitReady(ctx context.Context, index string, opts WaitOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultWaitOptions().Timeout
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultWaitOptions().CheckInterval
	}

	deadline := p.now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.CheckInterval)
	defer ticker.Stop()

	for {
		if ready, _ := p.tick(ctx, index, opts.ExpectedDocCount); ready {
			return nil
		}
		if p.now().After(deadline) {
			return apierrors.Timeout("index %q did not become ready within %s", index, opts.Timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Probe) tick(ctx context.Context, index string, expectedDocCount int64) (bool, error) {
	exists, err := p.gateway.IndexExists(ctx, index)
	if err != nil || !exists {
		return false, err
	}

	if expectedDocCount > 0 {
		count, err := p.gateway.Count(ctx, index)
		if err != nil {
			return false, err
		}
		if count < expectedDocCount {
			return false, nil
		}
	}

	health, err := p.gateway.ClusterHealth(ctx, index, "yellow", 10)
	if err != nil {
		return false, err
	}
	return health.Status != cluster.HealthRed, nil
}

// StatsFor reports the human-facing readiness summary for index.
func (p *Probe) StatsFor(ctx context.Context, index string) (*Stats, error) {
	stats, err := p.gateway.IndexStats(ctx, index)
	if err != nil {
		return nil, err
	}
	health, err := p.gateway.ClusterHealth(ctx, index, "", 10)
	if err != nil {
		return nil, err
	}
	return &Stats{
		DocCount:     stats.DocCount,
		StoreSize:    humanize.Bytes(uint64(stats.StoreSizeBytes)),
		IndexingRate: stats.IndexingRate,
		SearchRate:   stats.SearchRate,
		Health:       health.Status,
	}, nil
}
