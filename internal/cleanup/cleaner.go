package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/buildcamp/progression-engine/internal/storage"
)

// Pruner periodically deletes stage transition audit records older than
// the retention window. The write path never depends on it; losing old
// audit rows only shortens the visible history.
type Pruner struct {
	repo      storage.Repository
	interval  time.Duration
	retention time.Duration
}

// NewPruner creates an audit retention worker
func NewPruner(repo storage.Repository, interval, retention time.Duration) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}

	return &Pruner{
		repo:      repo,
		interval:  interval,
		retention: retention,
	}
}

// Start begins the pruning worker in a goroutine
func (p *Pruner) Start(ctx context.Context) {
	go p.run(ctx)
}

// run is the main loop for the pruning worker
func (p *Pruner) run(ctx context.Context) {
	slog.Info("audit pruner started", "interval", p.interval, "retention", p.retention)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Run immediately on start
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit pruner stopped")
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

// prune deletes audit records past the retention window
func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)

	pruned, err := p.repo.PruneStageTransitions(ctx, cutoff)
	if err != nil {
		slog.Error("failed to prune stage transitions", "error", err)
		return
	}

	if pruned > 0 {
		slog.Info("stage transitions pruned", "count", pruned, "cutoff", cutoff)
	} else {
		slog.Debug("no stage transitions past retention")
	}
}
