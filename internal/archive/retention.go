package archive

import (
	"context"
	"time"

	"github.com/nerrad567/probekit/internal/clock"
)

const pruneTimeout = 30 * time.Second

// retention is the pruning schedule started by StartRetention.
type retention struct {
	maxAge   time.Duration
	interval time.Duration
	clock    clock.Clock
	timer    clock.Timer
}

// StartRetention deletes records older than maxAge every interval, the
// first run one interval from now. Close stops it. A non-positive maxAge
// or interval keeps records forever.
func (r *Recorder) StartRetention(maxAge, interval time.Duration, clk clock.Clock) {
	if maxAge <= 0 || interval <= 0 {
		return
	}
	if clk == nil {
		clk = clock.Real()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.retention != nil && r.retention.timer != nil {
		r.retention.timer.Stop()
	}
	r.retention = &retention{maxAge: maxAge, interval: interval, clock: clk}
	r.retention.timer = clk.AfterFunc(interval, r.pruneTick)
}

// Pruned returns how many records retention has deleted.
func (r *Recorder) Pruned() int64 {
	return r.pruned.Load()
}

func (r *Recorder) pruneTick() {
	r.mu.Lock()
	if r.closed || r.retention == nil {
		r.mu.Unlock()
		return
	}
	ret := *r.retention
	r.pruning.Add(1)
	r.mu.Unlock()

	r.prune(ret.clock.Now().Add(-ret.maxAge))
	r.pruning.Done()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed && r.retention != nil {
		r.retention.timer = ret.clock.AfterFunc(ret.interval, r.pruneTick)
	}
}

func (r *Recorder) prune(cutoff time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	n, err := r.repo.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Error("archive prune failed", "error", err)
		return
	}
	if n > 0 {
		r.pruned.Add(n)
		r.logger.Info("archive pruned", "records", n, "cutoff", cutoff)
	}
}
