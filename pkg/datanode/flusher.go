package datanode

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/metrics/prometheus"
)

// DefaultFlushPeriod is how often the flusher samples the dirty-page count.
const DefaultFlushPeriod = 100 * time.Millisecond

// DefaultThresholdRatio is the fraction of cache capacity, in pages, that
// triggers a flush once the dirty-page count reaches or exceeds it.
const DefaultThresholdRatio = 0.4

// diagnostics is the subset of Handler the flusher polls. It exists so the
// flusher can be tested against a fake without spinning up a full
// BlockManager.
type diagnostics interface {
	DirtyPageCount() int
	CacheCapacity() int
	FlushDirtyPages() int
}

// Flusher is the single periodic background task that bounds worst-case
// recovery and shutdown flush time by proactively draining dirty pages
// once they cross a threshold, rather than waiting for eviction pressure.
type Flusher struct {
	target diagnostics
	period time.Duration
	ratio  float64

	metrics *prometheus.DataNodeMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SetMetrics installs the Prometheus instrumentation used to record each
// sweep's outcome. A nil metrics (the default) disables instrumentation.
func (f *Flusher) SetMetrics(m *prometheus.DataNodeMetrics) {
	f.metrics = m
}

// NewFlusher constructs a Flusher over target using the hard-coded period
// and threshold ratio. It must be started with Start and is only useful
// when the underlying cache is enabled - callers should not start one
// otherwise.
func NewFlusher(target diagnostics) *Flusher {
	return &Flusher{
		target: target,
		period: DefaultFlushPeriod,
		ratio:  DefaultThresholdRatio,
	}
}

// Start launches the flusher's background goroutine. It returns
// immediately; the goroutine runs until ctx is cancelled or Stop is
// called.
func (f *Flusher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(1)
	go f.run(ctx)
}

// Stop cancels the background goroutine and waits for it to exit. It is
// safe to call Stop without a preceding Start.
func (f *Flusher) Stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.wg.Wait()
}

func (f *Flusher) run(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.sweep()
		}
	}
}

func (f *Flusher) sweep() {
	capacity := f.target.CacheCapacity()
	if capacity == 0 {
		return
	}
	threshold := int(math.Ceil(float64(capacity) * f.ratio))
	dirty := f.target.DirtyPageCount()
	if dirty < threshold {
		return
	}

	flushed := f.target.FlushDirtyPages()
	f.metrics.RecordFlusherSweep(flushed)
	logger.Info("datanode: background flusher drained dirty pages",
		logger.DirtyPages(flushed), logger.CacheCapacity(capacity))
}
