// Package prometheus wires the data node's storage-engine counters into
// Prometheus: cache hit/miss/eviction counts, disk operation and byte
// counters, and background-flusher sweep counters.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/StewAway/Distributed-File-System/pkg/metrics"
)

// DataNodeMetrics instruments the cache, disk, and flusher layers of a
// single data node's storage engine.
type DataNodeMetrics struct {
	cacheOperations *prometheus.CounterVec // result: "hit", "miss"
	cacheEvictions  prometheus.Counter
	cacheDirtyPages prometheus.Gauge
	cacheSize       prometheus.Gauge

	diskOperations *prometheus.CounterVec // op: "read", "write", "delete"
	diskBytes      *prometheus.CounterVec // op: "read", "write"

	flusherRuns    prometheus.Counter
	flusherFlushed prometheus.Counter
}

// New constructs a DataNodeMetrics instance, or returns nil if metrics are
// not enabled (InitRegistry not called). Callers should tolerate a nil
// *DataNodeMetrics: every Record* method below is a safe no-op on nil.
func New() *DataNodeMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &DataNodeMetrics{
		cacheOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "datanode_cache_operations_total",
				Help: "Total page cache get operations by result",
			},
			[]string{"result"},
		),
		cacheEvictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "datanode_cache_evictions_total",
			Help: "Total number of pages evicted from the page cache",
		}),
		cacheDirtyPages: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "datanode_cache_dirty_pages",
			Help: "Current number of dirty pages held by the page cache",
		}),
		cacheSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "datanode_cache_resident_pages",
			Help: "Current number of pages resident in the page cache",
		}),
		diskOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "datanode_disk_operations_total",
				Help: "Total DiskStore operations by kind",
			},
			[]string{"op"},
		),
		diskBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "datanode_disk_bytes_total",
				Help: "Total bytes moved through DiskStore by kind",
			},
			[]string{"op"},
		),
		flusherRuns: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "datanode_flusher_sweeps_total",
			Help: "Total background flusher sweeps that triggered a flush",
		}),
		flusherFlushed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "datanode_flusher_pages_flushed_total",
			Help: "Total pages flushed to disk by the background flusher",
		}),
	}
}

func (m *DataNodeMetrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheOperations.WithLabelValues("hit").Inc()
}

func (m *DataNodeMetrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheOperations.WithLabelValues("miss").Inc()
}

func (m *DataNodeMetrics) RecordEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

func (m *DataNodeMetrics) SetDirtyPages(n int) {
	if m == nil {
		return
	}
	m.cacheDirtyPages.Set(float64(n))
}

func (m *DataNodeMetrics) SetResidentPages(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}

func (m *DataNodeMetrics) RecordDiskRead(bytes int) {
	if m == nil {
		return
	}
	m.diskOperations.WithLabelValues("read").Inc()
	m.diskBytes.WithLabelValues("read").Add(float64(bytes))
}

func (m *DataNodeMetrics) RecordDiskWrite(bytes int) {
	if m == nil {
		return
	}
	m.diskOperations.WithLabelValues("write").Inc()
	m.diskBytes.WithLabelValues("write").Add(float64(bytes))
}

func (m *DataNodeMetrics) RecordDiskDelete() {
	if m == nil {
		return
	}
	m.diskOperations.WithLabelValues("delete").Inc()
}

func (m *DataNodeMetrics) RecordFlusherSweep(flushed int) {
	if m == nil {
		return
	}
	m.flusherRuns.Inc()
	m.flusherFlushed.Add(float64(flushed))
}
