// Package metrics defines the prometheus collectors the engine and
// caches publish to, registered once at process start and served over
// the usual /metrics HTTP handler by cmd/runeindex.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every gauge/counter/histogram the indexer exposes.
type Collectors struct {
	BlocksProcessed   prometheus.Counter
	TxsProcessed      prometheus.Counter
	Rollbacks         prometheus.Counter
	RegistryHits      prometheus.Counter
	RegistryMisses    prometheus.Counter
	OutputCacheHits   prometheus.Counter
	OutputCacheMisses prometheus.Counter
	FlushDuration     prometheus.Histogram
	BlockHeight       prometheus.Gauge
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		BlocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runeindex", Name: "blocks_processed_total", Help: "Blocks applied since process start.",
		}),
		TxsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runeindex", Name: "txs_processed_total", Help: "Transactions processed since process start.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runeindex", Name: "rollbacks_total", Help: "Reorg rollbacks applied since process start.",
		}),
		RegistryHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runeindex", Name: "registry_cache_hits_total", Help: "Rune registry LRU hits.",
		}),
		RegistryMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runeindex", Name: "registry_cache_misses_total", Help: "Rune registry LRU misses.",
		}),
		OutputCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runeindex", Name: "output_cache_hits_total", Help: "Output-balance cache hits.",
		}),
		OutputCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runeindex", Name: "output_cache_misses_total", Help: "Output-balance cache misses.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "runeindex", Name: "dbcache_flush_duration_seconds", Help: "Time spent flushing a block's write batch.",
			Buckets: prometheus.DefBuckets,
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runeindex", Name: "indexed_block_height", Help: "Height of the most recently committed block.",
		}),
	}

	reg.MustRegister(c.BlocksProcessed, c.TxsProcessed, c.Rollbacks, c.RegistryHits, c.RegistryMisses,
		c.OutputCacheHits, c.OutputCacheMisses, c.FlushDuration, c.BlockHeight)
	return c
}
