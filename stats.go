package kv

import "github.com/VictoriaMetrics/metrics"

// Stats 引擎级别的计数器，每个DB实例一套独立的metrics set
type Stats struct {
	set *metrics.Set

	inserts    *metrics.Counter
	flushes    *metrics.Counter
	merges     *metrics.Counter
	mergedRows *metrics.Counter
}

func newStats() *Stats {
	set := metrics.NewSet()
	return &Stats{
		set:        set,
		inserts:    set.NewCounter(`mergekv_inserts_total`),
		flushes:    set.NewCounter(`mergekv_memtable_flushes_total`),
		merges:     set.NewCounter(`mergekv_part_merges_total`),
		mergedRows: set.NewCounter(`mergekv_merged_rows_total`),
	}
}

func (s *Stats) Inserts() uint64 {
	return s.inserts.Get()
}

func (s *Stats) Flushes() uint64 {
	return s.flushes.Get()
}

func (s *Stats) Merges() uint64 {
	return s.merges.Get()
}

func (s *Stats) MergedRows() uint64 {
	return s.mergedRows.Get()
}
