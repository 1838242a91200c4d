// Package config loads the engine's tunable parameters from a JSONC
// document: the quirks-mode dialect flag forwarded to parsing, the
// parallel-join toggle, on-disk-construction behaviour, the annotation
// store's disk byte budget, histogram bucket count, and a timeout budget.
// The values are loaded and validated here; no engine package reads them.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/jsonc"
)

// defaultHistogramBuckets mirrors anno.maxHistogramBuckets; kept as an
// independent constant here since config must not import anno (config sits
// below the stores in the dependency graph, loaded before anything else is
// constructed).
const defaultHistogramBuckets = 250

// EngineConfig holds the engine's tunables. [corpusstore.WithConfig] stores
// one on a Manager, but no engine package reads its fields: nested-loop
// joins always evaluate in parallel batches, corpus graphs always use the
// in-memory annotation store, histograms use their own fixed bucket limit,
// and no timeout is derived from it.
//
// The zero value is not valid; use [Default] or [Load] to obtain one.
type EngineConfig struct {
	// QuirksMode is an opaque dialect flag forwarded to a query frontend.
	// The core engine never inspects its value.
	QuirksMode string `json:"quirks_mode"`

	// ParallelJoin is the parallel-join toggle. Nested-loop joins run in
	// parallel batches whether or not it is set.
	ParallelJoin bool `json:"parallel_join"`

	// OnDiskConstruction is the on-disk-construction toggle. Corpus graphs
	// use the in-memory stores whether or not it is set.
	OnDiskConstruction bool `json:"on_disk_construction"`

	// DiskByteBudget is the memory-tier byte budget before a disk-backed
	// annotation store flushes to its on-disk tier.
	DiskByteBudget int64 `json:"disk_byte_budget"`

	// HistogramBuckets bounds the number of buckets in an equi-depth
	// histogram.
	HistogramBuckets int `json:"histogram_buckets"`

	// Timeout is the per-query and per-update time budget, zero meaning
	// unbounded. Queries and updates are bounded only by their context's
	// deadline, never by this value.
	Timeout time.Duration `json:"-"`
	// TimeoutMillis is the wire representation of Timeout; JSON/JSONC has
	// no native duration type.
	TimeoutMillis int64 `json:"timeout_ms"`
}

// Default returns the default configuration: on-disk construction and
// parallel joins off, a 32 MiB disk byte budget, 250 histogram buckets,
// and no timeout.
func Default() EngineConfig {
	return EngineConfig{
		DiskByteBudget:   32 << 20,
		HistogramBuckets: defaultHistogramBuckets,
	}
}

// Load reads a JSONC-tolerant document (comments and trailing commas
// permitted) into an EngineConfig seeded from [Default]. Fields absent
// from data keep their default values.
func Load(data []byte) (EngineConfig, error) {
	cfg := Default()
	clean := jsonc.ToJSON(data)
	if err := json.Unmarshal(clean, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("config: decode engine configuration: %w", err)
	}
	cfg.Timeout = time.Duration(cfg.TimeoutMillis) * time.Millisecond
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// Validate reports whether the configuration's values are internally
// consistent.
func (c EngineConfig) Validate() error {
	if c.DiskByteBudget <= 0 {
		return fmt.Errorf("config: disk_byte_budget must be positive, got %d", c.DiskByteBudget)
	}
	if c.HistogramBuckets <= 0 {
		return fmt.Errorf("config: histogram_buckets must be positive, got %d", c.HistogramBuckets)
	}
	if c.HistogramBuckets > defaultHistogramBuckets {
		return fmt.Errorf("config: histogram_buckets must not exceed %d, got %d", defaultHistogramBuckets, c.HistogramBuckets)
	}
	if c.TimeoutMillis < 0 {
		return fmt.Errorf("config: timeout_ms must not be negative, got %d", c.TimeoutMillis)
	}
	return nil
}
