// Package amem is the top-level facade: it owns the on-disk `.amem` file,
// the in-memory graph and index set, the immortal log, and the advisory
// lock, and wires every operation in §4.2-4.8 together. Grounded on the
// donor's Config-with-defaults + New() constructor idiom (pkg/gognee/gognee.go)
// and its typed re-export convenience (pkg/gognee/types.go).
package amem

import (
	"fmt"
	"os"
	"sync"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
	"github.com/dan-solli/agenticmemory/pkg/amemlock"
	"github.com/dan-solli/agenticmemory/pkg/codec"
	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/immortal"
	"github.com/dan-solli/agenticmemory/pkg/index"
	"github.com/dan-solli/agenticmemory/pkg/metrics"
	"github.com/dan-solli/agenticmemory/pkg/trace"
)

// Config configures a Handle. Zero-value fields take the defaults noted
// below.
type Config struct {
	// Dimension is the embedding width for a freshly-Created store. Ignored
	// by Open, which reads it back from the file header.
	Dimension uint32

	// GhostWriterPath, if set, mirrors every immortal-log entry to a second
	// append-only file at this path. Empty disables the ghost writer.
	GhostWriterPath string

	// Metrics receives per-operation counters; defaults to a no-op
	// collector if nil.
	Metrics metrics.Collector

	// Tracer receives sanitized per-operation trace records; defaults to a
	// no-op exporter if nil.
	Tracer trace.Exporter
}

// Handle is a single open AgenticMemory store: one graph, one index set,
// one immortal log, guarded by one advisory file lock. Safe for concurrent
// use by multiple goroutines; Graph and immortal.Store each hold their own
// internal locks, and mu guards the index set, which has none of its own.
// A write's graph mutation, index update and log append are separate
// locked steps, not one atomic sequence.
type Handle struct {
	path string

	mu sync.Mutex // guards the index set; also held by Save and Close

	graph   *graph.Graph
	indexes *index.Set
	tok     *index.Tokenizer
	log     *immortal.Store
	lock    *amemlock.Lock

	metrics metrics.Collector
	tracer  trace.Exporter
}

func (c Config) collector() metrics.Collector {
	if c.Metrics != nil {
		return c.Metrics
	}
	return &metrics.NoopCollector{}
}

func (c Config) exporter() trace.Exporter {
	if c.Tracer != nil {
		return c.Tracer
	}
	return &trace.NoopExporter{}
}

func walDir(path string) string { return path + ".wal" }

func openSink(cfg Config) (immortal.Sink, error) {
	if cfg.GhostWriterPath == "" {
		return nil, nil
	}
	return immortal.NewFileSink(cfg.GhostWriterPath)
}

// Create initializes a brand-new store at path. Fails InvalidArgument if a
// file already exists there.
func Create(path string, cfg Config) (*Handle, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, amemerr.New("create", amemerr.InvalidArgument, "store already exists at path")
	}

	lock, err := amemlock.Acquire(path)
	if err != nil {
		return nil, err
	}

	sink, err := openSink(cfg)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	logStore, err := immortal.OpenStore(walDir(path), sink)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	g := graph.New(cfg.Dimension)
	h := &Handle{
		path:    path,
		graph:   g,
		indexes: index.NewSet(),
		tok:     index.NewTokenizer(),
		log:     logStore,
		lock:    lock,
		metrics: cfg.collector(),
		tracer:  cfg.exporter(),
	}

	if err := h.Save(); err != nil {
		_ = logStore.Close()
		_ = lock.Release()
		return nil, err
	}
	return h, nil
}

// Open loads an existing store at path, replaying the immortal log and
// rebuilding the index set from the rehydrated graph.
func Open(path string, cfg Config) (*Handle, error) {
	lock, err := amemlock.Acquire(path)
	if err != nil {
		return nil, err
	}

	result, err := codec.Open(path)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	sink, err := openSink(cfg)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	logStore, err := immortal.OpenStore(walDir(path), sink)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	// Only the term index is persisted by the codec; Temporal/Type/Session/
	// Entity are always rebuilt from the rehydrated nodes. The persisted
	// term index is reused as-is unless it's stale against those same
	// nodes, in which case VerifyAgainst logs the mismatch and a fresh one
	// takes its place.
	nodes := result.Graph.AllNodes()
	persisted := &index.Set{Term: result.Term}
	full := index.BuildSet(nodes)
	set := full
	if persisted.VerifyAgainst(nodes) {
		set.Term = persisted.Term
	}

	h := &Handle{
		path:    path,
		graph:   result.Graph,
		indexes: set,
		tok:     index.NewTokenizer(),
		log:     logStore,
		lock:    lock,
		metrics: cfg.collector(),
		tracer:  cfg.exporter(),
	}
	return h, nil
}

// Save persists the current graph and term index to h's path via the
// codec's atomic temp-file-then-rename write.
func (h *Handle) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return codec.Save(h.path, h.graph, h.indexes.Term)
}

// Close flushes the immortal log and releases the advisory lock. It does
// not implicitly Save; callers that want durability beyond the immortal
// log's own crash-safety should call Save first.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.log.Close(); err != nil {
		return fmt.Errorf("close immortal log: %w", err)
	}
	return h.lock.Release()
}
