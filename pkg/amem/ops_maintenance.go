package amem

import (
	"os"

	"github.com/dan-solli/agenticmemory/pkg/consolidation"
	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/immortal"
)

// Consolidate runs a maintenance pass (dedup, contradiction linking, orphan
// pruning, episode compression, inference promotion) and, unless the run was
// DryRun, appends a SessionBoundary marker recording that a consolidation
// pass completed.
func (h *Handle) Consolidate(p consolidation.Params) consolidation.Report {
	op := h.beginOp("consolidate")
	if p.NowMicros == 0 {
		p.NowMicros = nowMicros()
	}

	var report consolidation.Report
	_ = op.span("run", func() error {
		report = consolidation.Run(h.graph, h.tok, p)
		return nil
	})

	var logErr error
	if !p.DryRun {
		logErr = op.span("log-append", func() error {
			_, err := h.log.Append(immortal.OpSessionBoundary, immortal.SessionBoundaryPayload{}, nowMicros())
			return err
		})
	}
	op.finish(logErr)
	return report
}

// Compact promotes aged immortal-log entries into Cold/Frozen archives and
// records a Compact marker noting how many tombstoned nodes remain on disk.
// It does not rewrite warm.log: the chain-of-custody file stays the
// authoritative replay source, and each call archives every aged entry
// again, so repeated calls leave duplicate archive entries.
func (h *Handle) Compact() (immortal.CompactPayload, error) {
	op := h.beginOp("compact")

	var removed uint64
	err := op.span("count-tombstones", func() error {
		for _, n := range h.graph.AllNodesIncludingTombstoned() {
			if n.Tombstoned {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		op.finish(err)
		return immortal.CompactPayload{}, err
	}

	promoteErr := op.span("tier-promote", func() error {
		return h.log.Promote(nowMicros())
	})
	if promoteErr != nil {
		op.finish(promoteErr)
		return immortal.CompactPayload{}, promoteErr
	}

	var size int64
	sizeErr := op.span("stat-size", func() error {
		info, err := os.Stat(h.path)
		if err != nil {
			return nil // path may not exist yet if nothing was ever Saved
		}
		size = info.Size()
		return nil
	})

	payload := immortal.CompactPayload{RemovedNodes: removed, RewrittenSize: uint64(size)}
	logErr := op.span("log-append", func() error {
		_, err := h.log.Append(immortal.OpCompact, payload, nowMicros())
		return err
	})
	_ = sizeErr
	op.finish(logErr)
	return payload, logErr
}

// Stats summarizes the store's current shape.
type Stats struct {
	NodeCount    int
	EdgeCount    int
	SessionCount int
	TypeCounts   map[graph.EventType]int
	Dimension    uint32
	FileSize     int64
}

// Stats reports node/edge counts, session cardinality, event-type
// breakdown, embedding dimension, and on-disk file size.
func (h *Handle) Stats() Stats {
	op := h.beginOp("query")

	s := Stats{
		NodeCount:  h.graph.NodeCount(),
		EdgeCount:  h.graph.EdgeCount(),
		TypeCounts: map[graph.EventType]int{},
		Dimension:  h.graph.Dimension(),
	}

	_ = op.span("summarize", func() error {
		sessions := map[uint64]bool{}
		for _, n := range h.graph.AllNodes() {
			sessions[n.SessionID] = true
			s.TypeCounts[n.EventType]++
		}
		s.SessionCount = len(sessions)
		return nil
	})

	_ = op.span("stat-size", func() error {
		info, err := os.Stat(h.path)
		if err != nil {
			return nil
		}
		s.FileSize = info.Size()
		return nil
	})

	op.finish(nil)
	return s
}
