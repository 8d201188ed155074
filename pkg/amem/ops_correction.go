package amem

import (
	"github.com/dan-solli/agenticmemory/pkg/correction"
	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/immortal"
)

// Correct atomically records a revised belief: it creates a new Correction
// node from newContent/confidence, links it to oldID with a Supersedes
// edge (new -> old, the same direction correction.Correct always uses),
// and returns the new node's id. oldID must already exist; the new node
// inherits its session so the two stay grouped under the same
// conversation. Both the node creation and the supersession link are
// appended to the immortal log before Correct returns, in that order, so
// a crash between them never leaves a superseding node the log doesn't
// know about.
func (h *Handle) Correct(oldID uint64, newContent string, confidence float64) (uint64, error) {
	op := h.beginOp("correct")

	h.mu.Lock()
	old, peekErr := h.graph.Peek(oldID)
	h.mu.Unlock()
	if peekErr != nil {
		op.finish(peekErr)
		return 0, peekErr
	}

	var newID uint64
	err := op.span("graph-add", func() error {
		var err error
		newID, err = h.graph.Add(graph.AddParams{
			EventType:  graph.Correction,
			Content:    newContent,
			SessionID:  old.SessionID,
			Confidence: confidence,
		})
		return err
	})
	if err != nil {
		op.finish(err)
		return 0, err
	}

	h.mu.Lock()
	n, peekErr := h.graph.Peek(newID)
	if peekErr == nil {
		h.indexes.OnAdd(n)
	}
	h.mu.Unlock()

	addLogErr := op.span("log-append-node", func() error {
		_, err := h.log.Append(immortal.OpAddNode, immortal.AddNodePayload{
			NodeID:    newID,
			EventType: string(graph.Correction),
			Content:   newContent,
			CreatedAt: n.CreatedAt,
		}, n.CreatedAt)
		return err
	})
	if addLogErr != nil {
		op.finish(addLogErr)
		return newID, addLogErr
	}

	err = op.span("supersede", func() error {
		_, err := correction.Correct(h.graph, newID, oldID)
		return err
	})
	if err != nil {
		op.finish(err)
		return newID, err
	}

	logErr := op.span("log-append-correct", func() error {
		_, err := h.log.Append(immortal.OpCorrect, immortal.CorrectPayload{
			SupersedingID: newID,
			SupersededID:  oldID,
		}, nowMicros())
		return err
	})
	op.finish(logErr)
	return newID, logErr
}

// Resolve follows a node's Supersedes chain forward to its terminal,
// current belief.
func (h *Handle) Resolve(id uint64) (uint64, error) {
	op := h.beginOp("correct")
	var resolved uint64
	err := op.span("resolve", func() error {
		var err error
		resolved, err = correction.Resolve(h.graph, id)
		return err
	})
	op.finish(err)
	return resolved, err
}

// SupersedesChain returns a node's full Supersedes chain, oldest first.
func (h *Handle) SupersedesChain(id uint64) ([]uint64, error) {
	op := h.beginOp("correct")
	var chain []uint64
	err := op.span("chain", func() error {
		var err error
		chain, err = correction.Chain(h.graph, id)
		return err
	})
	op.finish(err)
	return chain, err
}

// Revise runs the belief-revision cascade against a new hypothesis:
// contradiction detection, strength scoring, confidence-weakening
// propagation, and invalidated-decision identification.
func (h *Handle) Revise(p correction.ReviseParams) correction.RevisionReport {
	op := h.beginOp("correct")
	var report correction.RevisionReport
	_ = op.span("revise", func() error {
		report = correction.Revise(h.graph, h.tok, p)
		return nil
	})
	op.finish(nil)
	return report
}

// DetectGaps surfaces unjustified decisions, single-source inferences,
// low-confidence foundations, unstable knowledge, and stale evidence.
func (h *Handle) DetectGaps(p correction.GapParams) correction.GapReport {
	op := h.beginOp("correct")
	var report correction.GapReport
	_ = op.span("gaps", func() error {
		if p.NowMicros == 0 {
			p.NowMicros = nowMicros()
		}
		report = correction.DetectGaps(h.graph, p)
		return nil
	})
	op.finish(nil)
	return report
}

// FindAnalogies locates subgraphs structurally and semantically similar to
// an anchor node or raw vector.
func (h *Handle) FindAnalogies(p correction.AnalogyParams) ([]correction.Analogy, error) {
	op := h.beginOp("correct")
	var out []correction.Analogy
	err := op.span("analogy", func() error {
		var err error
		out, err = correction.FindAnalogies(h.graph, p)
		return err
	})
	op.finish(err)
	return out, err
}

// DetectDrift tracks how beliefs about a topic evolved over time.
func (h *Handle) DetectDrift(p correction.DriftParams) correction.DriftReport {
	op := h.beginOp("correct")
	var report correction.DriftReport
	_ = op.span("drift", func() error {
		report = correction.DetectDrift(h.graph, h.tok, p)
		return nil
	})
	op.finish(nil)
	return report
}

// Context extracts the subgraph within depth hops of a center node.
func (h *Handle) Context(centerID uint64, depth int) (correction.Subgraph, error) {
	op := h.beginOp("query")
	var sg correction.Subgraph
	err := op.span("context", func() error {
		var err error
		sg, err = correction.Context(h.graph, centerID, depth)
		return err
	})
	op.finish(err)
	return sg, err
}
