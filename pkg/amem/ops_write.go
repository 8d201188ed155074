package amem

import (
	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/immortal"
)

// AddParams mirrors graph.AddParams; kept as its own type so callers never
// import pkg/graph directly.
type AddParams struct {
	EventType  graph.EventType
	Content    string
	SessionID  uint64
	Confidence float64
	Embedding  []float32
	Tags       []string
}

// Add records a new cognitive event. The write is sequenced as: validate
// and apply to the in-memory graph, update the five rebuildable indexes,
// then append an immortal-log entry — log append happens last because a
// crash before it only means replay has to redo an index rebuild the
// graph's own Add already validated, never that an unvalidated entry is
// durably recorded.
func (h *Handle) Add(p AddParams) (uint64, error) {
	op := h.beginOp("add")
	var id uint64

	err := op.span("graph-add", func() error {
		var err error
		id, err = h.graph.Add(graph.AddParams{
			EventType:  p.EventType,
			Content:    p.Content,
			SessionID:  p.SessionID,
			Confidence: p.Confidence,
			Embedding:  p.Embedding,
			Tags:       p.Tags,
		})
		return err
	})
	if err != nil {
		op.finish(err)
		return 0, err
	}

	h.mu.Lock()
	n, peekErr := h.graph.Peek(id)
	if peekErr == nil {
		h.indexes.OnAdd(n)
	}
	h.mu.Unlock()

	logErr := op.span("log-append", func() error {
		_, err := h.log.Append(immortal.OpAddNode, immortal.AddNodePayload{
			NodeID:    id,
			EventType: string(p.EventType),
			Content:   p.Content,
			CreatedAt: n.CreatedAt,
		}, n.CreatedAt)
		return err
	})

	op.finish(logErr)
	return id, logErr
}

// Link creates a directed, typed, weighted edge between two existing nodes.
func (h *Handle) Link(sourceID, targetID uint64, edgeType graph.EdgeType, weight float64) (uint64, error) {
	op := h.beginOp("link")
	var id uint64

	err := op.span("graph-link", func() error {
		var err error
		id, err = h.graph.Link(sourceID, targetID, edgeType, weight)
		return err
	})
	if err != nil {
		op.finish(err)
		return 0, err
	}

	logErr := op.span("log-append", func() error {
		_, err := h.log.Append(immortal.OpAddEdge, immortal.AddEdgePayload{
			EdgeID:   id,
			SourceID: sourceID,
			TargetID: targetID,
			EdgeType: string(edgeType),
		}, nowMicros())
		return err
	})

	op.finish(logErr)
	return id, logErr
}

// Delete tombstones a node; its indexes are dropped but the node itself
// remains addressable through the immortal log for audit.
func (h *Handle) Delete(id uint64) error {
	op := h.beginOp("delete")

	h.mu.Lock()
	n, peekErr := h.graph.Peek(id)
	h.mu.Unlock()
	if peekErr != nil {
		op.finish(peekErr)
		return peekErr
	}

	err := op.span("graph-delete", func() error {
		return h.graph.Delete(id)
	})
	if err != nil {
		op.finish(err)
		return err
	}

	h.mu.Lock()
	h.indexes.OnDelete(n)
	h.mu.Unlock()

	logErr := op.span("log-append", func() error {
		_, err := h.log.Append(immortal.OpDelete, immortal.DeletePayload{NodeID: id}, nowMicros())
		return err
	})

	op.finish(logErr)
	return logErr
}
