package amem

import "github.com/dan-solli/agenticmemory/pkg/retrieval"

// Search runs BM25-only full-text search over the store's term index.
func (h *Handle) Search(queryText string, topK int) []retrieval.Scored {
	op := h.beginOp("search")
	var out []retrieval.Scored
	_ = op.span("bm25", func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		out = retrieval.BM25Search(h.indexes.Term, h.tok, queryText, topK, retrieval.DefaultBM25Params())
		return nil
	})
	op.finish(nil)
	return out
}

// SearchVector runs cosine-similarity vector search over embedded nodes.
func (h *Handle) SearchVector(queryEmbedding []float32, topK int) ([]retrieval.Scored, error) {
	op := h.beginOp("search")
	var out []retrieval.Scored
	err := op.span("vector", func() error {
		var err error
		out, err = retrieval.VectorSearch(h.graph.AllNodes(), queryEmbedding, h.graph.Dimension(), topK)
		return err
	})
	op.finish(err)
	return out, err
}

// SearchHybrid fuses BM25 and vector rankings via reciprocal rank fusion.
// queryEmbedding may be nil to fall back to text-only ranking.
func (h *Handle) SearchHybrid(queryText string, queryEmbedding []float32, topK int) ([]retrieval.Scored, error) {
	op := h.beginOp("search")
	var out []retrieval.Scored
	err := op.span("hybrid-fuse", func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		var err error
		out, err = retrieval.HybridSearch(
			h.indexes.Term, h.tok, h.graph.AllNodes(),
			queryText, queryEmbedding, h.graph.Dimension(), topK,
			retrieval.DefaultFusionParams(),
		)
		return err
	})
	op.finish(err)
	return out, err
}

// Ground checks a claim against the store's content for textual support
// and for any reachable Contradicts edge, returning a grounding verdict.
func (h *Handle) Ground(claim string) retrieval.GroundingResult {
	op := h.beginOp("search")
	var out retrieval.GroundingResult
	_ = op.span("ground", func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		out = retrieval.Ground(h.graph, h.indexes.Term, h.tok, claim)
		return nil
	})
	op.finish(nil)
	return out
}
