package codec

import "github.com/dan-solli/agenticmemory/pkg/graph"

// wireNode/wireEdge are the on-disk MessagePack record shapes. The
// `_msgpack struct{} msgpack:",as_array"` sentinel forces array (not map)
// encoding, giving the fixed field order §4.1 requires rather than a
// name-keyed map.
type wireNode struct {
	_msgpack        struct{} `msgpack:",as_array"`
	ID              uint64
	EventType       string
	Content         string
	Confidence      float64
	SessionID       uint64
	CreatedAt       int64
	AccessCount     uint64
	HasLastAccessed bool
	LastAccessed    int64
	Embedding       []float32
	Tags            []string
	Tombstoned      bool
}

type wireEdge struct {
	_msgpack  struct{} `msgpack:",as_array"`
	ID        uint64
	SourceID  uint64
	TargetID  uint64
	EdgeType  string
	Weight    float64
	CreatedAt int64
}

func toWireNode(n *graph.Node) wireNode {
	w := wireNode{
		ID:          n.ID,
		EventType:   string(n.EventType),
		Content:     n.Content,
		Confidence:  n.Confidence,
		SessionID:   n.SessionID,
		CreatedAt:   n.CreatedAt,
		AccessCount: n.AccessCount,
		Embedding:   n.Embedding,
		Tags:        n.Tags,
		Tombstoned:  n.Tombstoned,
	}
	if n.LastAccessed != nil {
		w.HasLastAccessed = true
		w.LastAccessed = *n.LastAccessed
	}
	return w
}

func fromWireNode(w wireNode) *graph.Node {
	n := &graph.Node{
		ID:         w.ID,
		EventType:  graph.EventType(w.EventType),
		Content:    w.Content,
		Confidence: w.Confidence,
		SessionID:  w.SessionID,
		CreatedAt:  w.CreatedAt,
		AccessCount: w.AccessCount,
		Embedding:  w.Embedding,
		Tags:       w.Tags,
		Tombstoned: w.Tombstoned,
	}
	if w.HasLastAccessed {
		v := w.LastAccessed
		n.LastAccessed = &v
	}
	return n
}

func toWireEdge(e *graph.Edge) wireEdge {
	return wireEdge{
		ID:        e.ID,
		SourceID:  e.SourceID,
		TargetID:  e.TargetID,
		EdgeType:  string(e.EdgeType),
		Weight:    e.Weight,
		CreatedAt: e.CreatedAt,
	}
}

func fromWireEdge(w wireEdge) *graph.Edge {
	return &graph.Edge{
		ID:        w.ID,
		SourceID:  w.SourceID,
		TargetID:  w.TargetID,
		EdgeType:  graph.EdgeType(w.EdgeType),
		Weight:    w.Weight,
		CreatedAt: w.CreatedAt,
	}
}
