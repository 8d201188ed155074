package graph

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
)

// Clock abstracts wall-clock time so tests can pin timestamps; defaults to
// time.Now in microseconds.
type Clock func() int64

func defaultClock() int64 { return time.Now().UnixMicro() }

// Graph is the single-writer/multi-reader in-memory node/edge table that
// backs an AgenticMemory handle. It owns the node and edge arenas exclusively;
// every index elsewhere is a rebuildable back-reference into this store.
type Graph struct {
	mu   sync.RWMutex
	dim  uint32 // declared embedding dimension; 0 means "no embeddings in this file"
	clock Clock

	nextNodeID uint64 // atomic
	nextEdgeID uint64 // atomic

	nodes map[uint64]*Node
	edges map[uint64]*Edge

	outAdj map[uint64][]uint64 // node id -> outgoing edge ids
	inAdj  map[uint64][]uint64 // node id -> incoming edge ids
}

// New creates an empty graph declared to hold embeddings of dimension dim
// (dim == 0 means nodes in this file never carry an embedding).
func New(dim uint32) *Graph {
	return &Graph{
		dim:    dim,
		clock:  defaultClock,
		nodes:  make(map[uint64]*Node),
		edges:  make(map[uint64]*Edge),
		outAdj: make(map[uint64][]uint64),
		inAdj:  make(map[uint64][]uint64),
	}
}

// SetClock overrides the wall-clock source; intended for tests.
func (g *Graph) SetClock(c Clock) { g.clock = c }

// Dimension returns the file-declared embedding dimension.
func (g *Graph) Dimension() uint32 { return g.dim }

// AddParams bundles the arguments to Add so the method signature stays
// manageable as the node shape grows.
type AddParams struct {
	EventType  EventType
	Content    string
	SessionID  uint64
	Confidence float64
	Embedding  []float32 // optional
	Tags       []string  // optional
}

// Add appends a new node and returns its id. Fails InvalidArgument on
// out-of-range confidence, empty content, malformed event type, or an
// embedding whose length does not match the file-declared dimension.
func (g *Graph) Add(p AddParams) (uint64, error) {
	if !ValidEventType(p.EventType) {
		return 0, amemerr.New("add", amemerr.InvalidArgument, "unknown event type")
	}
	if p.Content == "" {
		return 0, amemerr.New("add", amemerr.InvalidArgument, "content must not be empty")
	}
	if p.Confidence < 0.0 || p.Confidence > 1.0 {
		return 0, amemerr.New("add", amemerr.InvalidArgument, "confidence out of range [0,1]")
	}
	if p.Embedding != nil {
		if g.dim == 0 || uint32(len(p.Embedding)) != g.dim {
			return 0, amemerr.New("add", amemerr.InvalidArgument, "embedding dimension mismatch")
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := atomic.AddUint64(&g.nextNodeID, 1)
	node := &Node{
		ID:         id,
		EventType:  p.EventType,
		Content:    p.Content,
		Confidence: p.Confidence,
		SessionID:  p.SessionID,
		CreatedAt:  g.clock(),
		Embedding:  append([]float32(nil), p.Embedding...),
		Tags:       append([]string(nil), p.Tags...),
	}
	g.nodes[id] = node
	return id, nil
}

// Link creates a directed edge. Fails NotFound if either endpoint is
// missing, InvalidArgument for a malformed edge type or out-of-range
// weight, and InvariantViolation if a Supersedes edge would create a cycle.
func (g *Graph) Link(srcID, dstID uint64, edgeType EdgeType, weight float64) (uint64, error) {
	if !ValidEdgeType(edgeType) {
		return 0, amemerr.New("link", amemerr.InvalidArgument, "unknown edge type")
	}
	if weight < 0.0 || weight > 1.0 {
		return 0, amemerr.New("link", amemerr.InvalidArgument, "weight out of range [0,1]")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[srcID]; !ok {
		return 0, amemerr.New("link", amemerr.NotFound, "source node not found")
	}
	if _, ok := g.nodes[dstID]; !ok {
		return 0, amemerr.New("link", amemerr.NotFound, "target node not found")
	}

	if edgeType == Supersedes && g.wouldCreateSupersedesCycle(srcID, dstID) {
		return 0, amemerr.New("link", amemerr.InvariantViolation, "supersedes edge would create a cycle")
	}

	id := atomic.AddUint64(&g.nextEdgeID, 1)
	edge := &Edge{
		ID:        id,
		SourceID:  srcID,
		TargetID:  dstID,
		EdgeType:  edgeType,
		Weight:    weight,
		CreatedAt: g.clock(),
	}
	g.edges[id] = edge
	g.outAdj[srcID] = append(g.outAdj[srcID], id)
	g.inAdj[dstID] = append(g.inAdj[dstID], id)
	return id, nil
}

// wouldCreateSupersedesCycle reports whether adding Supersedes edge src->dst
// would close a cycle, i.e. whether dst can already reach src by following
// existing Supersedes edges forward. Must be called with mu held.
func (g *Graph) wouldCreateSupersedesCycle(src, dst uint64) bool {
	if src == dst {
		return true
	}
	visited := map[uint64]bool{dst: true}
	queue := []uint64{dst}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, eid := range g.outAdj[cur] {
			e := g.edges[eid]
			if e.EdgeType != Supersedes {
				continue
			}
			if e.TargetID == src {
				return true
			}
			if !visited[e.TargetID] {
				visited[e.TargetID] = true
				queue = append(queue, e.TargetID)
			}
		}
	}
	return false
}

// Get returns a copy of the node, incrementing access_count and setting
// last_accessed. Fails NotFound if the node is absent or tombstoned.
func (g *Graph) Get(id uint64) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok || n.Tombstoned {
		return nil, amemerr.New("get", amemerr.NotFound, "node not found")
	}
	n.AccessCount++
	now := g.clock()
	n.LastAccessed = &now
	return n.Clone(), nil
}

// Peek returns a copy of the node without recording an access.
func (g *Graph) Peek(id uint64) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok || n.Tombstoned {
		return nil, amemerr.New("peek", amemerr.NotFound, "node not found")
	}
	return n.Clone(), nil
}

// Delete appends a tombstone marking id as logically removed. The node
// remains addressable by the immortal log for audit but Get/Peek report
// NotFound afterward, and its id is never reused.
func (g *Graph) Delete(id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok || n.Tombstoned {
		return amemerr.New("delete", amemerr.NotFound, "node not found")
	}
	n.Tombstoned = true
	return nil
}

// PromoteToFact flips a node's event_type from Inference to Fact in place;
// a no-op if the node is absent, tombstoned, or not currently an Inference.
func (g *Graph) PromoteToFact(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok && !n.Tombstoned && n.EventType == Inference {
		n.EventType = Fact
	}
}

// GetEdge returns a copy of the edge by id.
func (g *Graph) GetEdge(id uint64) (*Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	if !ok {
		return nil, amemerr.New("get_edge", amemerr.NotFound, "edge not found")
	}
	c := *e
	return &c, nil
}

// OutEdges returns copies of all edges whose source is id, optionally
// restricted to a set of edge types (nil/empty means all types).
func (g *Graph) OutEdges(id uint64, types map[EdgeType]bool) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Edge
	for _, eid := range g.outAdj[id] {
		e := g.edges[eid]
		if len(types) == 0 || types[e.EdgeType] {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

// InEdges returns copies of all edges whose target is id, optionally
// restricted to a set of edge types.
func (g *Graph) InEdges(id uint64, types map[EdgeType]bool) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var in []*Edge
	for _, eid := range g.inAdj[id] {
		e := g.edges[eid]
		if len(types) == 0 || types[e.EdgeType] {
			c := *e
			in = append(in, &c)
		}
	}
	return in
}

// AllNodes returns copies of every non-tombstoned node, in id order.
func (g *Graph) AllNodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.Tombstoned {
			out = append(out, n.Clone())
		}
	}
	sortNodesByID(out)
	return out
}

// AllNodesIncludingTombstoned returns copies of every node, tombstoned or
// not, in id order. Used only by the codec, which must persist tombstones
// so a reopened file still reports the original AddNode for audit.
func (g *Graph) AllNodesIncludingTombstoned() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Clone())
	}
	sortNodesByID(out)
	return out
}

// AllEdges returns copies of every edge.
func (g *Graph) AllEdges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		c := *e
		out = append(out, &c)
	}
	sortEdgesByID(out)
	return out
}

// NodeCount returns the number of non-tombstoned nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, node := range g.nodes {
		if !node.Tombstoned {
			n++
		}
	}
	return n
}

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// UpdateAccess overwrites access_count/last_accessed directly, without
// Get's increment-on-read semantics.
func (g *Graph) UpdateAccess(id uint64, accessCount uint64, lastAccessed *int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.AccessCount = accessCount
		n.LastAccessed = lastAccessed
	}
}

// Rehydrate restores a node/edge exactly as read back from the codec,
// preserving its original id. Used only by Open(); bypasses validation that
// would otherwise apply to newly-created nodes and keeps the id allocators
// advanced past the largest id seen.
func (g *Graph) Rehydrate(n *Node, edges []*Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.ID] = n.Clone()
	if n.ID > g.nextNodeID {
		atomic.StoreUint64(&g.nextNodeID, n.ID)
	}
	for _, e := range edges {
		c := *e
		g.edges[c.ID] = &c
		g.outAdj[c.SourceID] = append(g.outAdj[c.SourceID], c.ID)
		g.inAdj[c.TargetID] = append(g.inAdj[c.TargetID], c.ID)
		if c.ID > g.nextEdgeID {
			atomic.StoreUint64(&g.nextEdgeID, c.ID)
		}
	}
}

func sortNodesByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

func sortEdgesByID(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}
