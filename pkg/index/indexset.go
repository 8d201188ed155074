package index

import (
	"log"

	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// Set bundles the five indexes the query and retrieval engines read from:
// temporal, term (BM25), type, session, and entity. Every index here is
// rebuildable from the graph's node/edge tables; Set exists only to keep
// maintenance synchronous and consistent across all five on every write.
type Set struct {
	Temporal *TemporalIndex
	Term     *TermIndex
	Type     *TypeIndex
	Session  *SessionIndex
	Entity   *EntityIndex
}

// NewSet returns five empty indexes.
func NewSet() *Set {
	return &Set{
		Temporal: NewTemporalIndex(),
		Term:     NewTermIndex(),
		Type:     NewTypeIndex(),
		Session:  NewSessionIndex(),
		Entity:   NewEntityIndex(),
	}
}

// BuildSet rebuilds all five indexes from the current node table. Used on
// file open and whenever a staleness check (VerifyAgainst) fails.
func BuildSet(nodes []*graph.Node) *Set {
	s := NewSet()
	s.Term = BuildTermIndex(nodes)
	for _, n := range nodes {
		s.Temporal.Add(n.ID, n.CreatedAt)
		s.Type.Add(n.ID, n.EventType)
		s.Session.Add(n.ID, n.SessionID, n.CreatedAt)
		s.Entity.AddNode(n.ID, n.Content)
	}
	return s
}

// OnAdd updates all five indexes for a newly-added node. Called
// synchronously by the amem Handle's Add and Correct paths.
func (s *Set) OnAdd(n *graph.Node) {
	s.Temporal.Add(n.ID, n.CreatedAt)
	s.Term.AddNode(n)
	s.Type.Add(n.ID, n.EventType)
	s.Session.Add(n.ID, n.SessionID, n.CreatedAt)
	s.Entity.AddNode(n.ID, n.Content)
}

// OnDelete removes a tombstoned node's back-references from every index
// (the node itself is retained by the graph store/immortal log).
func (s *Set) OnDelete(n *graph.Node) {
	s.Temporal.Remove(n.ID)
	s.Term.RemoveNode(n.ID)
	s.Type.Remove(n.ID, n.EventType)
	s.Session.Remove(n.ID, n.SessionID)
	s.Entity.RemoveNode(n.ID, n.Content)
}

// VerifyAgainst checks the term index's doc_count against the live node
// count; a mismatch indicates a stale index (e.g. recovered from a
// truncated log replay). Callers should rebuild via BuildSet when this
// returns false; the mismatch itself is not fatal.
func (s *Set) VerifyAgainst(nodes []*graph.Node) bool {
	live := 0
	for range nodes {
		live++
	}
	if int(s.Term.DocCount()) != live {
		log.Printf("amem: index set stale: term index doc_count=%d live_nodes=%d, rebuilding", s.Term.DocCount(), live)
		return false
	}
	return true
}
