package index

import (
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// sortedIDSet is a sorted, duplicate-free []uint64 with binary-search
// insert/remove, used by both the type and session indexes.
type sortedIDSet struct {
	ids []uint64
}

func (s *sortedIDSet) add(id uint64) {
	pos := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	if pos < len(s.ids) && s.ids[pos] == id {
		return
	}
	s.ids = append(s.ids, 0)
	copy(s.ids[pos+1:], s.ids[pos:])
	s.ids[pos] = id
}

func (s *sortedIDSet) remove(id uint64) {
	pos := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	if pos < len(s.ids) && s.ids[pos] == id {
		s.ids = append(s.ids[:pos], s.ids[pos+1:]...)
	}
}

// TypeIndex maps each event type to its sorted set of node ids.
type TypeIndex struct {
	byType map[graph.EventType]*sortedIDSet
}

func NewTypeIndex() *TypeIndex {
	return &TypeIndex{byType: make(map[graph.EventType]*sortedIDSet)}
}

func (t *TypeIndex) Add(id uint64, et graph.EventType) {
	s, ok := t.byType[et]
	if !ok {
		s = &sortedIDSet{}
		t.byType[et] = s
	}
	s.add(id)
}

func (t *TypeIndex) Remove(id uint64, et graph.EventType) {
	if s, ok := t.byType[et]; ok {
		s.remove(id)
	}
}

func (t *TypeIndex) IDs(et graph.EventType) []uint64 {
	if s, ok := t.byType[et]; ok {
		return append([]uint64(nil), s.ids...)
	}
	return nil
}

// SessionMeta tracks the observed bounds and a short summary for a session.
type SessionMeta struct {
	SessionID uint64
	Start     int64
	End       int64
	Summary   string
}

// SessionIndex maps each session id to its sorted node id set and metadata.
type SessionIndex struct {
	bySession map[uint64]*sortedIDSet
	meta      map[uint64]*SessionMeta
}

func NewSessionIndex() *SessionIndex {
	return &SessionIndex{bySession: make(map[uint64]*sortedIDSet), meta: make(map[uint64]*SessionMeta)}
}

func (s *SessionIndex) Add(id uint64, sessionID uint64, createdAt int64) {
	set, ok := s.bySession[sessionID]
	if !ok {
		set = &sortedIDSet{}
		s.bySession[sessionID] = set
	}
	set.add(id)

	m, ok := s.meta[sessionID]
	if !ok {
		m = &SessionMeta{SessionID: sessionID, Start: createdAt, End: createdAt}
		s.meta[sessionID] = m
		return
	}
	if createdAt < m.Start {
		m.Start = createdAt
	}
	if createdAt > m.End {
		m.End = createdAt
	}
}

func (s *SessionIndex) Remove(id uint64, sessionID uint64) {
	if set, ok := s.bySession[sessionID]; ok {
		set.remove(id)
	}
}

func (s *SessionIndex) IDs(sessionID uint64) []uint64 {
	if set, ok := s.bySession[sessionID]; ok {
		return append([]uint64(nil), set.ids...)
	}
	return nil
}

func (s *SessionIndex) Meta(sessionID uint64) (*SessionMeta, bool) {
	m, ok := s.meta[sessionID]
	return m, ok
}

// SetSummary records a caller-supplied session summary (session_start/end).
func (s *SessionIndex) SetSummary(sessionID uint64, summary string) {
	if m, ok := s.meta[sessionID]; ok {
		m.Summary = summary
	}
}
