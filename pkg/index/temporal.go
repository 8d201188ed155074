package index

import "sort"

// temporalEntry pairs a node id with its creation time for range scans.
type temporalEntry struct {
	createdAt int64
	id        uint64
}

// TemporalIndex supports range scans over created_at, ties broken by id.
type TemporalIndex struct {
	entries []temporalEntry
}

func NewTemporalIndex() *TemporalIndex { return &TemporalIndex{} }

func (t *TemporalIndex) Add(id uint64, createdAt int64) {
	e := temporalEntry{createdAt: createdAt, id: id}
	pos := sort.Search(len(t.entries), func(i int) bool {
		if t.entries[i].createdAt != createdAt {
			return t.entries[i].createdAt > createdAt
		}
		return t.entries[i].id >= id
	})
	t.entries = append(t.entries, temporalEntry{})
	copy(t.entries[pos+1:], t.entries[pos:])
	t.entries[pos] = e
}

func (t *TemporalIndex) Remove(id uint64) {
	for i, e := range t.entries {
		if e.id == id {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// Range returns node ids with from <= created_at <= to, in ascending order.
func (t *TemporalIndex) Range(from, to int64) []uint64 {
	lo := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].createdAt >= from })
	var out []uint64
	for i := lo; i < len(t.entries) && t.entries[i].createdAt <= to; i++ {
		out = append(out, t.entries[i].id)
	}
	return out
}

// Recent returns up to n of the most recently created ids, newest first.
func (t *TemporalIndex) Recent(n int) []uint64 {
	out := make([]uint64, 0, n)
	for i := len(t.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, t.entries[i].id)
	}
	return out
}
