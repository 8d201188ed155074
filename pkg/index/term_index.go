package index

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// Posting is a single (node id, term frequency within that node) pair.
type Posting struct {
	NodeID uint64
	Freq   uint32
}

// TermIndex is the BM25 inverted index: term -> posting list, sorted by
// node id, plus corpus-level statistics (doc_count, avg_doc_length) the
// BM25 scorer needs. Byte layout matches the original term index format
// exactly (see SPEC_FULL.md SUPPLEMENTED FEATURES).
type TermIndex struct {
	postings    map[string][]Posting
	docCount    uint64
	avgDocLen   float32
	docLength   map[uint64]uint32 // node id -> token count, for exact BM25 length normalization
	tok         *Tokenizer
}

func NewTermIndex() *TermIndex {
	return &TermIndex{postings: make(map[string][]Posting), docLength: make(map[uint64]uint32), tok: NewTokenizer()}
}

// DocLength returns the token count recorded for a node (0 if unknown, in
// which case callers should fall back to AvgDocLength).
func (idx *TermIndex) DocLength(nodeID uint64) (uint32, bool) {
	l, ok := idx.docLength[nodeID]
	return l, ok
}

// BuildTermIndex rebuilds a TermIndex from scratch over every node's content.
func BuildTermIndex(nodes []*graph.Node) *TermIndex {
	idx := NewTermIndex()
	var totalTokens uint64
	for _, n := range nodes {
		freqs := idx.tok.TermFrequencies(n.Content)
		var docLen uint32
		for _, f := range freqs {
			docLen += f
		}
		totalTokens += uint64(docLen)
		idx.docLength[n.ID] = docLen
		for term, freq := range freqs {
			idx.insertPosting(term, n.ID, freq)
		}
		idx.docCount++
	}
	if idx.docCount > 0 {
		idx.avgDocLen = float32(totalTokens) / float32(idx.docCount)
	}
	return idx
}

func (idx *TermIndex) insertPosting(term string, nodeID uint64, freq uint32) {
	list := idx.postings[term]
	pos := sort.Search(len(list), func(i int) bool { return list[i].NodeID >= nodeID })
	list = append(list, Posting{})
	copy(list[pos+1:], list[pos:])
	list[pos] = Posting{NodeID: nodeID, Freq: freq}
	idx.postings[term] = list
}

// Get returns the posting list for term (nil if absent).
func (idx *TermIndex) Get(term string) []Posting { return idx.postings[term] }

// DocFrequency returns the number of documents containing term.
func (idx *TermIndex) DocFrequency(term string) int { return len(idx.postings[term]) }

func (idx *TermIndex) DocCount() uint64     { return idx.docCount }
func (idx *TermIndex) AvgDocLength() float32 { return idx.avgDocLen }
func (idx *TermIndex) TermCount() int        { return len(idx.postings) }

// AddNode incrementally indexes a single node. avg_doc_length becomes
// approximate after incremental adds (it is not recomputed), exactly as in
// the original index.
func (idx *TermIndex) AddNode(n *graph.Node) {
	freqs := idx.tok.TermFrequencies(n.Content)
	var docLen uint32
	for term, freq := range freqs {
		docLen += freq
		idx.insertPosting(term, n.ID, freq)
	}
	idx.docLength[n.ID] = docLen
	idx.docCount++
}

// RemoveNode removes a node from every posting list.
func (idx *TermIndex) RemoveNode(id uint64) {
	for term, list := range idx.postings {
		pos := sort.Search(len(list), func(i int) bool { return list[i].NodeID >= id })
		if pos < len(list) && list[pos].NodeID == id {
			list = append(list[:pos], list[pos+1:]...)
			if len(list) == 0 {
				delete(idx.postings, term)
			} else {
				idx.postings[term] = list
			}
		}
	}
	delete(idx.docLength, id)
	if idx.docCount > 0 {
		idx.docCount--
	}
}

// Clear empties the index.
func (idx *TermIndex) Clear() {
	idx.postings = make(map[string][]Posting)
	idx.docLength = make(map[uint64]uint32)
	idx.docCount = 0
	idx.avgDocLen = 0
}

// ToBytes serializes the index: doc_count u64 LE | avg_doc_length f32 LE |
// term_count u32 LE | [term_len u16 LE, term_bytes, posting_count u32 LE,
// (node_id u64 LE, term_freq u32 LE)*]*, terms sorted lexically for
// determinism.
func (idx *TermIndex) ToBytes() []byte {
	terms := make([]string, 0, len(idx.postings))
	for t := range idx.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	buf := make([]byte, 0, 16)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], idx.docCount)
	buf = append(buf, tmp8[:]...)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], math.Float32bits(idx.avgDocLen))
	buf = append(buf, tmp4[:]...)

	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(terms)))
	buf = append(buf, tmp4[:]...)

	for _, term := range terms {
		postings := idx.postings[term]
		tb := []byte(term)

		var tmp2 [2]byte
		binary.LittleEndian.PutUint16(tmp2[:], uint16(len(tb)))
		buf = append(buf, tmp2[:]...)
		buf = append(buf, tb...)

		binary.LittleEndian.PutUint32(tmp4[:], uint32(len(postings)))
		buf = append(buf, tmp4[:]...)

		for _, p := range postings {
			binary.LittleEndian.PutUint64(tmp8[:], p.NodeID)
			buf = append(buf, tmp8[:]...)
			binary.LittleEndian.PutUint32(tmp4[:], p.Freq)
			buf = append(buf, tmp4[:]...)
		}
	}
	return buf
}

// TermIndexFromBytes deserializes a TermIndex, returning false on truncation.
func TermIndexFromBytes(data []byte) (*TermIndex, bool) {
	if len(data) < 16 {
		return nil, false
	}
	pos := 0
	docCount := binary.LittleEndian.Uint64(data[pos : pos+8])
	pos += 8
	avgDocLen := math.Float32frombits(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	termCount := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4

	postings := make(map[string][]Posting, termCount)
	for i := 0; i < termCount; i++ {
		if pos+2 > len(data) {
			return nil, false
		}
		termLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		pos += 2
		if pos+termLen > len(data) {
			return nil, false
		}
		term := string(data[pos : pos+termLen])
		pos += termLen

		if pos+4 > len(data) {
			return nil, false
		}
		postingCount := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4

		list := make([]Posting, 0, postingCount)
		for j := 0; j < postingCount; j++ {
			if pos+12 > len(data) {
				return nil, false
			}
			nodeID := binary.LittleEndian.Uint64(data[pos : pos+8])
			pos += 8
			freq := binary.LittleEndian.Uint32(data[pos : pos+4])
			pos += 4
			list = append(list, Posting{NodeID: nodeID, Freq: freq})
		}
		postings[term] = list
	}

	// Per-document lengths aren't part of the on-disk layout; a reopened
	// index falls back to avgDocLen for BM25 normalization until nodes are
	// touched again through AddNode.
	return &TermIndex{postings: postings, docCount: docCount, avgDocLen: avgDocLen, docLength: make(map[uint64]uint32), tok: NewTokenizer()}, true
}
