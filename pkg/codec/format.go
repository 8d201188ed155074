// Package codec implements the `.amem` binary file format (§4.1): the
// AMEM header, length-prefixed MessagePack node/edge framing, a BLAKE3
// integrity footer, and open/save/validate over a graph.Graph.
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"lukechampine.com/blake3"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/index"
)

const (
	Magic           = "AMEM"
	Version  uint16 = 1
	HeaderSize      = 28
	// MaxFrameSize bounds any single node/edge/index record (§5 resource limits).
	MaxFrameSize = 8 * 1024 * 1024
	digestSize   = 32 // BLAKE3-256
)

// Header is the fixed 28-byte file prologue.
type Header struct {
	Version            uint16
	Flags              uint16
	NodeCount          uint64
	EdgeCount          uint64
	EmbeddingDimension uint32
}

func writeHeader(w io.Writer, h Header) error {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint64(buf[8:16], h.NodeCount)
	binary.LittleEndian.PutUint64(buf[16:24], h.EdgeCount)
	binary.LittleEndian.PutUint32(buf[24:28], h.EmbeddingDimension)
	_, err := w.Write(buf)
	return err
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, amemerr.Wrap("open", amemerr.CorruptFormat, fmt.Errorf("truncated header: %w", err))
	}
	if string(buf[0:4]) != Magic {
		return Header{}, amemerr.New("open", amemerr.CorruptFormat, "bad magic")
	}
	version := binary.LittleEndian.Uint16(buf[4:6])
	if version == 0 || version > Version {
		return Header{}, amemerr.New("open", amemerr.CorruptFormat, "unsupported version")
	}
	flags := binary.LittleEndian.Uint16(buf[6:8])
	if flags != 0 {
		return Header{}, amemerr.New("open", amemerr.CorruptFormat, "reserved flags must be zero")
	}
	return Header{
		Version:            version,
		Flags:              flags,
		NodeCount:          binary.LittleEndian.Uint64(buf[8:16]),
		EdgeCount:          binary.LittleEndian.Uint64(buf[16:24]),
		EmbeddingDimension: binary.LittleEndian.Uint32(buf[24:28]),
	}, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return amemerr.New("save", amemerr.InvalidArgument, "record exceeds 8 MiB frame cap")
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, amemerr.Wrap("open", amemerr.CorruptFormat, fmt.Errorf("truncated frame length: %w", err))
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, amemerr.New("open", amemerr.CorruptFormat, "frame exceeds 8 MiB cap")
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, amemerr.Wrap("open", amemerr.CorruptFormat, fmt.Errorf("truncated frame payload: %w", err))
	}
	return payload, nil
}

// Footer holds section offsets and the BLAKE3 digest of everything before
// it, so Validate can re-hash the payload and compare.
type Footer struct {
	NodeSectionOffset  uint64
	EdgeSectionOffset  uint64
	IndexSectionOffset uint64
	IndexSectionLength uint64
	Digest             [digestSize]byte
}

const footerBodySize = 8*4 + digestSize // 4 uint64 offsets + digest
const trailerSize = 8                   // absolute footer offset, last 8 bytes of file

// Save writes g's full node/edge tables plus the serialized term index to
// path via a temp-file-then-rename (crash leaves old or new file intact,
// per §7).
func Save(path string, g *graph.Graph, term *index.TermIndex) error {
	tmp := path + ".new"
	f, err := os.Create(tmp)
	if err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	hasher := blake3.New(digestSize, nil)
	mw := io.MultiWriter(bw, hasher)

	nodes := g.AllNodesIncludingTombstoned()
	edges := g.AllEdges()

	header := Header{
		Version:            Version,
		NodeCount:          uint64(len(nodes)),
		EdgeCount:          uint64(len(edges)),
		EmbeddingDimension: g.Dimension(),
	}
	if err := writeHeader(mw, header); err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}

	var offset uint64 = HeaderSize
	nodeSectionOffset := offset
	for _, n := range nodes {
		payload, err := msgpack.Marshal(toWireNode(n))
		if err != nil {
			return amemerr.Wrap("save", amemerr.Io, err)
		}
		if err := writeFrame(mw, payload); err != nil {
			return err
		}
		offset += 4 + uint64(len(payload))
	}

	edgeSectionOffset := offset
	for _, e := range edges {
		payload, err := msgpack.Marshal(toWireEdge(e))
		if err != nil {
			return amemerr.Wrap("save", amemerr.Io, err)
		}
		if err := writeFrame(mw, payload); err != nil {
			return err
		}
		offset += 4 + uint64(len(payload))
	}

	indexSectionOffset := offset
	indexBytes := term.ToBytes()
	if err := writeFrame(mw, indexBytes); err != nil {
		return err
	}
	indexSectionLength := uint64(4 + len(indexBytes))

	digest := hasher.Sum(nil)
	var footer Footer
	footer.NodeSectionOffset = nodeSectionOffset
	footer.EdgeSectionOffset = edgeSectionOffset
	footer.IndexSectionOffset = indexSectionOffset
	footer.IndexSectionLength = indexSectionLength
	copy(footer.Digest[:], digest)

	footerOffset := indexSectionOffset + indexSectionLength
	if err := writeFooter(bw, footer); err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint64(trailer[:], footerOffset)
	if _, err := bw.Write(trailer[:]); err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}

	if err := bw.Flush(); err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}
	if err := f.Sync(); err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}
	if err := f.Close(); err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return amemerr.Wrap("save", amemerr.Io, err)
	}
	return nil
}

func writeFooter(w io.Writer, f Footer) error {
	buf := make([]byte, footerBodySize)
	binary.LittleEndian.PutUint64(buf[0:8], f.NodeSectionOffset)
	binary.LittleEndian.PutUint64(buf[8:16], f.EdgeSectionOffset)
	binary.LittleEndian.PutUint64(buf[16:24], f.IndexSectionOffset)
	binary.LittleEndian.PutUint64(buf[24:32], f.IndexSectionLength)
	copy(buf[32:32+digestSize], f.Digest[:])
	_, err := w.Write(buf)
	return err
}

// Result is the in-memory outcome of Open: the rehydrated graph plus the
// term index read from the index section.
type Result struct {
	Graph *graph.Graph
	Term  *index.TermIndex
}

// Open reads path, verifies the header and footer digest, and rehydrates a
// graph.Graph plus the persisted term index.
func Open(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, amemerr.Wrap("open", amemerr.Io, err)
	}
	return decode(data)
}

func decode(data []byte) (*Result, error) {
	if len(data) < HeaderSize+trailerSize {
		return nil, amemerr.New("open", amemerr.CorruptFormat, "file too small")
	}

	header, err := readHeader(bytesReader(data[:HeaderSize]))
	if err != nil {
		return nil, err
	}

	footerOffset := binary.LittleEndian.Uint64(data[len(data)-trailerSize:])
	if footerOffset+footerBodySize > uint64(len(data)-trailerSize) {
		return nil, amemerr.New("open", amemerr.CorruptFormat, "footer offset out of range")
	}
	footerBuf := data[footerOffset : footerOffset+footerBodySize]
	var footer Footer
	footer.NodeSectionOffset = binary.LittleEndian.Uint64(footerBuf[0:8])
	footer.EdgeSectionOffset = binary.LittleEndian.Uint64(footerBuf[8:16])
	footer.IndexSectionOffset = binary.LittleEndian.Uint64(footerBuf[16:24])
	footer.IndexSectionLength = binary.LittleEndian.Uint64(footerBuf[24:32])
	copy(footer.Digest[:], footerBuf[32:32+digestSize])

	payload := data[:footerOffset]
	sum := blake3.Sum256(payload)
	if sum != footer.Digest {
		return nil, amemerr.New("open", amemerr.CorruptFormat, "digest mismatch")
	}

	g := graph.New(header.EmbeddingDimension)

	r := bytesReader(data[footer.NodeSectionOffset:footer.EdgeSectionOffset])
	nodesByID := make(map[uint64]*graph.Node, header.NodeCount)
	for i := uint64(0); i < header.NodeCount; i++ {
		frame, err := readFrame(r)
		if err != nil {
			return nil, err
		}
		var w wireNode
		if err := msgpack.Unmarshal(frame, &w); err != nil {
			return nil, amemerr.Wrap("open", amemerr.CorruptFormat, err)
		}
		n := fromWireNode(w)
		nodesByID[n.ID] = n
	}

	r = bytesReader(data[footer.EdgeSectionOffset:footer.IndexSectionOffset])
	edgesBySource := make(map[uint64][]*graph.Edge)
	for i := uint64(0); i < header.EdgeCount; i++ {
		frame, err := readFrame(r)
		if err != nil {
			return nil, err
		}
		var w wireEdge
		if err := msgpack.Unmarshal(frame, &w); err != nil {
			return nil, amemerr.Wrap("open", amemerr.CorruptFormat, err)
		}
		e := fromWireEdge(w)
		edgesBySource[e.SourceID] = append(edgesBySource[e.SourceID], e)
	}

	for _, n := range nodesByID {
		g.Rehydrate(n, edgesBySource[n.ID])
	}
	for srcID := range edgesBySource {
		if _, ok := nodesByID[srcID]; !ok {
			return nil, amemerr.New("open", amemerr.InvariantViolation, "edge source node missing")
		}
	}
	for _, edges := range edgesBySource {
		for _, e := range edges {
			if _, ok := nodesByID[e.TargetID]; !ok {
				return nil, amemerr.New("open", amemerr.InvariantViolation, "edge target node missing")
			}
		}
	}

	r = bytesReader(data[footer.IndexSectionOffset : footer.IndexSectionOffset+footer.IndexSectionLength])
	indexFrame, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	term, ok := index.TermIndexFromBytes(indexFrame)
	if !ok {
		return nil, amemerr.New("open", amemerr.CorruptFormat, "corrupt term index section")
	}

	return &Result{Graph: g, Term: term}, nil
}

// Report is the outcome of Validate: whether the file is structurally and
// cryptographically sound.
type Report struct {
	OK          bool
	NodeCount   uint64
	EdgeCount   uint64
	FailureKind amemerr.Kind
	Detail      string
}

// Validate re-verifies the trailing digest and edge endpoints without
// exposing a usable graph handle.
func Validate(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, amemerr.Wrap("validate", amemerr.Io, err)
	}
	result, err := decode(data)
	if err != nil {
		var ae *amemerr.Error
		if as, ok := err.(*amemerr.Error); ok {
			ae = as
		}
		report := &Report{OK: false, Detail: err.Error()}
		if ae != nil {
			report.FailureKind = ae.Kind
		}
		return report, nil
	}
	return &Report{
		OK:        true,
		NodeCount: uint64(len(result.Graph.AllNodesIncludingTombstoned())),
		EdgeCount: uint64(len(result.Graph.AllEdges())),
	}, nil
}

func bytesReader(b []byte) io.Reader { return &byteReader{b: b} }

// byteReader is a minimal io.Reader over a byte slice; avoids pulling in
// bytes.Reader's wider seek/unread surface for what is purely sequential
// frame decoding.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
