// Package immortal implements the Immortal Log component (C9): an
// append-only, BLAKE3 hash-chained audit trail of every graph mutation,
// framed with CRC32 for corruption detection, with tiered on-disk storage
// and a pluggable sink for off-box replication. Grounded structurally on
// the donor's FileExporter (pkg/trace/exporter.go) append/rotate idiom and
// algorithmically on SPEC_FULL.md §4.9.
package immortal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"lukechampine.com/blake3"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
)

// OpTag identifies the kind of mutation an entry records.
type OpTag byte

const (
	OpAddNode OpTag = iota + 1
	OpAddEdge
	OpDelete
	OpCorrect
	OpSessionBoundary
	OpCompact
)

// hashSize is the BLAKE3 digest width used for the chain (32 bytes, BLAKE3-256).
const hashSize = 32

// genesisHash is prev_hash for the first entry in a fresh log.
var genesisHash = [hashSize]byte{}

// Entry is one decoded immortal-log record.
type Entry struct {
	PrevHash [hashSize]byte
	Hash     [hashSize]byte
	Op       OpTag
	Payload  []byte
}

// AddNodePayload/AddEdgePayload/etc. are the msgpack-encoded bodies for each
// op tag; kept as plain structs so callers can encode/decode without the
// log package knowing about pkg/graph's types (avoids an import cycle,
// since graph.Node already serializes via pkg/codec for the file format).
type AddNodePayload struct {
	_         struct{} `msgpack:",as_array"`
	NodeID    uint64
	EventType string
	Content   string
	CreatedAt int64
}

type AddEdgePayload struct {
	_        struct{} `msgpack:",as_array"`
	EdgeID   uint64
	SourceID uint64
	TargetID uint64
	EdgeType string
}

type DeletePayload struct {
	_      struct{} `msgpack:",as_array"`
	NodeID uint64
}

type CorrectPayload struct {
	_             struct{} `msgpack:",as_array"`
	SupersedingID uint64
	SupersededID  uint64
}

type SessionBoundaryPayload struct {
	_         struct{} `msgpack:",as_array"`
	SessionID uint64
	StartedAt int64
}

type CompactPayload struct {
	_             struct{} `msgpack:",as_array"`
	RemovedNodes  uint64
	RewrittenSize uint64
}

// Log is an append-only, hash-chained audit log backed by a single file.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	lastHash [hashSize]byte
	sink     Sink
}

// Open opens (creating if absent) the log at path, replays it to recover
// the chain tip, and truncates any trailing corrupt bytes found during
// replay. sink may be nil.
func Open(path string, sink Sink) (*Log, error) {
	entries, trailingGarbage, err := Replay(path)
	if err != nil {
		return nil, err
	}
	if trailingGarbage > 0 {
		log.Printf("immortal: truncating %d trailing byte(s) of corrupt log data in %s", trailingGarbage, path)
		if err := truncateFile(path, trailingGarbage); err != nil {
			return nil, fmt.Errorf("truncate corrupt log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open immortal log: %w", err)
	}

	l := &Log{file: f, writer: bufio.NewWriter(f), lastHash: genesisHash, sink: sink}
	if len(entries) > 0 {
		l.lastHash = entries[len(entries)-1].Hash
	}
	return l, nil
}

// Append writes one entry to the log, chaining it to the previous hash,
// flushing and fsyncing before returning so a crash never loses an
// acknowledged append.
func (l *Log) Append(op OpTag, payload interface{}) (Entry, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode log payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := l.lastHash
	hash := chainHash(prevHash, op, body)

	record := encodeRecord(prevHash, op, body)
	if _, err := l.writer.Write(record); err != nil {
		return Entry{}, fmt.Errorf("write log record: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return Entry{}, fmt.Errorf("flush log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return Entry{}, fmt.Errorf("fsync log: %w", err)
	}

	l.lastHash = hash
	entry := Entry{PrevHash: prevHash, Hash: hash, Op: op, Payload: body}

	if l.sink != nil {
		if err := l.sink.Write(entry); err != nil {
			log.Printf("immortal: ghost-writer sink failed: %v", err)
		}
	}
	return entry, nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// chainHash computes hash_i = BLAKE3(prev_hash || op_tag || payload).
func chainHash(prevHash [hashSize]byte, op OpTag, payload []byte) [hashSize]byte {
	h := blake3.New(hashSize, nil)
	h.Write(prevHash[:])
	h.Write([]byte{byte(op)})
	h.Write(payload)
	var out [hashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// encodeRecord frames one entry as:
//
//	total_len u32 LE | op u8 | prev_hash[32] | payload | crc32 u32 LE
//
// crc32 covers op+prev_hash+payload.
func encodeRecord(prevHash [hashSize]byte, op OpTag, payload []byte) []byte {
	body := make([]byte, 0, 1+hashSize+len(payload))
	body = append(body, byte(op))
	body = append(body, prevHash[:]...)
	body = append(body, payload...)

	sum := crc32.ChecksumIEEE(body)

	out := make([]byte, 4+len(body)+4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)+4))
	copy(out[4:], body)
	binary.LittleEndian.PutUint32(out[4+len(body):], sum)
	return out
}

// rawRecord is one length-framed record read off the wire, before its CRC
// or chain linkage is checked.
type rawRecord struct {
	op        OpTag
	prevHash  [hashSize]byte
	payload   []byte
	crcOK     bool
	consumed  int64 // bytes consumed from the stream, including the length prefix
	shortRead bool  // stream ended before a complete record could be read
}

// readRawRecord reads and CRC-checks one record from r, without touching
// the hash chain (the caller decides what a chain break means). shortRead
// distinguishes "nothing more to read here" (an unclean shutdown's
// half-written tail) from a record that read in full but failed its CRC
// (tampering).
func readRawRecord(r *bufio.Reader) rawRecord {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return rawRecord{shortRead: true}
	}
	recLen := binary.LittleEndian.Uint32(lenBuf[:])
	if recLen < 1+hashSize+4 {
		return rawRecord{shortRead: true}
	}

	body := make([]byte, recLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return rawRecord{shortRead: true}
	}

	payloadLen := len(body) - 1 - hashSize - 4
	op := OpTag(body[0])
	var prevHash [hashSize]byte
	copy(prevHash[:], body[1:1+hashSize])
	payload := body[1+hashSize : 1+hashSize+payloadLen]
	storedCRC := binary.LittleEndian.Uint32(body[len(body)-4:])

	return rawRecord{
		op:       op,
		prevHash: prevHash,
		payload:  payload,
		crcOK:    crc32.ChecksumIEEE(body[:len(body)-4]) == storedCRC,
		consumed: 4 + int64(recLen),
	}
}

// Replay reads every well-formed entry from path in order. If a record is
// truncated or fails its CRC or chain check, replay stops there and
// reports the number of trailing bytes that should be discarded by the
// caller — this is the recovery path Open uses after an unclean shutdown,
// where anything past the break is presumed unwritten rather than
// tampered with. To distinguish an unclean-shutdown truncation from actual
// mid-file tampering (spec §8 scenario 5), use VerifyChain instead.
func Replay(path string) (entries []Entry, trailingGarbage int64, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open immortal log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat immortal log: %w", err)
	}
	total := info.Size()

	r := bufio.NewReader(f)
	var offset int64
	expectedPrev := genesisHash

	for offset < total {
		rec := readRawRecord(r)
		if rec.shortRead || !rec.crcOK || rec.prevHash != expectedPrev {
			return entries, total - offset, nil
		}

		hash := chainHash(rec.prevHash, rec.op, rec.payload)
		entries = append(entries, Entry{PrevHash: rec.prevHash, Hash: hash, Op: rec.op, Payload: rec.payload})
		expectedPrev = hash
		offset += rec.consumed
	}

	return entries, 0, nil
}

// VerifyChain replays path without mutating it, distinguishing an
// unclean-shutdown truncation (a record that couldn't be read in full,
// which is not an error — see Replay) from mid-file tampering (a record
// that read in full but broke its CRC or its link to the previous hash).
// It returns amemerr.IntegrityFailed naming the zero-based index of the
// first tampered entry, or nil if the file is clean.
func VerifyChain(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return amemerr.Wrap("validate", amemerr.Io, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return amemerr.Wrap("validate", amemerr.Io, err)
	}
	total := info.Size()

	r := bufio.NewReader(f)
	var offset int64
	expectedPrev := genesisHash
	index := 0

	for offset < total {
		rec := readRawRecord(r)
		if rec.shortRead {
			return nil
		}
		if !rec.crcOK {
			return amemerr.New("validate", amemerr.IntegrityFailed,
				fmt.Sprintf("entry %d: CRC mismatch", index))
		}
		if rec.prevHash != expectedPrev {
			return amemerr.New("validate", amemerr.IntegrityFailed,
				fmt.Sprintf("entry %d: hash chain broken", index))
		}

		expectedPrev = chainHash(rec.prevHash, rec.op, rec.payload)
		offset += rec.consumed
		index++
	}

	return nil
}

// Verify checks that every entry's stored hash chains correctly from the
// genesis hash, i.e. that entries form a tamper-evident proof.
func Verify(entries []Entry) bool {
	prev := genesisHash
	for _, e := range entries {
		if e.PrevHash != prev {
			return false
		}
		want := chainHash(e.PrevHash, e.Op, e.Payload)
		if want != e.Hash {
			return false
		}
		prev = e.Hash
	}
	return true
}

func truncateFile(path string, trailing int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Truncate(path, info.Size()-trailing)
}
