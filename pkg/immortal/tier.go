package immortal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Tier is the storage class a log segment currently occupies.
type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCold
	TierFrozen
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierWarm:
		return "warm"
	case TierCold:
		return "cold"
	case TierFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Tier age boundaries, as entry ages in microseconds, matching the donor's
// size-based rotation idiom but keyed on age instead of byte count.
const (
	hotWindow    = int64(24 * time.Hour / time.Microsecond)
	warmWindow   = int64(30 * 24 * time.Hour / time.Microsecond)
	coldWindow   = int64(365 * 24 * time.Hour / time.Microsecond)
)

// TierFor returns the tier an entry recorded at entryMicros belongs in,
// evaluated as of nowMicros.
func TierFor(entryMicros, nowMicros int64) Tier {
	age := nowMicros - entryMicros
	switch {
	case age < hotWindow:
		return TierHot
	case age < warmWindow:
		return TierWarm
	case age < coldWindow:
		return TierCold
	default:
		return TierFrozen
	}
}

// FrozenIndexEntry maps one entry's chain position to a byte offset inside
// a frozen monthly archive, so a point lookup never has to decompress the
// whole block.
type FrozenIndexEntry struct {
	Hash   [hashSize]byte
	Offset uint64
}

// Archiver promotes warm/cold segment files into compressed tiers during
// consolidation. It owns a directory laid out as:
//
//	<dir>/warm.log            uncompressed, <30d entries
//	<dir>/cold-YYYYMM.zst     zstd-compressed monthly blocks, <1y entries
//	<dir>/frozen-YYYYMM.zst   one compressed archive per month, >1y entries
//	<dir>/frozen-YYYYMM.idx   id->offset index for the matching archive
type Archiver struct {
	dir string
}

// NewArchiver returns an Archiver rooted at dir, creating it if absent.
func NewArchiver(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archiver{dir: dir}, nil
}

// monthKey formats a microsecond timestamp as the YYYYMM bucket its entry
// belongs in.
func monthKey(micros int64) string {
	return time.UnixMicro(micros).UTC().Format("200601")
}

// Promote compresses every entry in entries whose tier (as of nowMicros) is
// Cold or Frozen into the matching monthly archive, writing an index
// alongside the Frozen archive. Entries are expected already filtered to a
// single segment by the caller; Promote groups them by month internally.
func (a *Archiver) Promote(entries []Entry, entryMicros []int64, nowMicros int64) error {
	if len(entries) != len(entryMicros) {
		return fmt.Errorf("promote: entries/timestamps length mismatch")
	}

	byMonth := map[string][]int{}
	for i, ts := range entryMicros {
		tier := TierFor(ts, nowMicros)
		if tier != TierCold && tier != TierFrozen {
			continue
		}
		key := monthKey(ts)
		byMonth[key] = append(byMonth[key], i)
	}

	for month, idxs := range byMonth {
		sort.Ints(idxs)
		tier := TierFor(entryMicros[idxs[0]], nowMicros)
		prefix := "cold"
		if tier == TierFrozen {
			prefix = "frozen"
		}

		archivePath := filepath.Join(a.dir, fmt.Sprintf("%s-%s.zst", prefix, month))
		if err := a.writeArchive(archivePath, entries, idxs, prefix == "frozen", month); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archiver) writeArchive(path string, entries []Entry, idxs []int, withIndex bool, month string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("new zstd writer: %w", err)
	}
	defer enc.Close()

	var offset uint64
	var index []FrozenIndexEntry
	for _, i := range idxs {
		e := entries[i]
		record := encodeRecord(e.PrevHash, e.Op, e.Payload)
		n, err := enc.Write(record)
		if err != nil {
			return fmt.Errorf("write archive record: %w", err)
		}
		if withIndex {
			index = append(index, FrozenIndexEntry{Hash: e.Hash, Offset: offset})
		}
		offset += uint64(n)
	}

	if withIndex {
		idxPath := filepath.Join(a.dir, fmt.Sprintf("frozen-%s.idx", month))
		if err := writeFrozenIndex(idxPath, index); err != nil {
			return err
		}
	}
	return nil
}

func writeFrozenIndex(path string, index []FrozenIndexEntry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open frozen index %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range index {
		if _, err := w.Write(e.Hash[:]); err != nil {
			return err
		}
		var off [8]byte
		binary.LittleEndian.PutUint64(off[:], e.Offset)
		if _, err := w.Write(off[:]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadFrozenIndex loads an id->offset index written by writeFrozenIndex.
func ReadFrozenIndex(path string) ([]FrozenIndexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frozen index %s: %w", path, err)
	}
	defer f.Close()

	var out []FrozenIndexEntry
	r := bufio.NewReader(f)
	for {
		var e FrozenIndexEntry
		if _, err := io.ReadFull(r, e.Hash[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		var off [8]byte
		if _, err := io.ReadFull(r, off[:]); err != nil {
			return nil, err
		}
		e.Offset = binary.LittleEndian.Uint64(off[:])
		out = append(out, e)
	}
	return out, nil
}

// ReadArchive decompresses a cold or frozen monthly archive back into its
// entries, in original chain order.
func ReadArchive(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("new zstd reader: %w", err)
	}
	defer dec.Close()

	var entries []Entry
	r := bufio.NewReader(dec)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return entries, nil
		}
		recLen := binary.LittleEndian.Uint32(lenBuf[:])
		body := make([]byte, recLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return entries, nil
		}

		payloadLen := len(body) - 1 - hashSize - 4
		op := OpTag(body[0])
		var prevHash [hashSize]byte
		copy(prevHash[:], body[1:1+hashSize])
		payload := body[1+hashSize : 1+hashSize+payloadLen]

		hash := chainHash(prevHash, op, payload)
		entries = append(entries, Entry{PrevHash: prevHash, Hash: hash, Op: op, Payload: payload})
	}
	return entries, nil
}
