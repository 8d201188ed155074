package immortal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Store is the full tiered Immortal Log: a hash-chained append log (Hot and
// Warm tiers, both backed by the same on-disk file — Hot is simply its most
// recent window, kept mirrored in memory for read-through) plus an Archiver
// for the Cold and Frozen tiers. Promotion from Warm into Cold/Frozen runs
// during consolidation, never inline with Append.
type Store struct {
	mu        sync.RWMutex
	log       *Log
	archiver  *Archiver
	stampPath string

	hot        []Entry // most recent window, newest last
	stamps     []int64 // append time (micros) parallel to every warm-tier entry, oldest first
}

// OpenStore opens or creates a tiered log rooted at dir: dir/warm.log holds
// the hash-chained append log, dir/warm.stamps holds the per-entry append
// timestamps the tiering decision needs, and dir/cold-*.zst, dir/frozen-*.zst
// hold promoted archives.
func OpenStore(dir string, sink Sink) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create immortal store dir: %w", err)
	}

	logPath := filepath.Join(dir, "warm.log")
	l, err := Open(logPath, sink)
	if err != nil {
		return nil, err
	}

	archiver, err := NewArchiver(dir)
	if err != nil {
		return nil, err
	}

	stampPath := filepath.Join(dir, "warm.stamps")
	stamps, err := readStamps(stampPath)
	if err != nil {
		return nil, err
	}

	s := &Store{log: l, archiver: archiver, stampPath: stampPath, stamps: stamps}
	s.refreshHot(nil)
	return s, nil
}

// Append writes one entry to the log and records its append time for later
// tiering decisions.
func (s *Store) Append(op OpTag, payload interface{}, nowMicros int64) (Entry, error) {
	e, err := s.log.Append(op, payload)
	if err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stamps = append(s.stamps, nowMicros)
	if err := appendStamp(s.stampPath, nowMicros); err != nil {
		return e, fmt.Errorf("record entry timestamp: %w", err)
	}
	s.refreshHotLocked(nowMicros)
	return e, nil
}

// Hot returns the entries currently within the Hot-tier window, newest last.
func (s *Store) Hot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.hot))
	copy(out, s.hot)
	return out
}

// refreshHot recomputes the in-memory Hot-tier cache from the warm log, as
// of nowMicros (nil means "use the newest recorded stamp", for Open-time
// warmup when no caller-provided clock is yet available).
func (s *Store) refreshHot(nowMicros *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var now int64
	if nowMicros != nil {
		now = *nowMicros
	} else if len(s.stamps) > 0 {
		now = s.stamps[len(s.stamps)-1]
	}
	s.refreshHotLocked(now)
}

func (s *Store) refreshHotLocked(now int64) {
	entries, _, err := Replay(s.log.file.Name())
	if err != nil {
		return
	}
	n := len(entries)
	if n > len(s.stamps) {
		n = len(s.stamps)
		entries = entries[:n]
	}

	var hot []Entry
	for i := 0; i < n; i++ {
		if TierFor(s.stamps[i], now) == TierHot {
			hot = append(hot, entries[i])
		}
	}
	s.hot = hot
}

// Promote copies every Warm-tier entry that has aged into Cold or Frozen
// (as of nowMicros) into the matching compressed archive via the Archiver.
// It does not rewrite warm.log to drop the promoted entries — the
// chain-of-custody file is left intact as the authoritative replay source.
// Promote is not idempotent: a second run archives the same entries again,
// and ReadArchive/ReadFrozenIndex return such duplicates as they are.
func (s *Store) Promote(nowMicros int64) error {
	s.mu.RLock()
	entries, _, err := Replay(s.log.file.Name())
	stamps := append([]int64(nil), s.stamps...)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if len(entries) > len(stamps) {
		entries = entries[:len(stamps)]
	}
	return s.archiver.Promote(entries, stamps, nowMicros)
}

// Verify checks the Warm-tier log file's hash chain without mutating it,
// returning amemerr.IntegrityFailed (via VerifyChain) naming the first
// tampered entry, or nil if the chain is intact.
func (s *Store) Verify() error {
	s.mu.RLock()
	path := s.log.file.Name()
	s.mu.RUnlock()
	return VerifyChain(path)
}

// Close closes the underlying log file.
func (s *Store) Close() error {
	return s.log.Close()
}

// LastHash returns the current chain tip.
func (s *Store) LastHash() [hashSize]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.lastHash
}

func readStamps(path string) ([]int64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open stamps file: %w", err)
	}
	defer f.Close()

	var stamps []int64
	r := bufio.NewReader(f)
	for {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return stamps, nil
		}
		stamps = append(stamps, int64(binary.LittleEndian.Uint64(buf[:])))
	}
	return stamps, nil
}

func appendStamp(path string, micros int64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(micros))
	_, err = f.Write(buf[:])
	return err
}
