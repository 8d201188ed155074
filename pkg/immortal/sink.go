package immortal

// Sink is the pluggable "ghost writer" that mirrors every appended entry to
// an off-box destination. The core module ships only a file-based sink;
// a network or object-store sink is expected to live outside this module
// and satisfy the same interface.
type Sink interface {
	Write(Entry) error
}

// NopSink discards every entry; useful in tests and single-node setups that
// don't want a ghost writer at all.
type NopSink struct{}

func (NopSink) Write(Entry) error { return nil }

// FileSink mirrors entries to a second append-only file, independent of the
// primary log's segment/tier management. Modeled on the donor's FileExporter:
// a single *os.File opened in append mode behind a mutex.
type FileSink struct {
	log *Log
}

// NewFileSink opens (creating if absent) a mirror log at path. The mirror
// has its own hash chain rooted at genesis; it is a replica of the entry
// stream, not a byte-for-byte copy of the primary log's framing.
func NewFileSink(path string) (*FileSink, error) {
	l, err := Open(path, nil)
	if err != nil {
		return nil, err
	}
	return &FileSink{log: l}, nil
}

func (s *FileSink) Write(e Entry) error {
	_, err := s.log.Append(e.Op, rawPayload(e.Payload))
	return err
}

// Close closes the underlying mirror file.
func (s *FileSink) Close() error { return s.log.Close() }

// rawPayload lets FileSink re-append an already-encoded payload without
// re-marshaling it through msgpack a second time.
type rawPayload []byte

func (p rawPayload) MarshalMsgpack() ([]byte, error) { return []byte(p), nil }
