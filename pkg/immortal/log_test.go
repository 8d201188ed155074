package immortal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
)

func TestAppendAndReplayChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")

	l, err := Open(path, nil)
	require.NoError(t, err)

	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "x", CreatedAt: 100})
	require.NoError(t, err)
	_, err = l.Append(OpAddEdge, AddEdgePayload{EdgeID: 1, SourceID: 1, TargetID: 2, EdgeType: "CausedBy"})
	require.NoError(t, err)
	_, err = l.Append(OpDelete, DeletePayload{NodeID: 2})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	entries, garbage, err := Replay(path)
	require.NoError(t, err)
	assert.Zero(t, garbage)
	require.Len(t, entries, 3)
	assert.Equal(t, OpAddNode, entries[0].Op)
	assert.Equal(t, OpAddEdge, entries[1].Op)
	assert.Equal(t, OpDelete, entries[2].Op)
	assert.True(t, Verify(entries))
}

func TestReplayDetectsTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")

	l, err := Open(path, nil)
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "x", CreatedAt: 100})
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 2, EventType: "Fact", Content: "y", CreatedAt: 200})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// Simulate a crash mid-write by appending a few garbage bytes.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xDE, 0xAD, 0xBE})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, garbage, err := Replay(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(3), garbage)
}

func TestOpenTruncatesCorruptTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")

	l, err := Open(path, nil)
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "x", CreatedAt: 100})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x00, 0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l2, err := Open(path, nil)
	require.NoError(t, err)
	defer l2.Close()

	entries, garbage, err := Replay(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Zero(t, garbage, "Open should have truncated the corrupt tail already")
}

func TestVerifyChainDetectsMidFileTamper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")

	l, err := Open(path, nil)
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "x", CreatedAt: 100})
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 2, EventType: "Fact", Content: "y", CreatedAt: 200})
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 3, EventType: "Fact", Content: "z", CreatedAt: 300})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	flipByteInSecondRecord(t, path)

	err = VerifyChain(path)
	require.Error(t, err)
	assert.Equal(t, amemerr.IntegrityFailed, amemerr.KindOf(err))
}

func TestVerifyChainIgnoresCleanTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")

	l, err := Open(path, nil)
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "x", CreatedAt: 100})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xDE, 0xAD, 0xBE})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.NoError(t, VerifyChain(path), "a half-written tail from an unclean shutdown is not tamper")
}

// flipByteInSecondRecord flips one byte inside the second record's
// prev_hash field — deep enough in the record to guarantee the flip lands
// in tamper-checked bytes rather than in any record's length prefix, which
// would otherwise make the corruption look like an ordinary short read.
func flipByteInSecondRecord(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	firstLen := binary.LittleEndian.Uint32(data[0:4])
	secondRecordStart := 4 + int(firstLen)
	require.Greater(t, len(data), secondRecordStart+4+1+hashSize)

	// skip the second record's own 4-byte length prefix and 1-byte op tag,
	// then flip a byte inside its 32-byte prev_hash field.
	flipOffset := secondRecordStart + 4 + 1 + 5
	data[flipOffset] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestChainHashChangesWithPrevHash(t *testing.T) {
	payload := []byte("same payload")
	h1 := chainHash(genesisHash, OpAddNode, payload)
	h2 := chainHash(h1, OpAddNode, payload)
	assert.NotEqual(t, h1, h2)
}

func TestFileSinkMirrorsEntries(t *testing.T) {
	dir := t.TempDir()
	sinkPath := filepath.Join(dir, "mirror.bin")

	sink, err := NewFileSink(sinkPath)
	require.NoError(t, err)

	l, err := Open(filepath.Join(dir, "primary.bin"), sink)
	require.NoError(t, err)
	_, err = l.Append(OpAddNode, AddNodePayload{NodeID: 7, EventType: "Fact", Content: "z", CreatedAt: 1})
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, sink.Close())

	mirrored, _, err := Replay(sinkPath)
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.Equal(t, OpAddNode, mirrored[0].Op)
}
