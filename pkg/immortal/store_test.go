package immortal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
)

func TestStoreAppendPopulatesHotTier(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	s, err := OpenStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	now := int64(time.Hour / time.Microsecond * 100000)
	_, err = s.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "hello", CreatedAt: now}, now)
	require.NoError(t, err)
	_, err = s.Append(OpAddNode, AddNodePayload{NodeID: 2, EventType: "Fact", Content: "world", CreatedAt: now}, now)
	require.NoError(t, err)

	hot := s.Hot()
	assert.Len(t, hot, 2)
}

func TestStoreReopenRecoversChainTip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	now := int64(1000)

	s, err := OpenStore(dir, nil)
	require.NoError(t, err)
	_, err = s.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "a", CreatedAt: now}, now)
	require.NoError(t, err)
	tip := s.LastHash()
	require.NoError(t, s.Close())

	s2, err := OpenStore(dir, nil)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, tip, s2.LastHash())
}

// TestStoreVerifyDetectsTamper tamper-flips a byte while the store's log
// file handle is still open, then verifies in place (no reopen): Open's
// own replay would truncate the tampered tail away before Verify ever saw
// it, which is exactly the silent-data-loss path Verify exists to avoid.
func TestStoreVerifyDetectsTamper(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	s, err := OpenStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	now := int64(1000)
	_, err = s.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "a", CreatedAt: now}, now)
	require.NoError(t, err)
	_, err = s.Append(OpAddNode, AddNodePayload{NodeID: 2, EventType: "Fact", Content: "b", CreatedAt: now}, now)
	require.NoError(t, err)

	assert.NoError(t, s.Verify())

	flipByteInSecondRecord(t, filepath.Join(dir, "warm.log"))

	err = s.Verify()
	require.Error(t, err)
	assert.Equal(t, amemerr.IntegrityFailed, amemerr.KindOf(err))
}

func TestStorePromoteOldEntriesToArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	s, err := OpenStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	oldTs := int64(0)
	_, err = s.Append(OpAddNode, AddNodePayload{NodeID: 1, EventType: "Fact", Content: "ancient", CreatedAt: oldTs}, oldTs)
	require.NoError(t, err)

	now := int64(400 * 24 * time.Hour / time.Microsecond)
	err = s.Promote(now)
	require.NoError(t, err)

	month := monthKey(oldTs)
	entries, err := ReadArchive(filepath.Join(dir, "frozen-"+month+".zst"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
