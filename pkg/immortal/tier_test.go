package immortal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierForBoundaries(t *testing.T) {
	now := int64(1000 * time.Hour / time.Microsecond)

	hotTs := now - int64(1*time.Hour/time.Microsecond)
	warmTs := now - int64(10*24*time.Hour/time.Microsecond)
	coldTs := now - int64(100*24*time.Hour/time.Microsecond)
	frozenTs := now - int64(400*24*time.Hour/time.Microsecond)

	assert.Equal(t, TierHot, TierFor(hotTs, now))
	assert.Equal(t, TierWarm, TierFor(warmTs, now))
	assert.Equal(t, TierCold, TierFor(coldTs, now))
	assert.Equal(t, TierFrozen, TierFor(frozenTs, now))
}

func TestArchiverPromoteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	archiver, err := NewArchiver(dir)
	assert.NoError(t, err)

	now := int64(1000 * 24 * time.Hour / time.Microsecond)
	frozenTs := now - int64(400*24*time.Hour/time.Microsecond)

	e := Entry{PrevHash: genesisHash, Op: OpAddNode, Payload: []byte("payload-a")}
	e.Hash = chainHash(e.PrevHash, e.Op, e.Payload)

	err = archiver.Promote([]Entry{e}, []int64{frozenTs}, now)
	assert.NoError(t, err)

	month := monthKey(frozenTs)
	archivePath := dir + "/frozen-" + month + ".zst"
	back, err := ReadArchive(archivePath)
	assert.NoError(t, err)
	assert.Len(t, back, 1)
	assert.Equal(t, e.Op, back[0].Op)
	assert.Equal(t, e.Payload, back[0].Payload)

	idxPath := dir + "/frozen-" + month + ".idx"
	index, err := ReadFrozenIndex(idxPath)
	assert.NoError(t, err)
	assert.Len(t, index, 1)
	assert.Equal(t, e.Hash, index[0].Hash)
}
