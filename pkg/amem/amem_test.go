package amem

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
	"github.com/dan-solli/agenticmemory/pkg/consolidation"
	"github.com/dan-solli/agenticmemory/pkg/correction"
	"github.com/dan-solli/agenticmemory/pkg/graph"
)

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.amem")
	h, err := Create(path, Config{Dimension: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestCreateOpenSaveClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.amem")

	h, err := Create(path, Config{Dimension: 4})
	require.NoError(t, err)

	id, err := h.Add(AddParams{EventType: graph.Fact, Content: "paris is the capital of france", Confidence: 0.9})
	require.NoError(t, err)
	require.NoError(t, h.Save())
	require.NoError(t, h.Close())

	reopened, err := Open(path, Config{})
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "paris is the capital of france", n.Content)
}

func TestCreateFailsIfStoreExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.amem")
	h, err := Create(path, Config{Dimension: 4})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = Create(path, Config{Dimension: 4})
	assert.Error(t, err)
}

func TestAddLinkGetDelete(t *testing.T) {
	h := newTestHandle(t)

	srcID, err := h.Add(AddParams{EventType: graph.Fact, Content: "the sky is blue", Confidence: 1.0})
	require.NoError(t, err)
	dstID, err := h.Add(AddParams{EventType: graph.Inference, Content: "therefore it is daytime", Confidence: 0.6})
	require.NoError(t, err)

	edgeID, err := h.Link(srcID, dstID, graph.CausedBy, 1.0)
	require.NoError(t, err)
	assert.NotZero(t, edgeID)

	n, err := h.Get(srcID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n.AccessCount)

	require.NoError(t, h.Delete(dstID))
	_, err = h.Get(dstID)
	assert.Error(t, err)
}

func TestSearchFindsAddedContent(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Add(AddParams{EventType: graph.Fact, Content: "rust uses ownership for memory safety", Confidence: 1.0})
	require.NoError(t, err)
	_, err = h.Add(AddParams{EventType: graph.Fact, Content: "go uses garbage collection", Confidence: 1.0})
	require.NoError(t, err)

	results := h.Search("ownership memory safety", 5)
	require.NotEmpty(t, results)
}

func TestCorrectAndResolve(t *testing.T) {
	h := newTestHandle(t)
	oldID, err := h.Add(AddParams{EventType: graph.Fact, Content: "the meeting is at 3pm", Confidence: 0.8})
	require.NoError(t, err)

	newID, err := h.Correct(oldID, "the meeting is at 4pm", 0.9)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)

	n, err := h.Get(newID)
	require.NoError(t, err)
	assert.Equal(t, graph.Correction, n.EventType)
	assert.Equal(t, "the meeting is at 4pm", n.Content)

	resolved, err := h.Resolve(oldID)
	require.NoError(t, err)
	assert.Equal(t, newID, resolved)

	chain, err := h.SupersedesChain(oldID)
	require.NoError(t, err)
	assert.Contains(t, chain, oldID)
	assert.Contains(t, chain, newID)
}

func TestConsolidateDryRunDoesNotAppendBoundary(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Add(AddParams{EventType: graph.Fact, Content: "duplicate fact", Confidence: 1.0})
	require.NoError(t, err)

	logPath := filepath.Join(walDir(h.path), "warm.log")
	before, err := os.Stat(logPath)
	require.NoError(t, err)

	report := h.Consolidate(consolidation.Params{
		DryRun: true,
		Operations: []consolidation.OpSpec{
			{Op: consolidation.OpDeduplicateFacts, Threshold: 0.9},
		},
	})
	assert.NotNil(t, report)

	after, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Equal(t, before.Size(), after.Size())
}

func TestCompactPromotesAndRecordsMarker(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Add(AddParams{EventType: graph.Fact, Content: "a fact to compact", Confidence: 1.0})
	require.NoError(t, err)

	logPath := filepath.Join(walDir(h.path), "warm.log")
	before, err := os.Stat(logPath)
	require.NoError(t, err)

	payload, err := h.Compact()
	require.NoError(t, err)
	assert.Zero(t, payload.RemovedNodes)

	after, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Greater(t, after.Size(), before.Size())
}

func TestStatsReportsCounts(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Add(AddParams{EventType: graph.Fact, Content: "fact one", Confidence: 1.0, SessionID: 1})
	require.NoError(t, err)
	_, err = h.Add(AddParams{EventType: graph.Decision, Content: "decision one", Confidence: 1.0, SessionID: 2})
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 2, stats.SessionCount)
	assert.Equal(t, 1, stats.TypeCounts[graph.Fact])
	assert.Equal(t, 1, stats.TypeCounts[graph.Decision])
	assert.EqualValues(t, 4, stats.Dimension)
}

func TestValidateReportsCleanStore(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Add(AddParams{EventType: graph.Fact, Content: "a clean fact", Confidence: 1.0})
	require.NoError(t, err)
	require.NoError(t, h.Save())

	report, err := h.Validate()
	require.NoError(t, err)
	assert.True(t, report.FileOK)
	assert.True(t, report.LogOK)
}

func TestValidateDetectsTamperedLog(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Add(AddParams{EventType: graph.Fact, Content: "first", Confidence: 1.0})
	require.NoError(t, err)
	_, err = h.Add(AddParams{EventType: graph.Fact, Content: "second", Confidence: 1.0})
	require.NoError(t, err)
	require.NoError(t, h.Save())

	logPath := filepath.Join(walDir(h.path), "warm.log")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	firstLen := binary.LittleEndian.Uint32(data[0:4])
	flipOffset := 4 + int(firstLen) + 4 + 1 + 5
	require.Greater(t, len(data), flipOffset)
	data[flipOffset] ^= 0xFF
	require.NoError(t, os.WriteFile(logPath, data, 0644))

	report, err := h.Validate()
	require.Error(t, err)
	assert.Equal(t, amemerr.IntegrityFailed, amemerr.KindOf(err))
	assert.False(t, report.LogOK)
	assert.Equal(t, amemerr.IntegrityFailed, report.LogFailureKind)
}

func TestDetectGapsOnUnjustifiedDecision(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Add(AddParams{EventType: graph.Decision, Content: "ship on friday", Confidence: 0.5})
	require.NoError(t, err)

	report := h.DetectGaps(correction.GapParams{ConfidenceThreshold: 0.7, MinSupportCount: 1})
	assert.NotNil(t, report.Gaps)
}
