package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdcore/filecore/internal/decision"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOps() []parser.OperationWithMetadata {
	return []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.go", Content: "package main"}},
	}
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Insert(sampleOps(), "fp-1", scoring.UnifiedScore{Confidence: 90, Risk: 5}, decision.ExecutionDecision{Kind: decision.AutoExecute})
	require.NoError(t, err)
	assert.NotZero(t, id)

	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "fp-1", rec.ContextFingerprint)
	assert.Equal(t, decision.AutoExecute, rec.Decision.Kind)
	assert.Nil(t, rec.Outcome)
}

func TestUpdateOutcome(t *testing.T) {
	s := openTestStore(t)
	id, err := s.Insert(sampleOps(), "fp-2", scoring.UnifiedScore{}, decision.ExecutionDecision{})
	require.NoError(t, err)

	require.NoError(t, s.UpdateOutcome(id, Outcome{Succeeded: true, DurationMS: 42}))

	rec, err := s.Get(id)
	require.NoError(t, err)
	require.NotNil(t, rec.Outcome)
	assert.True(t, rec.Outcome.Succeeded)
	assert.Equal(t, int64(42), rec.Outcome.DurationMS)
}

func TestRecordBackupAndBackupsFor(t *testing.T) {
	s := openTestStore(t)
	id, err := s.Insert(sampleOps(), "fp-3", scoring.UnifiedScore{}, decision.ExecutionDecision{})
	require.NoError(t, err)

	_, err = s.RecordBackup(id, "a.go", "/tmp/backups/a.go.bak", true)
	require.NoError(t, err)

	backups, err := s.BackupsFor(id)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "a.go", backups[0].Path)
	assert.True(t, backups[0].Existed)
}

func TestStatistics(t *testing.T) {
	s := openTestStore(t)

	id1, _ := s.Insert(sampleOps(), "fp-a", scoring.UnifiedScore{}, decision.ExecutionDecision{Kind: decision.AutoExecute})
	require.NoError(t, s.UpdateOutcome(id1, Outcome{Succeeded: true}))

	id2, _ := s.Insert(sampleOps(), "fp-b", scoring.UnifiedScore{}, decision.ExecutionDecision{Kind: decision.RequireConfirmation})
	require.NoError(t, s.UpdateOutcome(id2, Outcome{Succeeded: false}))

	stats, err := s.Statistics()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRecords)
	assert.Equal(t, int64(1), stats.SucceededCount)
	assert.Equal(t, int64(1), stats.FailedCount)
	assert.Equal(t, int64(1), stats.AutoExecuteCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.001)
}

func TestSimilarSuccessRate_NoDataReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	rate, hasData := s.SimilarSuccessRate(sampleOps())
	assert.False(t, hasData)
	assert.Zero(t, rate)
}

func TestSimilarSuccessRate_AggregatesMatchingBatches(t *testing.T) {
	s := openTestStore(t)

	id1, _ := s.Insert(sampleOps(), "fp-x", scoring.UnifiedScore{}, decision.ExecutionDecision{})
	require.NoError(t, s.UpdateOutcome(id1, Outcome{Succeeded: true}))

	id2, _ := s.Insert(sampleOps(), "fp-y", scoring.UnifiedScore{}, decision.ExecutionDecision{})
	require.NoError(t, s.UpdateOutcome(id2, Outcome{Succeeded: false}))

	rate, hasData := s.SimilarSuccessRate(sampleOps())
	require.True(t, hasData)
	assert.InDelta(t, 0.5, rate, 0.001)
}

func TestJaccardAndSimilarity(t *testing.T) {
	a := map[string]bool{".go": true, "kind:CREATE": true}
	b := map[string]bool{".go": true, "kind:CREATE": true}
	assert.Equal(t, 1.0, jaccard(a, b))
	assert.Equal(t, 1.0, similarity(a, b))

	c := map[string]bool{".py": true, "kind:DELETE": true}
	assert.Equal(t, 0.0, jaccard(a, c))
}
