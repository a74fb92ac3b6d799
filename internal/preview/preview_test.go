package preview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdcore/filecore/internal/parser"
)

func TestGenerate_CreateShowsFullAddition(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir)

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "new.txt", Content: "hello\nworld"}},
	}

	bp := g.Generate(ops)
	require.Len(t, bp.Operations, 1)
	op := bp.Operations[0]
	assert.Empty(t, op.Error)
	assert.Equal(t, "", op.Before)
	assert.Equal(t, "hello\nworld", op.After)
	assert.True(t, op.Diff.IsNew)
}

func TestGenerate_UpdateReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("line1\nline2"), 0644))

	g := NewGenerator(dir)
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpUpdate, Path: "existing.txt", Content: "line1\nCHANGED"}},
	}

	bp := g.Generate(ops)
	require.Len(t, bp.Operations, 1)
	assert.Equal(t, "line1\nline2", bp.Operations[0].Before)
	assert.Equal(t, "line1\nCHANGED", bp.Operations[0].After)
}

func TestGenerate_DeleteRiskHigh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doomed.txt"), []byte("content"), 0644))

	g := NewGenerator(dir)
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "doomed.txt"}},
	}

	bp := g.Generate(ops)
	require.Len(t, bp.Operations, 1)
	assert.Equal(t, RiskHigh, bp.Operations[0].Impact.RiskLevel)
	assert.True(t, bp.Operations[0].Impact.Reversible)
}

func TestGenerate_AppendConcatenates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log.txt"), []byte("line1\n"), 0644))

	g := NewGenerator(dir)
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpAppend, Path: "log.txt", Content: "line2\n"}},
	}

	bp := g.Generate(ops)
	require.Len(t, bp.Operations, 1)
	assert.Equal(t, "line1\nline2\n", bp.Operations[0].After)
}

func TestGenerate_DependencyOrderRespected(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir)

	// Op 1 depends on op 0; generate should order 0 before 1.
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "b.txt"}, Dependencies: []int{1}},
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.txt"}},
	}

	bp := g.Generate(ops)
	require.Len(t, bp.Operations, 2)
	assert.Equal(t, 1, bp.Operations[0].Index)
	assert.Equal(t, 0, bp.Operations[1].Index)
}

func TestGenerate_CycleYieldsErrorEntry(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir)

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.txt"}, Dependencies: []int{1}},
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "b.txt"}, Dependencies: []int{0}},
	}

	bp := g.Generate(ops)
	require.Len(t, bp.Operations, 1)
	assert.NotEmpty(t, bp.Operations[0].Error)
}

func TestTopologicalOrder_TiesBreakByIndex(t *testing.T) {
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "z.txt"}},
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "y.txt"}},
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "x.txt"}},
	}
	order, err := TopologicalOrder(ops)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestRenamePreviewUsesNewPathForDiff(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), []byte("content"), 0644))

	g := NewGenerator(dir)
	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpRename, Path: "old.txt", NewPath: "new.txt"}},
	}

	bp := g.Generate(ops)
	require.Len(t, bp.Operations, 1)
	assert.Equal(t, "new.txt", bp.Operations[0].Diff.NewPath)
	assert.Equal(t, RiskMedium, bp.Operations[0].Impact.RiskLevel)
}
