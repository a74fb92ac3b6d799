package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nerdcore/filecore/internal/parser"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(t *testing.T, events <-chan ProgressEvent) []ProgressEvent {
	t.Helper()
	var out []ProgressEvent
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining events")
		}
	}
}

func TestExecute_CreateWritesFile(t *testing.T) {
	dir := t.TempDir()
	e := New(Config{WorkspaceRoot: dir, StopOnError: true, PostOpSyntaxCheck: false})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "hello.txt", Content: "hi"}},
	}
	result, events := e.Execute(context.Background(), ops, false)
	drain(t, events)

	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Succeeded)

	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestExecute_DryRunDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	e := New(Config{WorkspaceRoot: dir, StopOnError: true})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "ghost.txt", Content: "x"}},
	}
	result, events := e.Execute(context.Background(), ops, true)
	drain(t, events)

	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Succeeded)
	_, err := os.Stat(filepath.Join(dir, "ghost.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_BacksUpExistingFileBeforeUpdate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("original"), 0644))

	e := New(Config{WorkspaceRoot: dir, StopOnError: true})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpUpdate, Path: "existing.txt", Content: "updated"}},
	}
	result, events := e.Execute(context.Background(), ops, false)
	drain(t, events)

	require.Len(t, result.Results, 1)
	require.NotNil(t, result.Results[0].Backup)
	assert.True(t, result.Results[0].Backup.Existed)

	backupData, err := os.ReadFile(result.Results[0].Backup.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(backupData))
}

func TestExecute_StopsOnErrorWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	e := New(Config{WorkspaceRoot: dir, StopOnError: true})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpUpdate, Path: "missing.txt", Content: "x"}},
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "second.txt", Content: "y"}},
	}
	result, events := e.Execute(context.Background(), ops, false)
	drain(t, events)

	assert.True(t, result.StoppedEarly)
	require.Len(t, result.Results, 1)
	assert.False(t, result.Results[0].Succeeded)
}

func TestExecute_DeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doomed.txt"), []byte("bye"), 0644))

	e := New(Config{WorkspaceRoot: dir, StopOnError: true})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpDelete, Path: "doomed.txt"}},
	}
	result, events := e.Execute(context.Background(), ops, false)
	drain(t, events)

	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Succeeded)
	_, err := os.Stat(filepath.Join(dir, "doomed.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_RenameMovesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), []byte("content"), 0644))

	e := New(Config{WorkspaceRoot: dir, StopOnError: true})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpRename, Path: "old.txt", NewPath: "new.txt"}},
	}
	result, events := e.Execute(context.Background(), ops, false)
	drain(t, events)

	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Succeeded)
	_, err := os.Stat(filepath.Join(dir, "new.txt"))
	assert.NoError(t, err)
}

func TestExecute_PostOpSyntaxCheckCatchesBrokenGo(t *testing.T) {
	dir := t.TempDir()
	e := New(Config{WorkspaceRoot: dir, StopOnError: true, PostOpSyntaxCheck: true})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "broken.go", Content: "package main\nfunc main( {\n"}},
	}
	result, events := e.Execute(context.Background(), ops, false)
	drain(t, events)

	require.Len(t, result.Results, 1)
	assert.False(t, result.Results[0].Succeeded)
}

func TestExecute_CycleReportsSingleFailure(t *testing.T) {
	dir := t.TempDir()
	e := New(Config{WorkspaceRoot: dir, StopOnError: true})
	defer e.Close()

	ops := []parser.OperationWithMetadata{
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "a.txt"}, Dependencies: []int{1}},
		{Operation: parser.FileOperation{Kind: parser.OpCreate, Path: "b.txt"}, Dependencies: []int{0}},
	}
	result, events := e.Execute(context.Background(), ops, false)
	drain(t, events)

	assert.True(t, result.StoppedEarly)
	require.Len(t, result.Results, 1)
	assert.False(t, result.Results[0].Succeeded)
}
