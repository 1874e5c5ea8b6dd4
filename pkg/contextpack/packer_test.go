package contextpack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeready-toolchain/ganaudit/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPathsConcatenatesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b"), 0o644))

	p := New()
	cfg := session.Config{Scope: session.ScopePaths, Paths: []string{"a.go", "b.go"}}
	pack := p.Pack(context.Background(), cfg, dir)

	assert.False(t, pack.Fallback)
	assert.Contains(t, pack.Text, "package a")
	assert.Contains(t, pack.Text, "package b")
}

func TestPackPathsMissingPathsIsFallback(t *testing.T) {
	p := New()
	cfg := session.Config{Scope: session.ScopePaths}
	pack := p.Pack(context.Background(), cfg, t.TempDir())
	assert.True(t, pack.Fallback)
}

func TestPackPathsUnreadablePathNotesButDoesNotFail(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))

	p := New()
	cfg := session.Config{Scope: session.ScopePaths, Paths: []string{"a.go", "missing.go"}}
	pack := p.Pack(context.Background(), cfg, dir)

	assert.False(t, pack.Fallback)
	assert.Contains(t, pack.Note, "missing.go")
}

func TestPackWorkspaceWalksDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	p := New()
	cfg := session.Config{Scope: session.ScopeWorkspace}
	pack := p.Pack(context.Background(), cfg, dir)

	assert.False(t, pack.Fallback)
	assert.Contains(t, pack.Text, "package main")
	assert.NotContains(t, pack.Text, "refs/heads/main")
}

func TestPackWorkspaceRespectsCharCap(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 1000)
	for i := range big {
		big[i] = 'x'
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), big, 0o644))

	p := &DefaultPacker{CharCap: 100, FileCapByte: DefaultFileCapBytes}
	cfg := session.Config{Scope: session.ScopeWorkspace}
	pack := p.Pack(context.Background(), cfg, dir)

	assert.LessOrEqual(t, len(pack.Text), 100)
}

func TestPackDiffFallsBackOutsideGitRepo(t *testing.T) {
	dir := t.TempDir()
	p := New()
	cfg := session.Config{Scope: session.ScopeDiff}
	pack := p.Pack(context.Background(), cfg, dir)
	assert.True(t, pack.Fallback)
}
