//go:build cgo

package codeindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKuzu(t *testing.T) *KuzuStore {
	t.Helper()
	s, err := NewKuzuStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestKuzuStore_InitIdempotent(t *testing.T) {
	s := newTestKuzu(t)
	require.NoError(t, s.Init(context.Background()))
}

func TestKuzuStore_FileSymbols(t *testing.T) {
	ctx := context.Background()
	s := newTestKuzu(t)

	require.NoError(t, s.PutFile(ctx, SourceFile{Path: "svc.go", Language: LangGo, Lines: 30}))
	require.NoError(t, s.PutSymbol(ctx, Symbol{Name: "Run", Kind: SymbolKindFunction, Exported: true, Path: "svc.go", StartLine: 20, EndLine: 25}))
	require.NoError(t, s.PutSymbol(ctx, Symbol{Name: "Service", Kind: SymbolKindType, Exported: true, Path: "svc.go", StartLine: 3, EndLine: 8}))

	syms, err := s.FileSymbols(ctx, "svc.go")
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "Service", syms[0].Name)
	assert.Equal(t, SymbolKindType, syms[0].Kind)
	assert.True(t, syms[0].Exported)
	assert.Equal(t, 20, syms[1].StartLine)

	found, err := s.Search(ctx, "serv", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1, Symbols: 2}, stats)
}

func TestKuzuStore_ReindexReplacesSymbols(t *testing.T) {
	ctx := context.Background()
	s := newTestKuzu(t)

	require.NoError(t, s.PutFile(ctx, SourceFile{Path: "a.py", Language: LangPython}))
	require.NoError(t, s.PutSymbol(ctx, Symbol{Name: "old", Path: "a.py", StartLine: 1}))
	require.NoError(t, s.PutFile(ctx, SourceFile{Path: "a.py", Language: LangPython}))
	require.NoError(t, s.PutSymbol(ctx, Symbol{Name: "new", Path: "a.py", StartLine: 1}))

	syms, err := s.FileSymbols(ctx, "a.py")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "new", syms[0].Name)
}

func TestIndex_KuzuBackendPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index", "graph.kuzu")

	ix, err := Open(ctx, "kuzu", path, nil)
	require.NoError(t, err)
	_, err = ix.Outline(ctx, "main.go", []byte("package main\n\nfunc main() {}\n"), 0)
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	reopened, err := NewKuzuStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	syms, err := reopened.FileSymbols(ctx, "main.go")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "main", syms[0].Name)
}
