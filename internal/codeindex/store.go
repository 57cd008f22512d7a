package codeindex

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// Store persists indexed files and their symbols.
// Implementations: KuzuStore (graph database, cgo), MemStore.
type Store interface {
	io.Closer

	// Init prepares the schema. It must be idempotent.
	Init(ctx context.Context) error

	PutFile(ctx context.Context, file SourceFile) error
	PutSymbol(ctx context.Context, sym Symbol) error

	// FileSymbols returns the symbols of one file ordered by start line.
	FileSymbols(ctx context.Context, path string) ([]Symbol, error)
	// Search returns symbols whose name contains query, case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]Symbol, error)
	Stats(ctx context.Context) (Stats, error)
}

// Compile-time check.
var _ Store = (*MemStore)(nil)

// MemStore implements Store with maps guarded by a RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	files   map[string]SourceFile
	symbols map[string][]Symbol // keyed by file path
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		files:   make(map[string]SourceFile),
		symbols: make(map[string][]Symbol),
	}
}

// Init is a no-op.
func (m *MemStore) Init(context.Context) error { return nil }

// PutFile records a file, replacing any previous entry and its symbols.
func (m *MemStore) PutFile(_ context.Context, file SourceFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file.Path] = file
	delete(m.symbols, file.Path)
	return nil
}

// PutSymbol appends a symbol to its file's list.
func (m *MemStore) PutSymbol(_ context.Context, sym Symbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[sym.Path] = append(m.symbols[sym.Path], sym)
	return nil
}

// FileSymbols returns a copy of the file's symbols ordered by start line.
func (m *MemStore) FileSymbols(_ context.Context, path string) ([]Symbol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Symbol, len(m.symbols[path]))
	copy(out, m.symbols[path])
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out, nil
}

// Search scans all symbols. A limit <= 0 returns every match.
func (m *MemStore) Search(_ context.Context, query string, limit int) ([]Symbol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.symbols))
	for p := range m.symbols {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	q := strings.ToLower(query)
	var out []Symbol
	for _, p := range paths {
		for _, s := range m.symbols[p] {
			if !strings.Contains(strings.ToLower(s.Name), q) {
				continue
			}
			out = append(out, s)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// Stats counts files and symbols.
func (m *MemStore) Stats(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, syms := range m.symbols {
		n += len(syms)
	}
	return Stats{Files: len(m.files), Symbols: n}, nil
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }
