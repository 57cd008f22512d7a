package codeindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Index parses source files and records their symbols in a Store.
type Index struct {
	parser Parser
	store  Store
	logger *slog.Logger
}

// New builds an Index over the given parser and store. The store's schema is
// initialized.
func New(ctx context.Context, parser Parser, store Store, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("codeindex: init store: %w", err)
	}
	return &Index{parser: parser, store: store, logger: logger}, nil
}

// Open builds an Index with the tree-sitter parser and the named backend:
// "memory" (default) or "kuzu". For kuzu, path selects the database
// location; empty keeps it in memory.
func Open(ctx context.Context, backend, path string, logger *slog.Logger) (*Index, error) {
	var store Store
	switch backend {
	case "", "memory":
		store = NewMemStore()
	case "kuzu":
		ks, err := NewKuzuStore(path)
		if err != nil {
			return nil, err
		}
		store = ks
	default:
		return nil, fmt.Errorf("codeindex: unknown backend %q", backend)
	}
	ix, err := New(ctx, NewTreeSitterParser(), store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return ix, nil
}

// Store exposes the backing store for queries.
func (ix *Index) Store() Store { return ix.store }

// Languages lists the languages the parser has grammars for.
func (ix *Index) Languages() []Language { return ix.parser.Languages() }

// Close releases the parser and store.
func (ix *Index) Close() error {
	perr := ix.parser.Close()
	serr := ix.store.Close()
	if perr != nil {
		return perr
	}
	return serr
}

// Add parses one file and stores its symbols. Files in languages without a
// grammar are skipped and reported with ok=false.
func (ix *Index) Add(ctx context.Context, path string, source []byte) (res *ParseResult, ok bool, err error) {
	lang, supported := LanguageForPath(path)
	if !supported {
		return nil, false, nil
	}
	res, err = ix.parser.Parse(ctx, path, source, lang)
	if err != nil {
		return nil, false, fmt.Errorf("codeindex: parse %s: %w", path, err)
	}
	if err := ix.store.PutFile(ctx, res.File); err != nil {
		return nil, false, fmt.Errorf("codeindex: store %s: %w", path, err)
	}
	for _, sym := range res.Symbols {
		if err := ix.store.PutSymbol(ctx, sym); err != nil {
			return nil, false, fmt.Errorf("codeindex: store symbol %s: %w", sym.Name, err)
		}
	}
	ix.logger.Debug("indexed source file", "path", path, "language", lang, "symbols", len(res.Symbols))
	return res, true, nil
}

// Outline indexes the file and renders its symbols as a bullet list, at
// most max lines (<= 0 means no cap). Unsupported languages yield "".
func (ix *Index) Outline(ctx context.Context, path string, source []byte, max int) (string, error) {
	res, ok, err := ix.Add(ctx, path, source)
	if err != nil || !ok {
		return "", err
	}
	syms, err := ix.store.FileSymbols(ctx, path)
	if err != nil {
		return "", fmt.Errorf("codeindex: symbols for %s: %w", path, err)
	}
	return FormatOutline(res.File, syms, max), nil
}

// FormatOutline renders a file's imports and symbols.
func FormatOutline(file SourceFile, syms []Symbol, max int) string {
	var b strings.Builder
	if len(file.Imports) > 0 {
		fmt.Fprintf(&b, "imports: %s\n", strings.Join(file.Imports, ", "))
	}
	for i, s := range syms {
		if max > 0 && i >= max {
			fmt.Fprintf(&b, "- ... %d more\n", len(syms)-max)
			break
		}
		vis := ""
		if s.Exported {
			vis = " (exported)"
		}
		fmt.Fprintf(&b, "- %s %s%s, lines %d-%d\n", s.Kind, s.Name, vis, s.StartLine, s.EndLine)
	}
	return strings.TrimRight(b.String(), "\n")
}
