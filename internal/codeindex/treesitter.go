package codeindex

import (
	"bytes"
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Compile-time check.
var _ Parser = (*TreeSitterParser)(nil)

// TreeSitterParser implements Parser with tree-sitter grammars. A native
// parser is created per Parse call, so the type is safe for sequential use.
type TreeSitterParser struct {
	languages map[Language]*tree_sitter.Language
	specs     map[Language]*langSpec
}

// NewTreeSitterParser registers the Go, TypeScript, Python and Rust grammars.
func NewTreeSitterParser() *TreeSitterParser {
	return &TreeSitterParser{
		languages: map[Language]*tree_sitter.Language{
			LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		},
		specs: map[Language]*langSpec{
			LangGo:         goSpec,
			LangTypeScript: tsSpec,
			LangPython:     pySpec,
			LangRust:       rsSpec,
		},
	}
}

// Parse extracts declarations and imports from one file.
func (p *TreeSitterParser) Parse(ctx context.Context, path string, source []byte, lang Language) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("codeindex: unsupported language: %s", lang)
	}
	spec := p.specs[lang]

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("codeindex: set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("codeindex: nil tree for %s", path)
	}
	defer tree.Close()

	w := &walker{spec: spec, source: source, path: path}
	cursor := tree.RootNode().Walk()
	defer cursor.Close()
	w.walk(cursor)

	return &ParseResult{
		File: SourceFile{
			Path:     path,
			Language: lang,
			Lines:    countLines(source),
			Imports:  w.imports,
		},
		Symbols: w.symbols,
	}, nil
}

// Languages returns the registered languages.
func (p *TreeSitterParser) Languages() []Language {
	out := make([]Language, 0, len(p.languages))
	for _, l := range SupportedLanguages {
		if _, ok := p.languages[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Close is a no-op because native parsers are released per call.
func (p *TreeSitterParser) Close() error { return nil }

// walker accumulates symbols and imports during a cursor traversal.
type walker struct {
	spec    *langSpec
	source  []byte
	path    string
	symbols []Symbol
	imports []string
}

func (w *walker) walk(cursor *tree_sitter.TreeCursor) {
	node := cursor.Node()
	kind := node.Kind()

	descend := true
	if kindSym, ok := w.spec.named[kind]; ok && w.spec.accepts(node) {
		if sym, ok := w.named(node, kindSym); ok {
			w.symbols = append(w.symbols, sym)
		}
	}
	if fn, ok := w.spec.special[kind]; ok {
		descend = fn(w, node)
	}
	if fn, ok := w.spec.imports[kind]; ok {
		w.imports = append(w.imports, fn(node, w.source)...)
	}

	if descend && cursor.GotoFirstChild() {
		w.walk(cursor)
		for cursor.GotoNextSibling() {
			w.walk(cursor)
		}
		cursor.GotoParent()
	}
}

// named builds a symbol from a node carrying a "name" field.
func (w *walker) named(node *tree_sitter.Node, kind SymbolKind) (Symbol, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := nameNode.Utf8Text(w.source)
	if name == "" {
		return Symbol{}, false
	}
	return Symbol{
		Name:      name,
		Kind:      kind,
		Exported:  w.spec.exported(node, name),
		Path:      w.path,
		StartLine: int(node.StartPosition().Row) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
	}, true
}

func countLines(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	return bytes.Count(source, []byte{'\n'}) + 1
}
