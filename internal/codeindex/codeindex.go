// Package codeindex extracts top-level symbols from source files with
// tree-sitter and keeps them in a queryable store. The classifier uses it to
// attach symbol outlines to code excerpts in detailed analysis.
package codeindex

import (
	"context"
	"path"
	"strings"
)

// Language identifies a grammar the parser can load.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
)

// SupportedLanguages are the languages with a registered grammar.
var SupportedLanguages = []Language{LangGo, LangTypeScript, LangPython, LangRust}

// LanguageForPath maps a file extension to a Language.
func LanguageForPath(p string) (Language, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".go":
		return LangGo, true
	case ".ts", ".tsx":
		return LangTypeScript, true
	case ".py":
		return LangPython, true
	case ".rs":
		return LangRust, true
	default:
		return "", false
	}
}

// SymbolKind classifies a symbol.
type SymbolKind string

const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindType      SymbolKind = "type"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindEnum      SymbolKind = "enum"
)

// SourceFile describes one indexed file.
type SourceFile struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
	Lines    int      `json:"lines"`
	Imports  []string `json:"imports,omitempty"`
}

// Symbol is a named declaration within a source file.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Exported  bool       `json:"exported"`
	Path      string     `json:"path"`
	StartLine int        `json:"startLine"`
	EndLine   int        `json:"endLine"`
}

// ParseResult holds what was extracted from a single file.
type ParseResult struct {
	File    SourceFile `json:"file"`
	Symbols []Symbol   `json:"symbols"`
}

// Parser extracts symbols from source text.
type Parser interface {
	Parse(ctx context.Context, path string, source []byte, lang Language) (*ParseResult, error)
	Languages() []Language
	Close() error
}

// Stats summarizes a store.
type Stats struct {
	Files   int `json:"files"`
	Symbols int `json:"symbols"`
}
