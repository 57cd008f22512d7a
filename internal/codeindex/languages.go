package codeindex

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// langSpec tells the walker which node kinds matter for one grammar.
type langSpec struct {
	// named maps a node kind with a "name" field to the symbol it declares.
	named map[string]SymbolKind
	// special handles node kinds needing custom extraction. The return value
	// reports whether the walker should descend into the node.
	special map[string]func(w *walker, node *tree_sitter.Node) bool
	// imports extracts module paths from import-like nodes.
	imports  map[string]func(node *tree_sitter.Node, source []byte) []string
	exported func(node *tree_sitter.Node, name string) bool
	// topLevel, when set, restricts named symbols to module scope.
	topLevel func(node *tree_sitter.Node) bool
}

func (s *langSpec) accepts(node *tree_sitter.Node) bool {
	return s.topLevel == nil || s.topLevel(node)
}

// ---------------------------------------------------------------------------
// Go
// ---------------------------------------------------------------------------

var goSpec = &langSpec{
	named: map[string]SymbolKind{
		"function_declaration": SymbolKindFunction,
		"method_declaration":   SymbolKindMethod,
	},
	special: map[string]func(*walker, *tree_sitter.Node) bool{
		"type_declaration": goTypeDeclaration,
	},
	imports: map[string]func(*tree_sitter.Node, []byte) []string{
		"import_spec": func(node *tree_sitter.Node, source []byte) []string {
			return fieldText(node, "path", source, "interpreted_string_literal")
		},
	},
	exported: func(_ *tree_sitter.Node, name string) bool {
		r, _ := utf8.DecodeRuneInString(name)
		return unicode.IsUpper(r)
	},
}

// goTypeDeclaration emits one symbol per type_spec; interfaces are tagged
// from the type_spec's type child.
func goTypeDeclaration(w *walker, node *tree_sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "type_spec" {
			continue
		}
		kind := SymbolKindType
		if typ := child.ChildByFieldName("type"); typ != nil && typ.Kind() == "interface_type" {
			kind = SymbolKindInterface
		}
		if sym, ok := w.named(child, kind); ok {
			w.symbols = append(w.symbols, sym)
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Python
// ---------------------------------------------------------------------------

var pySpec = &langSpec{
	named: map[string]SymbolKind{
		"function_definition": SymbolKindFunction,
		"class_definition":    SymbolKindClass,
	},
	imports: map[string]func(*tree_sitter.Node, []byte) []string{
		"import_statement": func(node *tree_sitter.Node, source []byte) []string {
			var out []string
			for i := uint(0); i < node.ChildCount(); i++ {
				child := node.Child(i)
				if child != nil && child.Kind() == "dotted_name" {
					out = append(out, child.Utf8Text(source))
				}
			}
			return out
		},
		"import_from_statement": func(node *tree_sitter.Node, source []byte) []string {
			return fieldText(node, "module_name", source, "dotted_name")
		},
	},
	exported: func(_ *tree_sitter.Node, name string) bool {
		return !strings.HasPrefix(name, "_")
	},
	topLevel: isPyTopLevel,
}

// isPyTopLevel reports whether node sits at module scope, directly or under
// a decorator.
func isPyTopLevel(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "module":
		return true
	case "decorated_definition":
		gp := parent.Parent()
		return gp != nil && gp.Kind() == "module"
	}
	return false
}

// ---------------------------------------------------------------------------
// Rust
// ---------------------------------------------------------------------------

var rsSpec = &langSpec{
	named: map[string]SymbolKind{
		"function_item": SymbolKindFunction,
		"struct_item":   SymbolKindType,
		"type_item":     SymbolKindType,
		"enum_item":     SymbolKindEnum,
		"trait_item":    SymbolKindInterface,
	},
	special: map[string]func(*walker, *tree_sitter.Node) bool{
		"impl_item": rsImpl,
	},
	imports: map[string]func(*tree_sitter.Node, []byte) []string{
		"use_declaration": func(node *tree_sitter.Node, source []byte) []string {
			return fieldText(node, "argument", source, "")
		},
	},
	exported: func(node *tree_sitter.Node, _ string) bool {
		if node.ChildCount() == 0 {
			return false
		}
		first := node.Child(0)
		return first != nil && first.Kind() == "visibility_modifier"
	},
}

// rsImpl records the functions of an impl block as methods and stops the
// walker from visiting them again as free functions.
func rsImpl(w *walker, node *tree_sitter.Node) bool {
	body := node.ChildByFieldName("body")
	if body == nil {
		return false
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil || child.Kind() != "function_item" {
			continue
		}
		if sym, ok := w.named(child, SymbolKindMethod); ok {
			w.symbols = append(w.symbols, sym)
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// TypeScript
// ---------------------------------------------------------------------------

var tsSpec = &langSpec{
	named: map[string]SymbolKind{
		"function_declaration":   SymbolKindFunction,
		"class_declaration":      SymbolKindClass,
		"interface_declaration":  SymbolKindInterface,
		"type_alias_declaration": SymbolKindType,
		"enum_declaration":       SymbolKindEnum,
	},
	special: map[string]func(*walker, *tree_sitter.Node) bool{
		"lexical_declaration": tsArrowFunctions,
	},
	imports: map[string]func(*tree_sitter.Node, []byte) []string{
		"import_statement": func(node *tree_sitter.Node, source []byte) []string {
			return fieldText(node, "source", source, "string")
		},
	},
	exported: func(node *tree_sitter.Node, _ string) bool {
		parent := node.Parent()
		return parent != nil && parent.Kind() == "export_statement"
	},
}

// tsArrowFunctions records `const name = () => ...` declarations.
func tsArrowFunctions(w *walker, node *tree_sitter.Node) bool {
	exported := w.spec.exported(node, "")
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}
		value := child.ChildByFieldName("value")
		if value == nil || value.Kind() != "arrow_function" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		w.symbols = append(w.symbols, Symbol{
			Name:      nameNode.Utf8Text(w.source),
			Kind:      SymbolKindFunction,
			Exported:  exported,
			Path:      w.path,
			StartLine: int(child.StartPosition().Row) + 1,
			EndLine:   int(child.EndPosition().Row) + 1,
		})
	}
	return true
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fieldText returns the unquoted text of node's field, falling back to the
// first child of fallbackKind when the grammar does not expose the field.
func fieldText(node *tree_sitter.Node, field string, source []byte, fallbackKind string) []string {
	target := node.ChildByFieldName(field)
	if target == nil && fallbackKind != "" {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == fallbackKind {
				target = child
				break
			}
		}
	}
	if target == nil {
		return nil
	}
	text := strings.Trim(target.Utf8Text(source), "\"'`")
	if text == "" {
		return nil
	}
	return []string{text}
}
