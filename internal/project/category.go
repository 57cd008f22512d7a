package project

import (
	"path"
	"strings"
)

// Category is the bucket a file is classified into.
type Category int

const (
	CategoryReadme Category = iota
	CategoryConfig
	CategoryCode
	CategoryOther
)

// Categories lists every category in classification priority order.
var Categories = []Category{CategoryReadme, CategoryConfig, CategoryCode, CategoryOther}

func (c Category) String() string {
	switch c {
	case CategoryReadme:
		return "readme"
	case CategoryConfig:
		return "config"
	case CategoryCode:
		return "code"
	case CategoryOther:
		return "other"
	default:
		return "unknown"
	}
}

// MarshalText renders the category name in JSON output.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var configExtensions = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".env": true, ".cfg": true,
}

var manifestNames = map[string]bool{
	"package.json":     true,
	"requirements.txt": true,
	"setup.py":         true,
	"pyproject.toml":   true,
	"cargo.toml":       true,
	"go.mod":           true,
	"makefile":         true,
	"dockerfile":       true,
	"pom.xml":          true,
	"build.gradle":     true,
	"gemfile":          true,
	"composer.json":    true,
}

var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".cpp": true, ".cc": true, ".c": true, ".h": true, ".hpp": true,
	".go": true, ".rs": true, ".rb": true, ".php": true, ".cs": true,
	".swift": true, ".kt": true, ".scala": true, ".sh": true,
	".html": true, ".css": true, ".scss": true, ".sql": true,
}

// Classify buckets a file by name. Rules apply in priority order: README,
// then config (extension or manifest name), then source code, else other.
func Classify(name string) Category {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	ext := path.Ext(base)
	switch {
	case strings.HasPrefix(base, "readme"):
		return CategoryReadme
	case configExtensions[ext], manifestNames[base]:
		return CategoryConfig
	case codeExtensions[ext]:
		return CategoryCode
	default:
		return CategoryOther
	}
}

var ignoredNames = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	".pytest_cache": true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	"node_modules":  true,
	".DS_Store":     true,
	".coverage":     true,
	".tox":          true,
	".mypy_cache":   true,
	".ruff_cache":   true,
	".idea":         true,
	".vscode":       true,
}

var ignoredSuffixes = []string{".pyc", ".pyo", ".pyd"}

// Ignored reports whether a relative slash path, or any directory above it,
// matches the ignore patterns.
func Ignored(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if ignoredNames[seg] {
			return true
		}
	}
	for _, s := range ignoredSuffixes {
		if strings.HasSuffix(rel, s) {
			return true
		}
	}
	return false
}
