package mcptools

import (
	"github.com/Gmabatah93/Project2Article/internal/codeindex"
	"github.com/Gmabatah93/Project2Article/internal/runstore"
)

// --- MCP Tool Input Types ---
// The MCP Go SDK generates each tool's JSON schema from these struct tags.

// ClassifyProjectInput is the input for the classify_project MCP tool.
type ClassifyProjectInput struct {
	ArchivePath string `json:"archivePath" jsonschema:"absolute path to a .zip, .tar.gz or .tgz project archive"`
	Depth       string `json:"depth,omitempty" jsonschema:"analysis depth: overview (default) or detailed"`
}

// FileInfo is one classified file.
type FileInfo struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Size     int64  `json:"size"`
}

// ClassifyProjectOutput is the result of the classify_project MCP tool.
type ClassifyProjectOutput struct {
	Depth         string     `json:"depth"`
	TotalFiles    int        `json:"totalFiles"`
	TotalBytes    int64      `json:"totalBytes"`
	Readme        int        `json:"readme"`
	Config        int        `json:"config"`
	Code          int        `json:"code"`
	Other         int        `json:"other"`
	TopExtensions []string   `json:"topExtensions,omitempty"`
	Tree          string     `json:"tree"`
	Files         []FileInfo `json:"files"`
}

// GenerateArticleInput is the input for the generate_article MCP tool.
type GenerateArticleInput struct {
	ArchivePath string `json:"archivePath" jsonschema:"absolute path to a .zip, .tar.gz or .tgz project archive"`
	Depth       string `json:"depth,omitempty" jsonschema:"overview (default) or detailed"`
	Tone        string `json:"tone,omitempty" jsonschema:"explanatory (default), conversational or marketing"`
	Audience    string `json:"audience,omitempty" jsonschema:"beginner (default), intermediate or advanced"`
	Provider    string `json:"provider,omitempty" jsonschema:"openai, anthropic, gemini or mock (default). Keys come from the server environment"`
	Title       string `json:"title,omitempty" jsonschema:"article title override"`
	Model       string `json:"model,omitempty" jsonschema:"provider model override"`
}

// GenerateArticleOutput is the result of the generate_article MCP tool.
type GenerateArticleOutput struct {
	RunID            string   `json:"runId"`
	Title            string   `json:"title"`
	Article          string   `json:"article"`
	Sections         []string `json:"sections"`
	Warnings         []string `json:"warnings,omitempty"`
	FallbackSections int      `json:"fallbackSections"`
}

// ListRunsInput is the input for the list_runs MCP tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs (default: 20)"`
}

// ListRunsOutput is the result of the list_runs MCP tool.
type ListRunsOutput struct {
	Runs []runstore.Record `json:"runs"`
}

// OutlineSourceInput is the input for the outline_source MCP tool.
type OutlineSourceInput struct {
	Path       string `json:"path" jsonschema:"file name used to pick the language (e.g. main.go)"`
	Source     string `json:"source" jsonschema:"file contents"`
	MaxSymbols int    `json:"maxSymbols,omitempty" jsonschema:"maximum symbols listed (default: 40)"`
}

// OutlineSourceOutput is the result of the outline_source MCP tool.
// Supported is filled only when the file's language has no grammar.
type OutlineSourceOutput struct {
	Language  string             `json:"language,omitempty"`
	Outline   string             `json:"outline"`
	Symbols   []codeindex.Symbol `json:"symbols,omitempty"`
	Supported []string           `json:"supported,omitempty"`
}

// SearchSymbolsInput is the input for the search_symbols MCP tool.
type SearchSymbolsInput struct {
	ArchivePath string `json:"archivePath" jsonschema:"absolute path to a .zip, .tar.gz or .tgz project archive"`
	Query       string `json:"query" jsonschema:"case-insensitive substring of the symbol name"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum matches (default: 50)"`
}

// SearchSymbolsOutput is the result of the search_symbols MCP tool.
type SearchSymbolsOutput struct {
	Matches   []codeindex.Symbol `json:"matches"`
	Indexed   codeindex.Stats    `json:"indexed"`
	Languages []string           `json:"languages"`
	Skipped   []string           `json:"skipped,omitempty"`
}
