// Package mcptools exposes the article pipeline as Model Context Protocol
// tools.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewArticleMCPServer creates an MCP server with the article tools
// registered: classify_project, generate_article, list_runs,
// outline_source and search_symbols.
func NewArticleMCPServer(svc *ArticleService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "project2article",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_project",
		Description: "Extract a project archive and classify its files into README, config, code and other. Returns counts, the directory tree and the file list. No model is called.",
	}, svc.ClassifyProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_article",
		Description: "Generate a Markdown technical article from a project archive: plan an outline, write each section, assemble with a metadata footer. Without a usable provider key the offline mock provider is used.",
	}, svc.GenerateArticle)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List recent article runs from the history database, newest first.",
	}, svc.ListRuns)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "outline_source",
		Description: "Parse a Go, Python, Rust or TypeScript source file and list its top-level symbols with line ranges.",
	}, svc.OutlineSource)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_symbols",
		Description: "Index the Go, Python, Rust and TypeScript files of a project archive and find top-level symbols whose name contains the query. Returns matches with file and line range plus index counts.",
	}, svc.SearchSymbols)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
