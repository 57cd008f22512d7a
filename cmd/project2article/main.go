// Command project2article turns a zipped or tarred software project into a
// Markdown technical article.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Gmabatah93/Project2Article/internal/llm"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return newApp(stdout, stderr).RunContext(ctx, append([]string{"project2article"}, args...))
}

var articleFlags = []cli.Flag{
	&cli.StringFlag{Name: "depth", Value: "overview", Usage: "analysis depth: overview or detailed"},
	&cli.StringFlag{Name: "tone", Value: "explanatory", Usage: "explanatory, conversational or marketing"},
	&cli.StringFlag{Name: "audience", Value: "beginner", Usage: "beginner, intermediate or advanced"},
	&cli.StringFlag{Name: "provider", Value: "mock", Usage: "completion provider: " + llm.ProviderChoices()},
	&cli.StringFlag{Name: "api-key", Usage: "provider API key (defaults to the provider environment variable)"},
	&cli.StringFlag{Name: "model", Usage: "provider model override"},
	&cli.StringFlag{Name: "title", Usage: "article title override"},
	&cli.StringFlag{Name: "project-name", Usage: "project name used in prompts"},
}

func noHistoryFlag() cli.Flag {
	return &cli.BoolFlag{Name: "no-history", Usage: "do not record the run in the history database"}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "project2article",
		Usage:     "generate a technical article from a project archive",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: ".", Usage: "directory holding project2article.yml and .env"},
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "run the full pipeline and write the article",
				ArgsUsage: "<archive>",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write artifacts below this directory instead of the configured store"},
					&cli.BoolFlag{Name: "stdout", Usage: "print the Markdown article"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress progress lines"},
					noHistoryFlag(),
				}, articleFlags...),
				Action: generateAction,
			},
			{
				Name:      "classify",
				Usage:     "extract and classify an archive without calling a model",
				ArgsUsage: "<archive>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "depth", Value: "overview", Usage: "analysis depth: overview or detailed"},
					&cli.BoolFlag{Name: "json", Usage: "print the summary as JSON"},
					&cli.BoolFlag{Name: "mermaid", Usage: "print the structure diagram"},
				},
				Action: classifyAction,
			},
			{
				Name:  "serve",
				Usage: "serve the HTTP upload and progress API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default from config)"},
					noHistoryFlag(),
				},
				Action: serveAction,
			},
			{
				Name:   "mcp",
				Usage:  "serve the article tools over MCP on stdio",
				Flags:  []cli.Flag{noHistoryFlag()},
				Action: mcpAction,
			},
			{
				Name:  "history",
				Usage: "list recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs listed"},
				},
				Action: historyAction,
			},
		},
	}
}
