package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/export"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

func classifyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: project2article classify [flags] <archive>")
	}
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	depth, err := project.ParseDepth(c.String("depth"))
	if err != nil {
		return err
	}

	opts := e.driverOptions()
	ws, err := archive.ExtractFile(c.Context, c.Args().First(), opts.Archive)
	if err != nil {
		return err
	}
	defer ws.Close()

	if depth == project.DepthDetailed {
		ix, err := e.openOutliner(c.Context, "classify")
		if err != nil {
			return err
		}
		defer ix.Close()
		opts.Classify.Outliner = ix
	}
	sum, err := project.ClassifyTree(c.Context, ws.Tree(), depth, opts.Classify)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	w := c.App.Writer
	switch {
	case c.Bool("json"):
		out, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = w.Write(append(out, '\n'))
		return err
	case c.Bool("mermaid"):
		fmt.Fprintln(w, export.StructureMermaid(sum, 0))
		return nil
	}

	fmt.Fprintf(w, "Depth: %s\n", sum.Depth.Label())
	fmt.Fprintf(w, "Files: %d (%d bytes)\n", sum.TotalFiles(), sum.TotalSize)
	for _, cat := range project.Categories {
		fmt.Fprintf(w, "  %-8s %d\n", cat, sum.Count(cat))
	}
	if exts := sum.TopExtensions(5); len(exts) > 0 {
		fmt.Fprintf(w, "Top extensions: %s\n", strings.Join(exts, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, sum.TreeText)
	return nil
}
