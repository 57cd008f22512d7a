package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/artifact"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
	"github.com/Gmabatah93/Project2Article/internal/runstore"
)

func generateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: project2article generate [flags] <archive>")
	}
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	cfg, err := articleConfig(c)
	if err != nil {
		return err
	}
	up, err := readUpload(c.Args().First(), e.cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}

	var store artifact.Store
	if dir := c.String("out"); dir != "" {
		store, err = artifact.NewDiskStore(dir)
	} else {
		store, err = artifact.Open(e.cfg.Artifacts)
	}
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	opts := e.driverOptions()
	opts.Hooks = append(opts.Hooks, artifact.NewHook(store, e.logger))
	history, err := e.openHistory(c)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		opts.Hooks = append(opts.Hooks, runstore.NewHook(history))
	}

	var wg sync.WaitGroup
	if !c.Bool("quiet") {
		progress := pipeline.NewProgressReporter()
		opts.Progress = progress
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range progress.Subscribe() {
				fmt.Fprintln(c.App.ErrWriter, pipeline.FormatProgress(ev))
			}
		}()
		defer func() {
			progress.Close()
			wg.Wait()
		}()
	}

	res, err := pipeline.NewDriver(opts).Run(c.Context, up, cfg)
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", w)
	}
	if c.Bool("stdout") {
		fmt.Fprint(c.App.Writer, res.Article)
		return nil
	}
	names, err := store.List(c.Context, res.RunID)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Run %s: %q\n", res.RunID, res.Title())
	for _, name := range names {
		loc, err := store.GetURL(c.Context, res.RunID, name)
		if err != nil || loc == "" {
			loc = res.RunID + "/" + name
		}
		fmt.Fprintf(c.App.Writer, "  %s\n", loc)
	}
	return nil
}

// readUpload loads an archive from disk after the same size and extension
// checks the HTTP upload applies.
func readUpload(path string, maxBytes int64) (pipeline.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("cannot access archive: %w", err)
	}
	name := filepath.Base(path)
	if _, err := archive.ValidateUpload(name, info.Size(), maxBytes); err != nil {
		return pipeline.Upload{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("read archive: %w", err)
	}
	return pipeline.Upload{Name: name, Data: data}, nil
}
