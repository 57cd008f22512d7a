package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Gmabatah93/Project2Article/internal/artifact"
	"github.com/Gmabatah93/Project2Article/internal/server"
)

func serveAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	store, err := artifact.Open(e.cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	history, err := e.openHistory(c)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	srv, err := server.New(server.Options{
		Driver:         e.driverOptions(),
		MaxRuns:        e.cfg.Server.MaxRuns,
		MaxUploadBytes: e.cfg.Upload.MaxBytes,
		Artifacts:      store,
		History:        history,
		Logger:         e.logger,
	})
	if err != nil {
		return err
	}

	addr := e.cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	fmt.Fprintf(c.App.ErrWriter, "project2article %s listening on %s\n", version, addr)
	return srv.Serve(c.Context, addr)
}
