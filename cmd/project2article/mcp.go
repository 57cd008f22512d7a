package main

import (
	"github.com/urfave/cli/v2"

	"github.com/Gmabatah93/Project2Article/internal/mcptools"
)

func mcpAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	history, err := e.openHistory(c)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}
	svc := mcptools.NewArticleService(e.driverOptions(), history)
	return mcptools.RunStdio(c.Context, mcptools.NewArticleMCPServer(svc))
}
