package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

func historyAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	history, err := e.openHistory(c)
	if err != nil {
		return err
	}
	if history == nil {
		return fmt.Errorf("run history is disabled")
	}
	defer history.Close()

	runs, err := history.List(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	w := c.App.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	fmt.Fprintf(w, "%-36s %-20s %-9s %-10s %-8s %s\n", "RUN", "CREATED", "STATUS", "PROVIDER", "SECTIONS", "TITLE")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		status := r.Status
		if r.FallbackSections > 0 {
			status += "*"
		}
		title := r.Title
		if r.Status == "failed" {
			title = r.Step + ": " + r.Reason
		}
		fmt.Fprintf(w, "%-36s %-20s %-9s %-10s %-8d %s\n",
			r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"), status, r.Provider, r.Sections, title)
	}
	fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	return nil
}
