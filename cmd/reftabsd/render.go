// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/ManuGH/reftabs/internal/fieldview"
)

// runRender prints one rendered field to stdout.
func runRender(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reftabsd render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	viewMode := fs.String("view-mode", "", "view mode of the display (default display when empty)")
	langcode := fs.String("lang", "", "language code; defaults to the entity's language")
	revision := fs.String("rev", "", "revision id; defaults to the current revision")
	page := fs.Bool("page", false, "wrap the field in a full HTML page")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 3 {
		fmt.Fprintln(stderr, "usage: reftabsd render [--config FILE] [--view-mode MODE] [--lang CODE] [--rev ID] [--page] TYPE ID FIELD")
		return 2
	}

	_, cfg, err := loadConfig(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "reftabsd: %v\n", err)
		return 1
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "reftabsd: %v\n", err)
		return 1
	}
	defer a.Close()

	req := fieldview.Request{
		EntityType: fs.Arg(0),
		ID:         fs.Arg(1),
		Field:      fs.Arg(2),
		RevisionID: *revision,
		ViewMode:   *viewMode,
		Langcode:   *langcode,
	}
	if *page {
		html, err := a.fields.RenderPage(ctx, req)
		if err != nil {
			fmt.Fprintf(stderr, "reftabsd: render: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, html)
		return 0
	}
	res, err := a.fields.RenderField(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "reftabsd: render: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, res.HTML)
	return 0
}
