// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command reftabsd serves entity reference fields rendered as tabs or accordions.
//
//	reftabsd [--config FILE]                  serve HTTP
//	reftabsd import [--config FILE] FIXTURE   load a YAML fixture into the content store
//	reftabsd render [--config FILE] TYPE ID FIELD
//	reftabsd --version
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/reftabs/internal/config"
	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "import":
			return runImport(args[1:], stdout, stderr)
		case "render":
			return runRender(args[1:], stdout, stderr)
		}
	}
	return runServe(args, stdout, stderr)
}

// loadConfig loads the configuration and configures the logger from it.
func loadConfig(configPath string, logOut io.Writer) (*config.Loader, config.AppConfig, error) {
	xglog.Configure(xglog.Config{
		Level:   config.DefaultLogLevel,
		Output:  logOut,
		Service: config.DefaultLogService,
		Version: version.Version,
	})

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, cfg, err
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  logOut,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger := xglog.WithComponent("config")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, configPath).
		Msg("configuration loaded")
	return loader, cfg, nil
}

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reftabsd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, cfg, err := loadConfig(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "reftabsd: %v\n", err)
		return 1
	}
	if err := serve(ctx, loader, cfg); err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "daemon.failed").
			Msg("daemon stopped with error")
		return 1
	}
	return 0
}

func runImport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reftabsd import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: reftabsd import [--config FILE] FIXTURE")
		return 2
	}

	_, cfg, err := loadConfig(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "reftabsd: %v\n", err)
		return 1
	}
	cfg.SeedPath = ""

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "reftabsd: %v\n", err)
		return 1
	}
	defer a.Close()

	res, err := importFile(ctx, a.store, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "reftabsd: import %s: %v\n", fs.Arg(0), err)
		return 1
	}
	fmt.Fprintf(stdout, "imported %d field definitions and %d entities\n", res.Fields, res.Entities)
	return 0
}
