package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/stagepath/stagepath/internal/catalog"
	"github.com/stagepath/stagepath/internal/cli"
	"github.com/stagepath/stagepath/internal/client"
	"github.com/stagepath/stagepath/internal/config"
	"github.com/stagepath/stagepath/internal/daemon"
	"github.com/stagepath/stagepath/internal/pipeline"
	"github.com/stagepath/stagepath/internal/resolve"
	"github.com/stagepath/stagepath/internal/stack"
	"github.com/stagepath/stagepath/internal/stage"
	"github.com/stagepath/stagepath/internal/stage/builtin"
	"github.com/stagepath/stagepath/internal/trace"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		cli.RunHelp(nil, os.Stderr, nil)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stagepath: config: %v\n", err)
		return 1
	}

	switch os.Args[1] {
	case "help", "--help", "-h":
		env, err := buildEnv(cfg, nil)
		if err != nil && len(os.Args) > 2 {
			fmt.Fprintf(os.Stderr, "stagepath: %v\n", err)
			return 1
		}
		return cli.RunHelp(env, os.Stdout, os.Args[2:])
	case "version", "--version":
		fmt.Fprintf(os.Stdout, "stagepath %s\n", version)
		return 0
	case "trace":
		return cli.RunTrace(cfg.Trace.Path, os.Stdout, os.Stderr, os.Args[2:])
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stagepath: log: %v\n", err)
		return 1
	}
	defer logger.Sync()

	env, err := buildEnv(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stagepath: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch os.Args[1] {
	case "parse":
		return cli.RunParse(queryHandler(cfg, env, logger), os.Stdout, os.Stderr, os.Args[2:])
	case "resolve":
		return cli.RunResolve(queryHandler(cfg, env, logger), os.Stdout, os.Stderr, os.Args[2:])
	case "expand":
		return cli.RunExpand(queryHandler(cfg, env, logger), os.Stdout, os.Stderr, os.Args[2:])
	case "stages":
		return cli.RunStages(env, os.Stdout)
	case "targets":
		return cli.RunTargets(queryHandler(cfg, env, logger), os.Stdout, os.Stderr, os.Args[2:])
	case "serve", "--daemon":
		srv := daemon.New(env, logger, cfg.Daemon.IdleTimeoutDuration())
		if err := srv.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "stagepath serve: %v\n", err)
			return 1
		}
		return 0
	case "mcp":
		if err := daemon.ServeMCP(env, version); err != nil {
			fmt.Fprintf(os.Stderr, "stagepath mcp: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "stagepath: unknown command %q\n", os.Args[1])
		cli.RunHelp(nil, os.Stderr, nil)
		return 1
	}
}

// queryHandler routes query commands through a running daemon when one is
// reachable, otherwise in-process. daemon.enabled=false in the config forces
// in-process resolution.
func queryHandler(cfg *config.Config, env *cli.Env, logger *zap.Logger) cli.Handler {
	if cfg.Daemon.Enabled != nil && !*cfg.Daemon.Enabled {
		return env
	}
	conn, err := client.Connect()
	if err != nil {
		return env
	}
	conn.Close()
	logger.Debug("using resolver daemon")
	return client.NewRemote()
}

// buildEnv loads the catalogue, freezes it, and wires the resolution core.
// Catalogue problems (duplicate names, cyclic pipelines, malformed files)
// are fatal here, before any path is parsed.
func buildEnv(cfg *config.Config, logger *zap.Logger) (*cli.Env, error) {
	reg := stage.NewRegistry()
	if err := builtin.RegisterAll(reg); err != nil {
		return nil, fmt.Errorf("builtin stages: %w", err)
	}

	exp := pipeline.NewExpander(reg)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	for _, path := range cfg.Catalog.Stages {
		if err := catalog.LoadStages(path, reg, exp); err != nil {
			return nil, err
		}
	}
	if err := cat.Apply(reg, exp); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.Catalog.File, err)
	}

	reg.Freeze()
	if err := exp.Check(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.Catalog.File, err)
	}

	var tracer *trace.Logger
	if cfg.Trace.Path != "" {
		tracer, err = trace.NewLogger(cfg.Trace.Path)
		if err != nil {
			// Continue without tracing.
			tracer = nil
		}
	}

	return &cli.Env{
		Registry: reg,
		Catalog:  cat,
		Parser:   stack.NewParser(reg, exp, cat, logger),
		Resolver: resolve.New(cat, cat),
		Trace:    tracer,
	}, nil
}

// loadCatalog reads the configured catalogue file. A missing default file is
// not an error; the tool still serves the built-in stage listing.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	c, err := catalog.Load(cfg.Catalog.File)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return catalog.Parse(nil)
	}
	return nil, err
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
