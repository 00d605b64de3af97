package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cczona/pants/internal/config"
	"github.com/cczona/pants/internal/fix"
	"github.com/cczona/pants/internal/logging"
	"github.com/cczona/pants/internal/resolve"
	"github.com/cczona/pants/internal/snapshot"
	"github.com/cczona/pants/internal/tools"
	"github.com/cczona/pants/internal/workspace"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fixctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     = flag.String("config", "", "path to fixctl.toml")
		rootDir        = flag.String("root", ".", "workspace root")
		only           = flag.String("only", "", "comma-separated tool names to run exclusively")
		skipFormatters = flag.Bool("skip-formatters", false, "skip all formatter-category tools")
		listTools      = flag.Bool("list", false, "list registered tools and exit")
	)
	flag.Parse()
	selectors := flag.Args()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if *listTools {
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
		return nil
	}

	root, err := workspace.Open(*rootDir)
	if err != nil {
		return err
	}
	ws, err := resolve.Load(root)
	if err != nil {
		return err
	}
	store, err := snapshot.NewStore(cfg.Fix.SnapshotCache)
	if err != nil {
		return err
	}

	opts := fix.Options{
		Only:           cfg.Fix.Only,
		SkipFormatters: cfg.Fix.SkipFormatters || *skipFormatters,
		Workers:        cfg.Fix.Workers,
	}
	if *only != "" {
		opts.Only = splitList(*only)
	}

	runner := fix.NewRunner(registry, ws, store, logging.Logger())
	result, err := runner.Run(context.Background(), selectors, opts)
	if err != nil {
		return err
	}

	if len(result.Lines) > 0 {
		fmt.Fprintln(os.Stderr)
		for _, line := range result.Lines {
			fmt.Fprintln(os.Stderr, line)
		}
	}

	if err := root.WriteTree(result.Tree); err != nil {
		return fmt.Errorf("write workspace: %w", err)
	}

	if !result.OK {
		for name, ferr := range result.Failures {
			log.Error().Err(ferr).Str("tool", name).Msg("tool failed")
		}
		return fmt.Errorf("%d tool(s) failed", len(result.Failures))
	}
	return nil
}

func buildRegistry(cfg config.RunConfig) (*fix.Registry, error) {
	registry := fix.NewRegistry()

	builtin := []fix.Tool{
		tools.NewlineFixer(),
		tools.WhitespaceFormatter(),
	}
	for _, tool := range builtin {
		tool.Skip = cfg.Skip(tool.Name)
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}

	for _, ct := range cfg.CommandTools {
		category := fix.CategoryFixer
		if strings.EqualFold(ct.Category, "formatter") {
			category = fix.CategoryFormatter
		}
		tool := tools.CommandTool{
			Name:     ct.Name,
			Category: category,
			Requires: ct.Requires,
			Bin:      ct.Bin,
			Args:     ct.Args,
		}.Descriptor()
		tool.Skip = cfg.Skip(ct.Name)
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
