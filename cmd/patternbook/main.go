package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	patternbook "github.com/patternbook/patternbook"
	sitecmd "github.com/patternbook/patternbook/internal/commands/site"
	"github.com/patternbook/patternbook/internal/logging"
	"github.com/patternbook/patternbook/internal/logging/gologger"
	"github.com/patternbook/patternbook/pkg/errs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "patternbook: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("patternbook", flag.ExitOnError)
	input := fs.String("input", "", "Directory holding Markdown article sources")
	output := fs.String("output", "", "Directory receiving the published site")
	baseURL := fs.String("base-url", "", "Absolute URL prefix for sitemap links")
	siteTitle := fs.String("title", "", "Site title shown on the index page")
	pattern := fs.String("pattern", "*.md", "Glob pattern applied when discovering source files")
	workers := fs.Int("workers", 1, "Concurrent page publishers (1 = sequential)")
	incremental := fs.Bool("incremental", false, "Skip pages whose source is unchanged since the last build")
	includeDrafts := fs.Bool("drafts", false, "Publish articles marked draft in front matter")
	dryRun := fs.Bool("dry-run", false, "Render without writing any output")
	logLevel := fs.String("log-level", "info", "Log level (trace|debug|info|warn|error)")
	logFormat := fs.String("log-format", "console", "Log format (json|console|pretty)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *input == "" {
		return fmt.Errorf("--input is required")
	}
	if *output == "" {
		return fmt.Errorf("--output is required")
	}

	provider, err := gologger.NewProvider(gologger.Config{
		Level:  *logLevel,
		Format: *logFormat,
	})
	if err != nil {
		return err
	}

	pipeline, err := patternbook.New(patternbook.Config{
		Input: patternbook.InputConfig{
			Dir:           *input,
			Pattern:       *pattern,
			IncludeDrafts: *includeDrafts,
		},
		Output: patternbook.OutputConfig{
			Dir:         *output,
			BaseURL:     *baseURL,
			SiteTitle:   *siteTitle,
			Incremental: *incremental,
			Workers:     *workers,
		},
	}, patternbook.WithLoggerProvider(provider))
	if err != nil {
		return err
	}

	handler := sitecmd.NewBuildSiteHandler(pipeline, logging.CommandsLogger(provider))
	cmd := sitecmd.BuildSiteCommand{
		InputDir: ".",
		Pattern:  *pattern,
		DryRun:   *dryRun,
	}

	execErr := handler.Execute(context.Background(), cmd)

	if report := handler.Report; report != nil {
		fmt.Fprintf(os.Stdout, "built %d page(s), skipped %d, failed %d (%d article(s) from %d document(s), %d duplicate(s) discarded)\n",
			report.PagesBuilt, report.PagesSkipped, report.PagesFailed,
			report.Articles, report.Documents, report.Discarded)
		for _, failure := range report.Failures {
			fmt.Fprintf(os.Stderr, "  failed: %s\n", failure)
		}
	}

	if execErr != nil {
		if errs.IsReadError(execErr) {
			return fmt.Errorf("source unreadable: %w", execErr)
		}
		return execErr
	}
	return nil
}
