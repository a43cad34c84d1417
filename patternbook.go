// Package patternbook builds a static reference site from Markdown articles
// describing object-oriented design patterns. The pipeline runs three
// sequential stages: a loader that reads and splits source drafts, a
// normalizer that deduplicates near-identical revisions, and a publisher
// that emits linked static pages with validated section anchors.
package patternbook

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"github.com/patternbook/patternbook/internal/logging"
	"github.com/patternbook/patternbook/internal/markdown"
	"github.com/patternbook/patternbook/internal/normalizer"
	"github.com/patternbook/patternbook/internal/publisher"
	"github.com/patternbook/patternbook/pkg/errs"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

// Pipeline is the assembled Loader → Normalizer → Publisher chain. Build may
// be called repeatedly; each run constructs its articles from scratch and
// discards them afterwards.
type Pipeline struct {
	cfg        Config
	loader     *markdown.Loader
	outline    *markdown.OutlineBuilder
	normalizer *normalizer.Normalizer
	publisher  publisher.Service
	provider   interfaces.LoggerProvider
	logger     interfaces.Logger
}

var _ interfaces.SiteBuilder = (*Pipeline)(nil)

// Option customises pipeline construction.
type Option func(*options)

type options struct {
	provider   interfaces.LoggerProvider
	parser     interfaces.MarkdownParser
	renderer   interfaces.TemplateRenderer
	store      interfaces.ArtifactStore
	filesystem fs.FS
}

// WithLoggerProvider installs the logging provider used by every stage.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithMarkdownParser replaces the goldmark-backed Markdown parser. Custom
// implementations must keep emitting heading ids, or published anchors stop
// resolving.
func WithMarkdownParser(parser interfaces.MarkdownParser) Option {
	return func(o *options) { o.parser = parser }
}

// WithRenderer replaces the embedded default page renderer.
func WithRenderer(renderer interfaces.TemplateRenderer) Option {
	return func(o *options) { o.renderer = renderer }
}

// WithArtifactStore replaces the filesystem-backed output store.
func WithArtifactStore(store interfaces.ArtifactStore) Option {
	return func(o *options) { o.store = store }
}

// WithSourceFS overrides the source filesystem, primarily for tests.
func WithSourceFS(filesystem fs.FS) Option {
	return func(o *options) { o.filesystem = filesystem }
}

// New validates the configuration and assembles a Pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("patternbook: invalid config: %w", err)
	}
	cfg.applyDefaults()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	filesystem := o.filesystem
	if filesystem == nil {
		filesystem = os.DirFS(cfg.Input.Dir)
	}

	store := o.store
	if store == nil {
		store = publisher.NewFilesystemStore(cfg.Output.Dir)
	}

	loader := markdown.NewLoader(filesystem, markdown.LoaderConfig{
		BasePath:       cfg.Input.Dir,
		Pattern:        cfg.Input.Pattern,
		Recursive:      *cfg.Input.Recursive,
		RevisionMarker: cfg.Input.RevisionMarker,
		Logger:         logging.LoaderLogger(o.provider),
	})

	parser := o.parser
	if parser == nil {
		parser = markdown.NewGoldmarkParser(cfg.Markdown)
	}

	pub := publisher.NewService(publisher.Config{
		BaseURL:         cfg.Output.BaseURL,
		SiteTitle:       cfg.Output.SiteTitle,
		Incremental:     cfg.Output.Incremental,
		GenerateSitemap: *cfg.Output.Sitemap,
		GenerateRobots:  *cfg.Output.Robots,
		Workers:         cfg.Output.Workers,
		Parser:          cfg.Markdown,
	}, publisher.Dependencies{
		Parser:   parser,
		Renderer: o.renderer,
		Store:    store,
		Logger:   logging.PublisherLogger(o.provider),
	})

	return &Pipeline{
		cfg:        cfg,
		loader:     loader,
		outline:    markdown.NewOutlineBuilder(),
		normalizer: normalizer.New(normalizer.Config{
			Logger: logging.NormalizerLogger(o.provider),
		}),
		publisher: pub,
		provider:  o.provider,
		logger:    logging.ModuleLogger(o.provider, ""),
	}, nil
}

// Build runs the whole pipeline once. Read failures abort before anything is
// written; broken anchors fail their article only and are reported through
// the BuildReport so callers can exit non-zero while unaffected articles
// still publish.
func (p *Pipeline) Build(ctx context.Context, params interfaces.BuildParams) (*interfaces.BuildReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	buildID := uuid.New()
	logger := logging.WithFields(p.logger, map[string]any{"build_id": buildID.String()})

	dir := params.InputDir
	if dir == "" {
		dir = "."
	}

	docs, err := p.loader.LoadDirectory(ctx, dir, interfaces.LoadOptions{
		Pattern: params.Pattern,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("pipeline.loaded", "documents", len(docs))

	articles, err := p.outline.BuildArticles(docs)
	if err != nil {
		return nil, err
	}
	articles = p.filterDrafts(articles)

	normalized := p.normalizer.Normalize(articles)
	logger.Debug("pipeline.normalized",
		"articles", len(normalized.Articles),
		"discarded", len(normalized.Discarded),
	)

	result, err := p.publisher.Build(ctx, normalized.Articles, publisher.BuildOptions{
		DryRun:  params.DryRun,
		BuildID: buildID,
	})
	if result == nil {
		return nil, err
	}

	report := &interfaces.BuildReport{
		BuildID:      buildID,
		Documents:    len(docs),
		Articles:     len(normalized.Articles),
		Discarded:    len(normalized.Discarded),
		PagesBuilt:   result.PagesBuilt,
		PagesSkipped: result.PagesSkipped,
		PagesFailed:  result.PagesFailed,
		Duration:     result.Duration,
		DryRun:       result.DryRun,
	}

	// Broken anchors are per-article failures; anything else is fatal.
	for _, buildErr := range result.Errors {
		if errs.IsBrokenAnchor(buildErr) {
			report.Failures = append(report.Failures, buildErr.Error())
			continue
		}
		return report, buildErr
	}

	return report, nil
}

func (p *Pipeline) filterDrafts(articles []*interfaces.Article) []*interfaces.Article {
	if p.cfg.Input.IncludeDrafts {
		return articles
	}
	kept := make([]*interfaces.Article, 0, len(articles))
	for _, article := range articles {
		if article.FrontMatter.Draft {
			logging.WithArticleContext(p.logger, article.SourcePath, article.Slug, article.Revision).
				Debug("pipeline.draft.skipped")
			continue
		}
		kept = append(kept, article)
	}
	return kept
}
