// Package publisher turns normalized articles into a static site: one page
// per article, an index page, and auxiliary artifacts (sitemap, robots,
// build manifest). Pages are rendered fully in memory and written atomically
// so a failed article never leaves partial output behind.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patternbook/patternbook/internal/logging"
	"github.com/patternbook/patternbook/internal/markdown"
	"github.com/patternbook/patternbook/pkg/errs"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

var errRendererRequired = errors.New("publisher: template renderer is required")

// Service describes the static publisher contract.
type Service interface {
	Build(ctx context.Context, articles []*interfaces.Article, opts BuildOptions) (*BuildResult, error)
	Clean(ctx context.Context) error
}

// Config captures runtime behaviour toggles for the publisher. Output
// location is owned by the ArtifactStore; paths here are store-relative.
type Config struct {
	BaseURL         string
	SiteTitle       string
	Incremental     bool
	GenerateSitemap bool
	GenerateRobots  bool
	Workers         int
	Parser          interfaces.ParseOptions
}

// BuildOptions narrows the scope of a publisher run.
type BuildOptions struct {
	DryRun  bool
	BuildID uuid.UUID
}

// BuildResult reports aggregated build metadata.
type BuildResult struct {
	PagesBuilt   int
	PagesSkipped int
	PagesFailed  int
	Published    []PublishedPage
	Diagnostics  []PageDiagnostic
	Errors       []error
	Duration     time.Duration
	DryRun       bool
}

// PublishedPage captures one rendered article page.
type PublishedPage struct {
	ArticleID    uuid.UUID
	Slug         string
	Route        string
	Output       string
	HTML         string
	Hash         string
	Checksum     string
	LastModified time.Time
	Duration     time.Duration
}

// PageDiagnostic records the outcome of a single article, including broken
// anchor failures that did not stop the rest of the build.
type PageDiagnostic struct {
	Slug       string
	Route      string
	SourcePath string
	Skipped    bool
	Duration   time.Duration
	Err        error
}

// Dependencies lists the collaborators required by the publisher.
type Dependencies struct {
	Parser   interfaces.MarkdownParser
	Renderer interfaces.TemplateRenderer
	Store    interfaces.ArtifactStore
	Logger   interfaces.Logger
}

// NewService wires a publisher with the provided configuration and
// dependencies. A nil renderer falls back to the embedded default layout and
// a nil parser to the goldmark implementation.
func NewService(cfg Config, deps Dependencies) Service {
	if deps.Parser == nil {
		deps.Parser = markdown.NewGoldmarkParser(cfg.Parser)
	}
	if deps.Renderer == nil {
		deps.Renderer = NewDefaultRenderer()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NoOp()
	}
	return &service{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}
}

type service struct {
	cfg  Config
	deps Dependencies
	now  func() time.Time
}

func (s *service) Build(ctx context.Context, articles []*interfaces.Article, opts BuildOptions) (*BuildResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.deps.Renderer == nil {
		return nil, errRendererRequired
	}

	start := s.now()
	generatedAt := start.UTC()

	siteMeta := SiteMetadata{
		Title:       s.siteTitle(),
		BaseURL:     strings.TrimRight(s.cfg.BaseURL, "/"),
		GeneratedAt: generatedAt,
	}

	result := &BuildResult{
		DryRun:      opts.DryRun,
		Diagnostics: make([]PageDiagnostic, 0, len(articles)),
	}

	manifest, manifestErr := s.loadManifest(ctx)
	if manifestErr != nil {
		result.Errors = append(result.Errors, manifestErr)
	}
	if manifest == nil {
		manifest = newBuildManifest()
	}

	var (
		mu        sync.Mutex
		published = make([]PublishedPage, 0, len(articles))
	)

	collect := func(outcome pageOutcome) {
		mu.Lock()
		defer mu.Unlock()
		result.Diagnostics = append(result.Diagnostics, outcome.diagnostic)
		if outcome.err != nil {
			result.PagesFailed++
			result.Errors = append(result.Errors, outcome.err)
			return
		}
		if outcome.skipped {
			result.PagesSkipped++
			return
		}
		result.PagesBuilt++
		published = append(published, outcome.page)
	}

	workerCount := s.effectiveWorkerCount(len(articles))
	if workerCount <= 1 || len(articles) <= 1 {
		for _, article := range articles {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
				collect(s.renderArticle(ctx, siteMeta, article, manifest))
			}
		}
	} else {
		s.renderConcurrently(ctx, siteMeta, articles, workerCount, manifest, collect)
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	if opts.DryRun {
		result.Published = published
		result.Duration = time.Since(start)
		if len(result.Errors) > 0 {
			return result, errors.Join(result.Errors...)
		}
		return result, nil
	}

	writer := newArtifactWriter(s.deps.Store)
	if err := s.persistPages(ctx, writer, published); err != nil {
		result.Errors = append(result.Errors, err)
	}

	if err := s.writeIndex(ctx, writer, siteMeta, s.successfulArticles(articles, result)); err != nil {
		result.Errors = append(result.Errors, err)
	}

	if s.cfg.GenerateSitemap {
		sitemapPages := s.mergePublishedForSitemap(articles, published, result, manifest)
		if err := s.writeSitemap(ctx, writer, siteMeta, sitemapPages, generatedAt); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}

	if s.cfg.GenerateRobots {
		if err := s.writeRobots(ctx, writer, siteMeta, generatedAt); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}

	manifest.GeneratedAt = generatedAt
	if opts.BuildID != uuid.Nil {
		manifest.BuildID = opts.BuildID.String()
	}
	for _, page := range published {
		manifest.setPage(manifestPage{
			ArticleID:  page.ArticleID.String(),
			Slug:       page.Slug,
			Source:     sourceForSlug(articles, page.Slug),
			Output:     page.Output,
			Hash:       page.Hash,
			Checksum:   page.Checksum,
			RenderedAt: generatedAt,
		})
	}
	if err := s.persistManifest(ctx, writer, manifest); err != nil {
		result.Errors = append(result.Errors, err)
	}

	result.Published = published
	result.Duration = time.Since(start)

	s.deps.Logger.Info("publisher.build.completed",
		"pages_built", result.PagesBuilt,
		"pages_skipped", result.PagesSkipped,
		"pages_failed", result.PagesFailed,
		"duration", result.Duration.String(),
	)

	if len(result.Errors) > 0 {
		return result, errors.Join(result.Errors...)
	}
	return result, nil
}

// Clean removes the build manifest so the next run republishes everything.
func (s *service) Clean(ctx context.Context) error {
	if s.deps.Store == nil {
		return nil
	}
	return s.deps.Store.Remove(ctx, manifestFileName)
}

type pageOutcome struct {
	page       PublishedPage
	diagnostic PageDiagnostic
	skipped    bool
	err        error
}

func (s *service) renderConcurrently(
	ctx context.Context,
	siteMeta SiteMetadata,
	articles []*interfaces.Article,
	workers int,
	manifest *buildManifest,
	collect func(pageOutcome),
) {
	jobs := make(chan *interfaces.Article)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for article := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
					collect(s.renderArticle(ctx, siteMeta, article, manifest))
				}
			}
		}()
	}

	for _, article := range articles {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- article:
		}
	}
	close(jobs)
	wg.Wait()
}

// renderArticle validates the article's internal anchors and renders its
// page. The page is complete in memory before anything is written; a broken
// anchor fails this article only.
func (s *service) renderArticle(
	ctx context.Context,
	siteMeta SiteMetadata,
	article *interfaces.Article,
	manifest *buildManifest,
) pageOutcome {
	route := articleRoute(article.Slug)
	outcome := pageOutcome{
		diagnostic: PageDiagnostic{
			Slug:       article.Slug,
			Route:      route,
			SourcePath: article.SourcePath,
		},
	}

	select {
	case <-ctx.Done():
		outcome.err = ctx.Err()
		outcome.diagnostic.Err = ctx.Err()
		return outcome
	default:
	}

	if err := validateTOC(article); err != nil {
		logging.WithArticleContext(s.deps.Logger, article.SourcePath, article.Slug, article.Revision).
			Error("publisher.article.failed", "error", err)
		outcome.err = err
		outcome.diagnostic.Err = err
		return outcome
	}

	hash := hex.EncodeToString(article.Checksum)
	output := articleOutputPath(article.Slug)
	if s.cfg.Incremental && manifest.shouldSkipPage(article.Slug, hash, output) {
		outcome.skipped = true
		outcome.diagnostic.Skipped = true
		return outcome
	}

	start := s.now()
	bodyHTML, err := s.deps.Parser.ParseWithOptions(article.Body, s.cfg.Parser)
	if err != nil {
		wrapped := fmt.Errorf("publisher: render body for %s: %w", article.Slug, err)
		outcome.err = wrapped
		outcome.diagnostic.Err = wrapped
		return outcome
	}

	pageCtx := PageContext{
		Site:    siteMeta,
		Article: article,
		Body:    template.HTML(bodyHTML),
	}
	rendered, err := s.deps.Renderer.RenderTemplate("page", pageCtx)
	duration := time.Since(start)
	outcome.diagnostic.Duration = duration
	if err != nil {
		wrapped := fmt.Errorf("publisher: render page for %s: %w", article.Slug, err)
		outcome.err = wrapped
		outcome.diagnostic.Err = wrapped
		return outcome
	}

	outcome.page = PublishedPage{
		ArticleID:    article.ID,
		Slug:         article.Slug,
		Route:        route,
		Output:       output,
		HTML:         rendered,
		Hash:         hash,
		Checksum:     computeHashFromString(rendered),
		LastModified: article.LastModified,
		Duration:     duration,
	}
	return outcome
}

// validateTOC checks that every table-of-contents entry resolves to an
// existing section anchor.
func validateTOC(article *interfaces.Article) error {
	var broken []error
	for _, entry := range article.TOC {
		anchor := markdown.Anchorize(entry.Anchor)
		if _, ok := article.SectionByAnchor(anchor); ok {
			continue
		}
		base := fmt.Errorf("entry %q (#%s) has no matching section heading", entry.Label, anchor)
		broken = append(broken, errs.WrapBrokenAnchor(base,
			fmt.Sprintf("broken anchor in %s: entry %q", article.SourcePath, entry.Label)))
	}
	if len(broken) == 0 {
		return nil
	}
	return errors.Join(broken...)
}

func (s *service) persistPages(ctx context.Context, writer artifactWriter, pages []PublishedPage) error {
	if len(pages) == 0 {
		return nil
	}
	dirCache := map[string]struct{}{}
	for i := range pages {
		fullPath := pages[i].Output
		if err := ensureDir(ctx, writer, dirCache, parentDir(fullPath)); err != nil {
			return err
		}
		req := interfaces.WriteRequest{
			Path:        fullPath,
			Content:     strings.NewReader(pages[i].HTML),
			Size:        int64(len(pages[i].HTML)),
			Category:    string(categoryPage),
			ContentType: "text/html; charset=utf-8",
			Checksum:    pages[i].Checksum,
			Metadata: map[string]string{
				"article_id": pages[i].ArticleID.String(),
				"route":      pages[i].Route,
			},
		}
		if err := writer.WriteFile(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// mergePublishedForSitemap widens the sitemap input beyond freshly rendered
// pages. Incremental builds skip unchanged articles, but their pages still
// exist in the output, so their manifest entries are folded back in; only
// failed articles stay out.
func (s *service) mergePublishedForSitemap(
	articles []*interfaces.Article,
	published []PublishedPage,
	result *BuildResult,
	manifest *buildManifest,
) []PublishedPage {
	publishedBySlug := make(map[string]PublishedPage, len(published))
	for _, page := range published {
		publishedBySlug[page.Slug] = page
	}

	failed := map[string]struct{}{}
	for _, diag := range result.Diagnostics {
		if diag.Err != nil {
			failed[diag.Slug] = struct{}{}
		}
	}

	merged := make([]PublishedPage, 0, len(articles))
	for _, article := range articles {
		if _, ok := failed[article.Slug]; ok {
			continue
		}
		if page, ok := publishedBySlug[article.Slug]; ok {
			merged = append(merged, page)
			continue
		}
		entry, ok := manifest.lookupPage(article.Slug)
		if !ok {
			continue
		}
		merged = append(merged, PublishedPage{
			Slug:         article.Slug,
			Route:        articleRoute(article.Slug),
			Output:       entry.Output,
			Hash:         entry.Hash,
			Checksum:     entry.Checksum,
			LastModified: article.LastModified,
		})
	}
	return merged
}

// successfulArticles filters the input set down to articles that were built
// or skipped (already current); failed articles never reach the index.
func (s *service) successfulArticles(articles []*interfaces.Article, result *BuildResult) []*interfaces.Article {
	failed := map[string]struct{}{}
	for _, diag := range result.Diagnostics {
		if diag.Err != nil {
			failed[diag.Slug] = struct{}{}
		}
	}
	kept := make([]*interfaces.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := failed[article.Slug]; ok {
			continue
		}
		kept = append(kept, article)
	}
	return kept
}

func (s *service) writeIndex(
	ctx context.Context,
	writer artifactWriter,
	siteMeta SiteMetadata,
	articles []*interfaces.Article,
) error {
	entries := make([]IndexEntry, 0, len(articles))
	for _, article := range articles {
		entry := IndexEntry{
			Title:   article.Title,
			Slug:    article.Slug,
			Route:   articleRoute(article.Slug),
			Summary: article.Summary,
		}
		for _, section := range article.Sections {
			if section.Level == 1 {
				continue
			}
			entry.Sections = append(entry.Sections, SectionLink{
				Heading: section.Heading,
				Anchor:  section.Anchor,
				Level:   section.Level,
			})
		}
		entries = append(entries, entry)
	}

	rendered, err := s.deps.Renderer.RenderTemplate("index", IndexContext{
		Site:     siteMeta,
		Articles: entries,
	})
	if err != nil {
		return fmt.Errorf("publisher: render index: %w", err)
	}

	req := interfaces.WriteRequest{
		Path:        "index.html",
		Content:     strings.NewReader(rendered),
		Size:        int64(len(rendered)),
		Category:    string(categoryIndex),
		ContentType: "text/html; charset=utf-8",
		Checksum:    computeHashFromString(rendered),
		Metadata: map[string]string{
			"articles": strconv.Itoa(len(entries)),
		},
	}
	return writer.WriteFile(ctx, req)
}

func (s *service) writeSitemap(
	ctx context.Context,
	writer artifactWriter,
	siteMeta SiteMetadata,
	pages []PublishedPage,
	generatedAt time.Time,
) error {
	content := buildSitemap(siteMeta.BaseURL, pages, generatedAt)
	req := interfaces.WriteRequest{
		Path:        "sitemap.xml",
		Content:     strings.NewReader(content),
		Size:        int64(len(content)),
		Category:    string(categorySitemap),
		ContentType: "application/xml",
		Checksum:    computeHashFromString(content),
		Metadata: map[string]string{
			"generated_at": generatedAt.UTC().Format(time.RFC3339),
		},
	}
	return writer.WriteFile(ctx, req)
}

func (s *service) writeRobots(
	ctx context.Context,
	writer artifactWriter,
	siteMeta SiteMetadata,
	generatedAt time.Time,
) error {
	content := buildRobots(siteMeta.BaseURL, s.cfg.GenerateSitemap)
	req := interfaces.WriteRequest{
		Path:        "robots.txt",
		Content:     strings.NewReader(content),
		Size:        int64(len(content)),
		Category:    string(categoryRobots),
		ContentType: "text/plain; charset=utf-8",
		Checksum:    computeHashFromString(content),
		Metadata: map[string]string{
			"generated_at": generatedAt.UTC().Format(time.RFC3339),
		},
	}
	return writer.WriteFile(ctx, req)
}

func (s *service) loadManifest(ctx context.Context) (*buildManifest, error) {
	if s.deps.Store == nil {
		return newBuildManifest(), nil
	}
	data, err := s.deps.Store.ReadFile(ctx, manifestFileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newBuildManifest(), nil
		}
		return nil, fmt.Errorf("publisher: read manifest: %w", err)
	}
	return parseManifest(data)
}

func (s *service) persistManifest(ctx context.Context, writer artifactWriter, manifest *buildManifest) error {
	if manifest == nil {
		return nil
	}
	data, err := manifest.marshal()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	req := interfaces.WriteRequest{
		Path:        manifestFileName,
		Content:     strings.NewReader(string(data)),
		Size:        int64(len(data)),
		Category:    string(categoryManifest),
		ContentType: "application/json",
		Checksum:    computeHash(data),
		Metadata: map[string]string{
			"version": strconv.Itoa(manifest.Version),
		},
	}
	return writer.WriteFile(ctx, req)
}

func (s *service) siteTitle() string {
	if title := strings.TrimSpace(s.cfg.SiteTitle); title != "" {
		return title
	}
	return "Design Patterns Reference"
}

func (s *service) effectiveWorkerCount(articleCount int) int {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if articleCount > 0 && workers > articleCount {
		return articleCount
	}
	return workers
}

func sourceForSlug(articles []*interfaces.Article, slug string) string {
	for _, article := range articles {
		if article.Slug == slug {
			return article.SourcePath
		}
	}
	return ""
}

func parentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

func computeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func computeHashFromString(content string) string {
	return computeHash([]byte(content))
}
