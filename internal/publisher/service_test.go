package publisher

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/patternbook/patternbook/pkg/errs"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

// memoryStore is an in-memory ArtifactStore for exercising the publisher
// without touching the filesystem.
type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		files: map[string][]byte{},
		dirs:  map[string]struct{}{},
	}
}

func (s *memoryStore) EnsureDir(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[path] = struct{}{}
	return nil
}

func (s *memoryStore) WriteFile(_ context.Context, req interfaces.WriteRequest) error {
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[req.Path] = data
	return nil
}

func (s *memoryStore) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (s *memoryStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *memoryStore) content(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	return string(data), ok
}

func (s *memoryStore) fileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func testArticle(title string) *interfaces.Article {
	slug := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	body := []byte("# " + title + "\n\n## Intent\n\n- [Implementation](#implementation)\n\n## Implementation\n\nCode goes here.\n")
	sum := sha256.Sum256(body)
	return &interfaces.Article{
		ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(slug)),
		Slug:       slug,
		Title:      title,
		Summary:    "About " + title + ".",
		SourcePath: slug + ".md",
		Revision:   1,
		Body:       body,
		Checksum:   sum[:],
		Sections: []interfaces.Section{
			{Heading: title, Level: 1, Anchor: slug, Body: ""},
			{Heading: "Intent", Level: 2, Anchor: "intent", Body: "[Implementation](#implementation)"},
			{Heading: "Implementation", Level: 2, Anchor: "implementation", Body: "Code goes here."},
		},
		TOC: []interfaces.TOCEntry{
			{Label: "Implementation", Anchor: "implementation"},
		},
	}
}

func newTestService(cfg Config, store interfaces.ArtifactStore) Service {
	cfg.GenerateSitemap = true
	cfg.GenerateRobots = true
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://patterns.example.com"
	}
	return NewService(cfg, Dependencies{Store: store})
}

func TestBuild_WritesAllArtifacts(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{}, store)

	articles := []*interfaces.Article{
		testArticle("Singleton Pattern"),
		testArticle("Factory Pattern"),
	}

	result, err := svc.Build(context.Background(), articles, BuildOptions{BuildID: uuid.New()})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if result.PagesBuilt != 2 {
		t.Fatalf("expected 2 pages built, got %d", result.PagesBuilt)
	}

	for _, path := range []string{
		"singleton-pattern/index.html",
		"factory-pattern/index.html",
		"index.html",
		"sitemap.xml",
		"robots.txt",
		".patternbook-manifest.json",
	} {
		if _, ok := store.content(path); !ok {
			t.Fatalf("expected artifact %s to be written", path)
		}
	}

	page, _ := store.content("singleton-pattern/index.html")
	if !strings.Contains(page, `id="implementation"`) {
		t.Fatalf("rendered page should carry heading anchors:\n%s", page)
	}
	if !strings.Contains(page, "Singleton Pattern") {
		t.Fatalf("rendered page should carry the article title")
	}

	index, _ := store.content("index.html")
	if !strings.Contains(index, `href="singleton-pattern/"`) ||
		!strings.Contains(index, `href="factory-pattern/"`) {
		t.Fatalf("index should link every published article:\n%s", index)
	}
	if !strings.Contains(index, `href="singleton-pattern/#intent"`) {
		t.Fatalf("index should deep-link section anchors:\n%s", index)
	}

	sitemap, _ := store.content("sitemap.xml")
	if !strings.Contains(sitemap, "<loc>https://patterns.example.com/singleton-pattern/</loc>") {
		t.Fatalf("sitemap should list article routes:\n%s", sitemap)
	}

	robots, _ := store.content("robots.txt")
	if !strings.Contains(robots, "Sitemap: https://patterns.example.com/sitemap.xml") {
		t.Fatalf("robots should reference the sitemap:\n%s", robots)
	}
}

func TestBuild_BrokenAnchorFailsOnlyThatArticle(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{}, store)

	good := testArticle("Observer Pattern")
	bad := testArticle("Visitor Pattern")
	bad.TOC = append(bad.TOC, interfaces.TOCEntry{Label: "Motivation", Anchor: "motivation"})

	result, err := svc.Build(context.Background(), []*interfaces.Article{good, bad}, BuildOptions{})
	if err == nil {
		t.Fatal("expected a build error for the broken anchor")
	}
	if result.PagesBuilt != 1 || result.PagesFailed != 1 {
		t.Fatalf("expected 1 built and 1 failed, got %d/%d", result.PagesBuilt, result.PagesFailed)
	}

	var anchorSeen bool
	for _, buildErr := range result.Errors {
		if errs.IsBrokenAnchor(buildErr) {
			anchorSeen = true
		}
	}
	if !anchorSeen {
		t.Fatalf("expected a broken anchor error in %v", result.Errors)
	}

	if _, ok := store.content("observer-pattern/index.html"); !ok {
		t.Fatal("healthy article should still publish")
	}
	if _, ok := store.content("visitor-pattern/index.html"); ok {
		t.Fatal("failed article must not leave output behind")
	}

	index, _ := store.content("index.html")
	if strings.Contains(index, "visitor-pattern") {
		t.Fatalf("failed article must not appear on the index:\n%s", index)
	}
}

func TestBuild_DryRunWritesNothing(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{}, store)

	result, err := svc.Build(context.Background(),
		[]*interfaces.Article{testArticle("Singleton Pattern")},
		BuildOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !result.DryRun || result.PagesBuilt != 1 {
		t.Fatalf("dry run should still render pages: %+v", result)
	}
	if store.fileCount() != 0 {
		t.Fatalf("dry run must not write artifacts, found %d files", store.fileCount())
	}
}

func TestBuild_IncrementalSkipsUnchangedPages(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{Incremental: true}, store)
	articles := []*interfaces.Article{testArticle("Singleton Pattern")}

	if _, err := svc.Build(context.Background(), articles, BuildOptions{}); err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	result, err := svc.Build(context.Background(), articles, BuildOptions{})
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if result.PagesSkipped != 1 || result.PagesBuilt != 0 {
		t.Fatalf("unchanged page should be skipped, got built=%d skipped=%d",
			result.PagesBuilt, result.PagesSkipped)
	}

	// A content change invalidates the manifest entry.
	changed := testArticle("Singleton Pattern")
	changed.Body = append(changed.Body, []byte("\nRevised conclusion.\n")...)
	sum := sha256.Sum256(changed.Body)
	changed.Checksum = sum[:]

	result, err = svc.Build(context.Background(), []*interfaces.Article{changed}, BuildOptions{})
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if result.PagesBuilt != 1 {
		t.Fatalf("changed page should rebuild, got %+v", result)
	}
}

func TestBuild_IncrementalSitemapKeepsSkippedPages(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{Incremental: true}, store)
	articles := []*interfaces.Article{
		testArticle("Singleton Pattern"),
		testArticle("Factory Pattern"),
	}

	if _, err := svc.Build(context.Background(), articles, BuildOptions{}); err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	result, err := svc.Build(context.Background(), articles, BuildOptions{})
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if result.PagesSkipped != 2 {
		t.Fatalf("expected both pages skipped, got %+v", result)
	}

	sitemap, _ := store.content("sitemap.xml")
	for _, route := range []string{"/singleton-pattern/", "/factory-pattern/"} {
		if !strings.Contains(sitemap, "<loc>https://patterns.example.com"+route+"</loc>") {
			t.Fatalf("skipped page %s must stay in the rewritten sitemap:\n%s", route, sitemap)
		}
	}
}

func TestBuild_ConcurrentWorkers(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{Workers: 4}, store)

	articles := []*interfaces.Article{
		testArticle("Singleton Pattern"),
		testArticle("Factory Pattern"),
		testArticle("Observer Pattern"),
		testArticle("Strategy Pattern"),
		testArticle("Visitor Pattern"),
		testArticle("Adapter Pattern"),
	}

	result, err := svc.Build(context.Background(), articles, BuildOptions{})
	if err != nil {
		t.Fatalf("concurrent build failed: %v", err)
	}
	if result.PagesBuilt != len(articles) {
		t.Fatalf("expected %d pages, got %d", len(articles), result.PagesBuilt)
	}
	for _, article := range articles {
		if _, ok := store.content(article.Slug + "/index.html"); !ok {
			t.Fatalf("missing page for %s", article.Slug)
		}
	}
}

func TestBuild_CancelledContext(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Build(ctx, []*interfaces.Article{testArticle("Singleton Pattern")}, BuildOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestClean_RemovesManifest(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(Config{}, store)

	if _, err := svc.Build(context.Background(), []*interfaces.Article{testArticle("Singleton Pattern")}, BuildOptions{}); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, ok := store.content(manifestFileName); !ok {
		t.Fatal("manifest should exist after a build")
	}
	if err := svc.Clean(context.Background()); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if _, ok := store.content(manifestFileName); ok {
		t.Fatal("clean should remove the manifest")
	}
}

func TestValidateTOC(t *testing.T) {
	article := testArticle("Singleton Pattern")
	if err := validateTOC(article); err != nil {
		t.Fatalf("valid TOC rejected: %v", err)
	}

	article.TOC = append(article.TOC, interfaces.TOCEntry{Label: "Ghost", Anchor: "ghost"})
	err := validateTOC(article)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !errs.IsBrokenAnchor(err) {
		t.Fatalf("expected broken anchor category, got %v", err)
	}
	if !strings.Contains(err.Error(), "Ghost") {
		t.Fatalf("error should name the offending entry: %v", err)
	}
}

func TestArticlePaths(t *testing.T) {
	if got := articleOutputPath("singleton-pattern"); got != "singleton-pattern/index.html" {
		t.Fatalf("unexpected output path %q", got)
	}
	if got := articleOutputPath(""); got != "index.html" {
		t.Fatalf("empty slug should map to the root page, got %q", got)
	}
	if got := articleRoute("singleton-pattern"); got != "/singleton-pattern/" {
		t.Fatalf("unexpected route %q", got)
	}
}
