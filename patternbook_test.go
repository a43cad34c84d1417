package patternbook_test

import (
	"context"
	"io"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	patternbook "github.com/patternbook/patternbook"
	"github.com/patternbook/patternbook/internal/markdown"
	"github.com/patternbook/patternbook/pkg/errs"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (s *memStore) EnsureDir(context.Context, string) error { return nil }

func (s *memStore) WriteFile(_ context.Context, req interfaces.WriteRequest) error {
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[req.Path] = data
	return nil
}

func (s *memStore) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (s *memStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *memStore) content(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	return string(data), ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

const singletonSource = `---
title: Singleton Pattern
summary: Ensure a class has one instance.
---

# Singleton Pattern

Restrict instantiation to a single object.

## Intent

- [Implementation](#implementation)

## Implementation

` + "```java\npublic static Singleton getInstance() { return instance; }\n```" + `
`

const factorySource = `---
title: Factory Pattern
---

# Factory Pattern

## Intent

Create objects without naming concrete classes.
<<<<--->>>>
# Factory Pattern

## Intent

Create objects without naming concrete classes.

## Participants

The ConcreteFactory implements the creation method.

## Consequences

Clients stay decoupled from product classes.
`

const brokenSource = `---
title: Visitor Pattern
---

# Visitor Pattern

## Intent

- [Ghost Section](#ghost)

## Implementation

Double dispatch over an object structure.
`

const draftSource = `---
title: Memento Pattern
draft: true
---

# Memento Pattern

## Intent

Capture and restore object state.
`

func newPipeline(t *testing.T, sources fstest.MapFS, store *memStore, mutate func(*patternbook.Config)) *patternbook.Pipeline {
	t.Helper()
	cfg := patternbook.Config{
		Input:  patternbook.InputConfig{Dir: "articles"},
		Output: patternbook.OutputConfig{Dir: "public", BaseURL: "https://patterns.example.com"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	pipeline, err := patternbook.New(cfg,
		patternbook.WithSourceFS(sources),
		patternbook.WithArtifactStore(store),
	)
	if err != nil {
		t.Fatalf("pipeline construction failed: %v", err)
	}
	return pipeline
}

func TestPipelineBuild_EndToEnd(t *testing.T) {
	sources := fstest.MapFS{
		"singleton.md": {Data: []byte(singletonSource)},
		"factory.md":   {Data: []byte(factorySource)},
	}
	store := newMemStore()
	pipeline := newPipeline(t, sources, store, nil)

	report, err := pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "."})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if report.Documents != 3 {
		t.Fatalf("expected 3 documents (one plus two drafts), got %d", report.Documents)
	}
	if report.Articles != 2 || report.Discarded != 1 {
		t.Fatalf("expected 2 articles with 1 duplicate discarded, got %d/%d",
			report.Articles, report.Discarded)
	}
	if report.PagesBuilt != 2 || report.PagesFailed != 0 {
		t.Fatalf("expected 2 clean pages, got built=%d failed=%d",
			report.PagesBuilt, report.PagesFailed)
	}

	page, ok := store.content("singleton-pattern/index.html")
	if !ok {
		t.Fatal("singleton page missing")
	}
	if !strings.Contains(page, "getInstance") {
		t.Fatalf("code listing lost in publishing:\n%s", page)
	}
	if !strings.Contains(page, `id="implementation"`) {
		t.Fatalf("section anchors missing from page:\n%s", page)
	}

	factory, ok := store.content("factory-pattern/index.html")
	if !ok {
		t.Fatal("factory page missing")
	}
	if !strings.Contains(factory, "ConcreteFactory") {
		t.Fatalf("the more complete draft should have been published:\n%s", factory)
	}

	if _, ok := store.content("index.html"); !ok {
		t.Fatal("index page missing")
	}
	if _, ok := store.content("sitemap.xml"); !ok {
		t.Fatal("sitemap missing")
	}
	if _, ok := store.content("robots.txt"); !ok {
		t.Fatal("robots missing")
	}
	if _, ok := store.content(".patternbook-manifest.json"); !ok {
		t.Fatal("build manifest missing")
	}
}

func TestPipelineBuild_BrokenAnchorFailsOneArticle(t *testing.T) {
	sources := fstest.MapFS{
		"singleton.md": {Data: []byte(singletonSource)},
		"visitor.md":   {Data: []byte(brokenSource)},
	}
	store := newMemStore()
	pipeline := newPipeline(t, sources, store, nil)

	report, err := pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "."})
	if err != nil {
		t.Fatalf("broken anchors must not abort the build: %v", err)
	}
	if report.PagesBuilt != 1 || report.PagesFailed != 1 {
		t.Fatalf("expected 1 built and 1 failed, got %d/%d",
			report.PagesBuilt, report.PagesFailed)
	}
	if len(report.Failures) != 1 || !strings.Contains(report.Failures[0], "visitor.md") {
		t.Fatalf("failure should name the offending source: %v", report.Failures)
	}

	if _, ok := store.content("singleton-pattern/index.html"); !ok {
		t.Fatal("healthy article should still publish")
	}
	if _, ok := store.content("visitor-pattern/index.html"); ok {
		t.Fatal("failed article must leave no output")
	}
}

func TestPipelineBuild_MissingDirectoryAborts(t *testing.T) {
	store := newMemStore()
	pipeline := newPipeline(t, fstest.MapFS{}, store, nil)

	_, err := pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "missing"})
	if err == nil {
		t.Fatal("expected a read error for the missing directory")
	}
	if !errs.IsReadError(err) {
		t.Fatalf("expected read category, got %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("nothing may be written after a read failure, found %d files", store.count())
	}
}

func TestPipelineBuild_DryRunWritesNothing(t *testing.T) {
	sources := fstest.MapFS{
		"singleton.md": {Data: []byte(singletonSource)},
	}
	store := newMemStore()
	pipeline := newPipeline(t, sources, store, nil)

	report, err := pipeline.Build(context.Background(), interfaces.BuildParams{
		InputDir: ".",
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !report.DryRun || report.PagesBuilt != 1 {
		t.Fatalf("dry run should still render: %+v", report)
	}
	if store.count() != 0 {
		t.Fatalf("dry run must not write, found %d files", store.count())
	}
}

func TestPipelineBuild_DraftFiltering(t *testing.T) {
	sources := fstest.MapFS{
		"singleton.md": {Data: []byte(singletonSource)},
		"memento.md":   {Data: []byte(draftSource)},
	}

	store := newMemStore()
	pipeline := newPipeline(t, sources, store, nil)
	report, err := pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "."})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if report.Articles != 1 {
		t.Fatalf("draft should be excluded by default, got %d articles", report.Articles)
	}
	if _, ok := store.content("memento-pattern/index.html"); ok {
		t.Fatal("draft article must not publish")
	}

	store = newMemStore()
	pipeline = newPipeline(t, sources, store, func(cfg *patternbook.Config) {
		cfg.Input.IncludeDrafts = true
	})
	report, err = pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "."})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if report.Articles != 2 {
		t.Fatalf("drafts should publish when enabled, got %d articles", report.Articles)
	}
	if _, ok := store.content("memento-pattern/index.html"); !ok {
		t.Fatal("draft article should publish when enabled")
	}
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// textContent approximates re-loading a published page as text: tags are
// stripped, leaving heading text and code listing bodies.
func textContent(page string) string {
	return tagPattern.ReplaceAllString(page, "")
}

func TestPipelineBuild_RoundTripPreservesContent(t *testing.T) {
	doc, err := markdown.BuildDocument("singleton.md", 1, []byte(singletonSource), time.Now().UTC())
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	article, err := markdown.NewOutlineBuilder().BuildArticle(doc)
	if err != nil {
		t.Fatalf("BuildArticle: %v", err)
	}
	if len(article.Sections) == 0 {
		t.Fatal("fixture should produce sections")
	}

	sources := fstest.MapFS{
		"singleton.md": {Data: []byte(singletonSource)},
	}
	store := newMemStore()
	pipeline := newPipeline(t, sources, store, nil)
	if _, err := pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "."}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	page, ok := store.content("singleton-pattern/index.html")
	if !ok {
		t.Fatal("published page missing")
	}
	text := textContent(page)

	for _, section := range article.Sections {
		if !strings.Contains(text, section.Heading) {
			t.Fatalf("heading %q lost in publishing:\n%s", section.Heading, text)
		}
		for _, listing := range section.Listings {
			for _, line := range strings.Split(strings.TrimRight(listing.Code, "\n"), "\n") {
				if !strings.Contains(text, line) {
					t.Fatalf("code listing line %q lost in publishing:\n%s", line, text)
				}
			}
		}
	}
}

func TestPipelineBuild_Idempotent(t *testing.T) {
	sources := fstest.MapFS{
		"singleton.md": {Data: []byte(singletonSource)},
		"factory.md":   {Data: []byte(factorySource)},
	}
	store := newMemStore()
	pipeline := newPipeline(t, sources, store, nil)

	first, err := pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "."})
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	page1, _ := store.content("singleton-pattern/index.html")

	second, err := pipeline.Build(context.Background(), interfaces.BuildParams{InputDir: "."})
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	page2, _ := store.content("singleton-pattern/index.html")

	if first.Articles != second.Articles || first.Discarded != second.Discarded {
		t.Fatalf("repeated builds should agree: %+v vs %+v", first, second)
	}
	if stripGeneratedAt(page1) != stripGeneratedAt(page2) {
		t.Fatal("repeated builds should produce identical pages")
	}
}

// stripGeneratedAt removes the footer timestamp so page comparisons ignore
// the build date.
func stripGeneratedAt(page string) string {
	var kept []string
	for _, line := range strings.Split(page, "\n") {
		if strings.Contains(line, "Generated") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
