package publisher

import (
	"context"
	"errors"
	"strings"

	"github.com/patternbook/patternbook/pkg/interfaces"
)

type writeCategory string

const (
	categoryPage     writeCategory = "page"
	categoryIndex    writeCategory = "index"
	categorySitemap  writeCategory = "sitemap"
	categoryRobots   writeCategory = "robots"
	categoryManifest writeCategory = "manifest"
)

// artifactWriter abstracts store specifics for publisher outputs.
type artifactWriter interface {
	EnsureDir(ctx context.Context, path string) error
	WriteFile(ctx context.Context, req interfaces.WriteRequest) error
}

func newArtifactWriter(store interfaces.ArtifactStore) artifactWriter {
	if store == nil {
		return noopWriter{}
	}
	return &storeWriter{store: store}
}

type storeWriter struct {
	store interfaces.ArtifactStore
}

func (w *storeWriter) EnsureDir(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" || path == "." {
		return nil
	}
	return w.store.EnsureDir(ctx, path)
}

func (w *storeWriter) WriteFile(ctx context.Context, req interfaces.WriteRequest) error {
	if req.Content == nil {
		return errors.New("publisher: write requires content reader")
	}
	if strings.TrimSpace(req.Path) == "" {
		return errors.New("publisher: write requires path")
	}
	if req.Metadata == nil {
		req.Metadata = map[string]string{}
	}
	return w.store.WriteFile(ctx, req)
}

type noopWriter struct{}

func (noopWriter) EnsureDir(context.Context, string) error { return nil }

func (noopWriter) WriteFile(context.Context, interfaces.WriteRequest) error { return nil }

func ensureDir(ctx context.Context, writer artifactWriter, cache map[string]struct{}, dir string) error {
	dir = strings.Trim(dir, " ")
	if dir == "" || dir == "." {
		return nil
	}
	if cache != nil {
		if _, ok := cache[dir]; ok {
			return nil
		}
		cache[dir] = struct{}{}
	}
	return writer.EnsureDir(ctx, dir)
}
