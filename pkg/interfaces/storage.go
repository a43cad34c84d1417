package interfaces

import (
	"context"
	"io"
)

// ArtifactStore abstracts where published pages, manifests, and auxiliary
// files land. The default implementation writes to a local directory;
// alternative stores (in-memory for tests, remote object stores) satisfy the
// same contract.
type ArtifactStore interface {
	EnsureDir(ctx context.Context, path string) error
	WriteFile(ctx context.Context, req WriteRequest) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}

// WriteRequest describes a single artifact write routed through the store.
type WriteRequest struct {
	Path        string
	Content     io.Reader
	Size        int64
	Category    string
	ContentType string
	Checksum    string
	Metadata    map[string]string
}

// TemplateRenderer turns a named template plus a data context into a page
// body. Hosts can swap the embedded default layout for their own engine.
type TemplateRenderer interface {
	RenderTemplate(name string, data any) (string, error)
}
