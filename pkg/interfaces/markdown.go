package interfaces

import (
	"context"
	"time"
)

// MarkdownParser defines how raw Markdown bytes are converted into HTML.
// Implementations must emit heading id attributes and resolve fragment links
// against them, since published anchors are part of the output contract.
// Implementations should be reusable across documents so a single instance
// can serve an entire build without additional locking.
type MarkdownParser interface {
	// Parse converts Markdown into HTML using the parser's default settings.
	Parse(markdown []byte) ([]byte, error)
	// ParseWithOptions converts Markdown into HTML using the supplied overrides.
	ParseWithOptions(markdown []byte, opts ParseOptions) ([]byte, error)
}

// ParseOptions customises Markdown parsing behaviour, keeping option names
// readable for configuration unmarshalling and CLI flags.
type ParseOptions struct {
	Extensions []string
	Sanitize   bool
	HardWraps  bool
	SafeMode   bool
}

// DocumentLoader discovers Markdown source files and turns them into
// Documents. A single source file can yield several Documents when it
// contains multiple drafts separated by a revision marker.
type DocumentLoader interface {
	LoadFile(ctx context.Context, path string, opts LoadOptions) ([]*Document, error)
	LoadDirectory(ctx context.Context, dir string, opts LoadOptions) ([]*Document, error)
}

// LoadOptions provide call-specific overrides for document discovery.
type LoadOptions struct {
	Pattern   string
	Recursive *bool
}

// Document represents one Markdown draft with parsed metadata and content.
// The struct is shared between the interfaces package and internal
// implementations so consumers can depend on a stable contract.
type Document struct {
	FilePath     string
	Revision     int
	FrontMatter  FrontMatter
	Body         []byte
	LastModified time.Time
	// Checksum stores a SHA-256 digest of the draft content so duplicate
	// detection and incremental builds can compare drafts without rereading
	// source files.
	Checksum []byte
}

// FrontMatter models metadata extracted from Markdown files. The Custom map
// keeps domain-specific values available without widening the struct.
type FrontMatter struct {
	Title   string         `yaml:"title" json:"title"`
	Slug    string         `yaml:"slug" json:"slug"`
	Summary string         `yaml:"summary" json:"summary"`
	Tags    []string       `yaml:"tags" json:"tags"`
	Author  string         `yaml:"author" json:"author"`
	Date    time.Time      `yaml:"date" json:"date"`
	Draft   bool           `yaml:"draft" json:"draft"`
	Custom  map[string]any `yaml:"-" json:"custom,omitempty"`
	Raw     map[string]any `yaml:"-" json:"-"`
}
