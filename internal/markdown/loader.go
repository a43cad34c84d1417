package markdown

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/patternbook/patternbook/internal/logging"
	"github.com/patternbook/patternbook/pkg/errs"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

// DefaultRevisionMarker separates successive drafts of the same article
// inside a single source file.
const DefaultRevisionMarker = "<<<<--->>>>"

// LoaderConfig configures how Markdown files are discovered within a base
// directory.
type LoaderConfig struct {
	// BasePath is the root directory where Markdown documents live.
	BasePath string
	// Pattern limits discovered files to those matching the supplied glob
	// (defaults to "*.md").
	Pattern string
	// Recursive controls whether sub-directories are traversed.
	Recursive bool
	// RevisionMarker overrides the draft separator line. Defaults to
	// DefaultRevisionMarker.
	RevisionMarker string
	// Logger receives per-file and per-directory discovery entries. Optional.
	Logger interfaces.Logger
}

// Loader turns filesystem paths into Markdown documents with metadata.
// Files are read fully into memory; sources are small human-authored
// documents, so there is no streaming path.
type Loader struct {
	fs        fs.FS
	basePath  string
	pattern   string
	recursive bool
	marker    string
	logger    interfaces.Logger
}

var _ interfaces.DocumentLoader = (*Loader)(nil)

// NewLoader constructs a Loader using the provided filesystem and
// configuration.
func NewLoader(filesystem fs.FS, cfg LoaderConfig) *Loader {
	pattern := cfg.Pattern
	if strings.TrimSpace(pattern) == "" {
		pattern = "*.md"
	}
	marker := cfg.RevisionMarker
	if strings.TrimSpace(marker) == "" {
		marker = DefaultRevisionMarker
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	return &Loader{
		fs:        filesystem,
		basePath:  filepath.Clean(cfg.BasePath),
		pattern:   pattern,
		recursive: cfg.Recursive,
		marker:    marker,
		logger:    logger,
	}
}

// LoadFile reads a single source file and returns one Document per draft it
// contains. Unreadable paths surface as read errors that abort the build.
func (l *Loader) LoadFile(ctx context.Context, path string, opts interfaces.LoadOptions) ([]*interfaces.Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rel, err := l.makeRelative(path)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)

	data, err := fs.ReadFile(l.fs, rel)
	if err != nil {
		return nil, errs.WrapRead(err, fmt.Sprintf("loader read %s", rel))
	}

	info, err := fs.Stat(l.fs, rel)
	if err != nil {
		return nil, errs.WrapRead(err, fmt.Sprintf("loader stat %s", rel))
	}

	drafts := splitRevisions(data, l.marker)
	docs := make([]*interfaces.Document, 0, len(drafts))
	for i, draft := range drafts {
		doc, err := BuildDocument(rel, i+1, draft, info.ModTime())
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(draft)
		doc.Checksum = sum[:]
		docs = append(docs, doc)
	}

	l.logger.Debug("loader.file.loaded", "path", rel, "drafts", len(docs))
	return docs, nil
}

// LoadDirectory discovers Markdown files under dir and returns parsed
// documents in deterministic path order.
func (l *Loader) LoadDirectory(ctx context.Context, dir string, opts interfaces.LoadOptions) ([]*interfaces.Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	root, err := l.makeRelative(dir)
	if err != nil {
		return nil, err
	}
	root = filepath.Clean(root)

	var results []*interfaces.Document

	walkErr := fs.WalkDir(l.fs, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errs.WrapRead(walkErr, fmt.Sprintf("loader walk %s", path))
		}

		if d.IsDir() {
			if !l.shouldRecurse(root, path, opts.Recursive) {
				return fs.SkipDir
			}
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel := filepath.ToSlash(path)
		if !l.matchesPattern(rel, opts.Pattern) {
			return nil
		}

		docs, err := l.LoadFile(ctx, rel, opts)
		if err != nil {
			return err
		}
		results = append(results, docs...)
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FilePath == results[j].FilePath {
			return results[i].Revision < results[j].Revision
		}
		return results[i].FilePath < results[j].FilePath
	})

	l.logger.Debug("loader.directory.loaded", "dir", root, "documents", len(results))
	return results, nil
}

// splitRevisions cuts a source file into drafts wherever a line consists of
// the revision marker. Empty drafts (e.g. trailing markers) are dropped.
func splitRevisions(data []byte, marker string) [][]byte {
	lines := bytes.Split(data, []byte("\n"))
	var drafts [][]byte
	var current [][]byte

	flush := func() {
		if len(current) == 0 {
			return
		}
		draft := bytes.TrimSpace(bytes.Join(current, []byte("\n")))
		if len(draft) > 0 {
			drafts = append(drafts, draft)
		}
		current = current[:0]
	}

	for _, line := range lines {
		if strings.TrimSpace(string(line)) == marker {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	if len(drafts) == 0 {
		return [][]byte{bytes.TrimSpace(data)}
	}
	return drafts
}

func (l *Loader) shouldRecurse(root, current string, override *bool) bool {
	recursive := l.recursive
	if override != nil {
		recursive = *override
	}
	if recursive {
		return true
	}
	// If recursion is disabled, only walk the root directory.
	return filepath.Clean(root) == filepath.Clean(current)
}

func (l *Loader) matchesPattern(path string, override string) bool {
	pattern := override
	if strings.TrimSpace(pattern) == "" {
		pattern = l.pattern
	}
	// Normalise to slash as fs.WalkDir returns slash-separated paths for DirFS.
	pattern = filepath.ToSlash(pattern)
	if strings.Contains(pattern, "**") {
		// Basic support for ** by stripping repeated separators.
		pattern = strings.ReplaceAll(pattern, "**/", "")
	}
	var target string
	if strings.Contains(pattern, "/") {
		target = path
	} else {
		target = filepath.Base(path)
	}
	match, err := filepath.Match(pattern, target)
	if err != nil {
		return false
	}
	return match
}

func (l *Loader) makeRelative(path string) (string, error) {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		return clean, nil
	}
	if l.basePath == "" {
		return "", fmt.Errorf("loader: absolute path %s provided without base path", path)
	}
	rel, err := filepath.Rel(l.basePath, clean)
	if err != nil {
		return "", fmt.Errorf("loader: make relative %s: %w", path, err)
	}
	return rel, nil
}
