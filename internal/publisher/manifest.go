package publisher

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	manifestFileName    = ".patternbook-manifest.json"
	manifestFileVersion = 1
)

// buildManifest stores metadata about the last successful build to support
// incremental runs. It is a cache: deleting it only forces a full rebuild.
type buildManifest struct {
	Version     int                     `json:"version"`
	BuildID     string                  `json:"build_id,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
	Pages       map[string]manifestPage `json:"pages"`
}

type manifestPage struct {
	ArticleID  string    `json:"article_id"`
	Slug       string    `json:"slug"`
	Source     string    `json:"source"`
	Output     string    `json:"output"`
	Hash       string    `json:"hash"`
	Checksum   string    `json:"checksum"`
	RenderedAt time.Time `json:"rendered_at"`
}

func newBuildManifest() *buildManifest {
	return &buildManifest{
		Version: manifestFileVersion,
		Pages:   map[string]manifestPage{},
	}
}

func parseManifest(data []byte) (*buildManifest, error) {
	if len(data) == 0 {
		return newBuildManifest(), nil
	}
	var manifest buildManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("publisher: parse manifest: %w", err)
	}
	if manifest.Pages == nil {
		manifest.Pages = map[string]manifestPage{}
	}
	if manifest.Version == 0 {
		manifest.Version = manifestFileVersion
	}
	return &manifest, nil
}

func (m *buildManifest) marshal() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	cloned := *m
	if cloned.Version == 0 {
		cloned.Version = manifestFileVersion
	}
	if cloned.Pages == nil {
		cloned.Pages = map[string]manifestPage{}
	}

	// Stable ordering for deterministic output.
	type orderedManifest struct {
		Version     int            `json:"version"`
		BuildID     string         `json:"build_id,omitempty"`
		GeneratedAt time.Time      `json:"generated_at"`
		Pages       []manifestPage `json:"pages"`
	}
	ordered := orderedManifest{
		Version:     cloned.Version,
		BuildID:     cloned.BuildID,
		GeneratedAt: cloned.GeneratedAt,
	}
	if len(cloned.Pages) > 0 {
		ordered.Pages = make([]manifestPage, 0, len(cloned.Pages))
		for _, entry := range cloned.Pages {
			ordered.Pages = append(ordered.Pages, entry)
		}
		sort.Slice(ordered.Pages, func(i, j int) bool {
			return ordered.Pages[i].Slug < ordered.Pages[j].Slug
		})
	}
	return json.MarshalIndent(ordered, "", "  ")
}

// UnmarshalJSON accepts both the persisted list form and the in-memory map
// form of the pages collection.
func (m *buildManifest) UnmarshalJSON(data []byte) error {
	type wireManifest struct {
		Version     int             `json:"version"`
		BuildID     string          `json:"build_id"`
		GeneratedAt time.Time       `json:"generated_at"`
		Pages       json.RawMessage `json:"pages"`
	}
	var wire wireManifest
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Version = wire.Version
	m.BuildID = wire.BuildID
	m.GeneratedAt = wire.GeneratedAt
	m.Pages = map[string]manifestPage{}

	if len(wire.Pages) == 0 {
		return nil
	}
	var asList []manifestPage
	if err := json.Unmarshal(wire.Pages, &asList); err == nil {
		for _, entry := range asList {
			m.setPage(entry)
		}
		return nil
	}
	var asMap map[string]manifestPage
	if err := json.Unmarshal(wire.Pages, &asMap); err != nil {
		return err
	}
	m.Pages = asMap
	return nil
}

func (m *buildManifest) pageKey(slug string) string {
	return slug
}

func (m *buildManifest) setPage(entry manifestPage) {
	if m == nil || entry.Slug == "" {
		return
	}
	if m.Pages == nil {
		m.Pages = map[string]manifestPage{}
	}
	m.Pages[m.pageKey(entry.Slug)] = entry
}

func (m *buildManifest) lookupPage(slug string) (manifestPage, bool) {
	if m == nil || m.Pages == nil {
		return manifestPage{}, false
	}
	entry, ok := m.Pages[m.pageKey(slug)]
	return entry, ok
}

// shouldSkipPage reports whether an incremental build can keep the existing
// output for a page: same source hash, same output location.
func (m *buildManifest) shouldSkipPage(slug string, hash string, output string) bool {
	entry, ok := m.lookupPage(slug)
	if !ok {
		return false
	}
	if entry.Hash == "" || hash == "" {
		return false
	}
	return entry.Hash == hash && entry.Output == output
}
