package patternbook

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/patternbook/patternbook/pkg/interfaces"
)

// Config wires the three pipeline stages together. Zero values are filled
// with defaults by New; only the input and output directories are mandatory.
type Config struct {
	Input    InputConfig
	Output   OutputConfig
	Markdown interfaces.ParseOptions
}

// InputConfig controls source discovery.
type InputConfig struct {
	// Dir is the directory holding Markdown article sources.
	Dir string
	// Pattern limits discovery to matching files. Defaults to "*.md".
	Pattern string
	// Recursive walks sub-directories. Defaults to true.
	Recursive *bool
	// RevisionMarker separates successive drafts inside one file.
	RevisionMarker string
	// IncludeDrafts keeps articles whose front matter marks them as drafts.
	IncludeDrafts bool
}

// OutputConfig controls publishing.
type OutputConfig struct {
	// Dir is the directory receiving the published site.
	Dir string
	// BaseURL prefixes absolute links in the sitemap and robots artifacts.
	BaseURL string
	// SiteTitle labels the index page and page headers.
	SiteTitle string
	// Incremental skips pages whose source is unchanged since the last
	// build, according to the build manifest.
	Incremental bool
	// Sitemap toggles sitemap.xml generation. Defaults to true.
	Sitemap *bool
	// Robots toggles robots.txt generation. Defaults to true.
	Robots *bool
	// Workers bounds per-article publishing fan-out. Defaults to 1
	// (sequential); publishing is correct at any worker count.
	Workers int
}

// Validate checks that the configuration names both ends of the pipeline.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.Input,
		validation.Field(&c.Input.Dir, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Output,
		validation.Field(&c.Output.Dir, validation.Required),
	)
}

func (c *Config) applyDefaults() {
	if c.Input.Pattern == "" {
		c.Input.Pattern = "*.md"
	}
	if c.Input.Recursive == nil {
		recursive := true
		c.Input.Recursive = &recursive
	}
	if c.Output.SiteTitle == "" {
		c.Output.SiteTitle = "Design Patterns Reference"
	}
	if c.Output.Sitemap == nil {
		enabled := true
		c.Output.Sitemap = &enabled
	}
	if c.Output.Robots == nil {
		enabled := true
		c.Output.Robots = &enabled
	}
	if c.Output.Workers <= 0 {
		c.Output.Workers = 1
	}
}
