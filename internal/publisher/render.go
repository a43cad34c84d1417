package publisher

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/patternbook/patternbook/pkg/interfaces"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// SiteMetadata describes site-wide values shared by every rendered page.
type SiteMetadata struct {
	Title       string
	BaseURL     string
	GeneratedAt time.Time
}

// PageContext is the data handed to the article template.
type PageContext struct {
	Site    SiteMetadata
	Article *interfaces.Article
	Body    template.HTML
}

// IndexContext is the data handed to the index template.
type IndexContext struct {
	Site     SiteMetadata
	Articles []IndexEntry
}

// IndexEntry summarises one article on the index page, with deep links to
// its section anchors.
type IndexEntry struct {
	Title    string
	Slug     string
	Route    string
	Summary  string
	Sections []SectionLink
}

// SectionLink points at a single section anchor.
type SectionLink struct {
	Heading string
	Anchor  string
	Level   int
}

// NewDefaultRenderer returns a TemplateRenderer backed by html/template and
// the embedded default layout. Hosts that want their own look provide a
// different interfaces.TemplateRenderer.
func NewDefaultRenderer() interfaces.TemplateRenderer {
	return &defaultRenderer{}
}

type defaultRenderer struct {
	once sync.Once
	tpl  *template.Template
	err  error
}

func (r *defaultRenderer) ensureTemplates() (*template.Template, error) {
	r.once.Do(func() {
		funcs := template.FuncMap{
			"safeHTML": func(value any) template.HTML {
				switch v := value.(type) {
				case template.HTML:
					return v
				case string:
					return template.HTML(v)
				default:
					return template.HTML(fmt.Sprint(v))
				}
			},
			"lower": strings.ToLower,
		}
		r.tpl, r.err = template.New("patternbook").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	})
	return r.tpl, r.err
}

// RenderTemplate renders the named template ("page" or "index" in the
// default layout) into a string.
func (r *defaultRenderer) RenderTemplate(name string, data any) (string, error) {
	tpl, err := r.ensureTemplates()
	if err != nil {
		return "", fmt.Errorf("renderer: load templates: %w", err)
	}

	target := tpl.Lookup(name + ".html.tmpl")
	if target == nil {
		target = tpl.Lookup(name)
	}
	if target == nil {
		return "", fmt.Errorf("renderer: template %q not found", name)
	}

	var builder strings.Builder
	if err := target.Execute(&builder, data); err != nil {
		return "", fmt.Errorf("renderer: execute %q: %w", name, err)
	}
	return builder.String(), nil
}
