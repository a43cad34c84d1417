package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-slug"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var anchorFallback = regexp.MustCompile(`[^a-z0-9]+`)

// Anchorize derives a stable anchor id from heading text: lowercase, spaces
// to hyphens, punctuation stripped. Already-normalized input passes through
// unchanged so anchors can be re-normalized idempotently.
func Anchorize(text string) string {
	normalized, err := slug.Normalize(text)
	if err == nil && normalized != "" {
		return normalized
	}
	// go-slug rejects some degenerate input; degrade to a plain transform.
	lowered := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(anchorFallback.ReplaceAllString(lowered, "-"), "-")
}

// anchorSet assigns unique anchors within one article. Repeated headings get
// a positional suffix ("-2", "-3") in document order.
type anchorSet struct {
	seen map[string]int
}

func newAnchorSet() *anchorSet {
	return &anchorSet{seen: map[string]int{}}
}

func (s *anchorSet) add(heading string) string {
	base := Anchorize(heading)
	s.seen[base]++
	if count := s.seen[base]; count > 1 {
		return fmt.Sprintf("%s-%d", base, count)
	}
	return base
}

// anchorTransformer mirrors the OutlineBuilder anchor assignment at render
// time: headings receive id attributes in document order and fragment links
// are rewritten to the normalized anchor form. Every engine built by
// newGoldmarkEngine installs it.
type anchorTransformer struct{}

func (t *anchorTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()
	anchors := newAnchorSet()

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			anchor := anchors.add(string(n.Text(source)))
			n.SetAttribute([]byte("id"), []byte(anchor))
		case *ast.Link:
			dest := string(n.Destination)
			if strings.HasPrefix(dest, "#") {
				n.Destination = []byte("#" + Anchorize(strings.TrimPrefix(dest, "#")))
			}
		}
		return ast.WalkContinue, nil
	})
}
