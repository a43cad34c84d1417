package markdown

import (
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/patternbook/patternbook/pkg/interfaces"
)

// articleNamespace seeds deterministic article IDs so repeated builds assign
// the same ID to the same slug.
var articleNamespace = uuid.MustParse("7f3d9a52-1c8e-48b6-9f0a-2d4e8b7c6a10")

// OutlineBuilder turns parsed documents into structured articles: sections
// with stable anchors, code listings, and the intra-article links that act as
// table-of-contents entries.
type OutlineBuilder struct {
	engine goldmark.Markdown
}

// NewOutlineBuilder constructs a builder with a parse-only goldmark engine.
func NewOutlineBuilder() *OutlineBuilder {
	return &OutlineBuilder{
		engine: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// BuildArticle assembles an Article from a single document draft. Heading
// anchors are derived from heading text and deduplicated in document order,
// so the builder and the page renderer always agree on anchor ids.
func (b *OutlineBuilder) BuildArticle(doc *interfaces.Document) (*interfaces.Article, error) {
	root := b.engine.Parser().Parse(text.NewReader(doc.Body))

	var (
		sections []interfaces.Section
		toc      []interfaces.TOCEntry
		current  *interfaces.Section
		preamble strings.Builder
		anchors  = newAnchorSet()
	)

	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(current.Body)
			sections = append(sections, *current)
			current = nil
		}
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			flush()
			headingText := string(heading.Text(doc.Body))
			current = &interfaces.Section{
				Heading: headingText,
				Level:   heading.Level,
				Anchor:  anchors.add(headingText),
			}
			continue
		}

		listings := collectListings(node, doc.Body)
		body := blockText(node, doc.Body)

		if current == nil {
			if body != "" {
				if preamble.Len() > 0 {
					preamble.WriteString("\n")
				}
				preamble.WriteString(body)
			}
			continue
		}

		current.Listings = append(current.Listings, listings...)
		if body != "" {
			if current.Body != "" {
				current.Body += "\n"
			}
			current.Body += body
		}
	}
	flush()

	// Intra-article links double as table-of-contents entries.
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := node.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(link.Destination)
		if !strings.HasPrefix(dest, "#") {
			return ast.WalkContinue, nil
		}
		toc = append(toc, interfaces.TOCEntry{
			Label:  string(link.Text(doc.Body)),
			Anchor: strings.TrimPrefix(dest, "#"),
		})
		return ast.WalkContinue, nil
	})

	title := articleTitle(doc, sections)
	slugValue := articleSlug(doc, title)

	return &interfaces.Article{
		ID:           uuid.NewSHA1(articleNamespace, []byte(slugValue)),
		Slug:         slugValue,
		Title:        title,
		Summary:      doc.FrontMatter.Summary,
		Sections:     sections,
		TOC:          toc,
		SourcePath:   doc.FilePath,
		Revision:     doc.Revision,
		FrontMatter:  doc.FrontMatter,
		Body:         doc.Body,
		LastModified: doc.LastModified,
		Checksum:     doc.Checksum,
	}, nil
}

// BuildArticles maps each document draft onto an article, preserving order.
func (b *OutlineBuilder) BuildArticles(docs []*interfaces.Document) ([]*interfaces.Article, error) {
	articles := make([]*interfaces.Article, 0, len(docs))
	for _, doc := range docs {
		article, err := b.BuildArticle(doc)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func articleTitle(doc *interfaces.Document, sections []interfaces.Section) string {
	if title := strings.TrimSpace(doc.FrontMatter.Title); title != "" {
		return title
	}
	for _, section := range sections {
		if section.Level == 1 {
			return section.Heading
		}
	}
	if len(sections) > 0 {
		return sections[0].Heading
	}
	base := path.Base(doc.FilePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

func articleSlug(doc *interfaces.Document, title string) string {
	if s := strings.TrimSpace(doc.FrontMatter.Slug); s != "" {
		return Anchorize(s)
	}
	return Anchorize(title)
}

// blockText extracts the raw markdown text of a block node, recursing into
// containers (lists, blockquotes) whose own Lines() span is empty. Code
// blocks are excluded here; they surface as CodeListings instead.
func blockText(node ast.Node, source []byte) string {
	switch node.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return ""
	}

	if node.Type() == ast.TypeBlock && node.Lines().Len() > 0 {
		var builder strings.Builder
		for i := 0; i < node.Lines().Len(); i++ {
			segment := node.Lines().At(i)
			builder.Write(segment.Value(source))
		}
		return strings.TrimRight(builder.String(), "\n")
	}

	var parts []string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if part := blockText(child, source); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

// collectListings gathers fenced and indented code blocks under node,
// preserving their literal text.
func collectListings(node ast.Node, source []byte) []interfaces.CodeListing {
	var listings []interfaces.CodeListing

	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch block := n.(type) {
		case *ast.FencedCodeBlock:
			listings = append(listings, interfaces.CodeListing{
				Language: string(block.Language(source)),
				Code:     blockLines(block, source),
			})
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			listings = append(listings, interfaces.CodeListing{
				Code: blockLines(block, source),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return listings
}

func blockLines(node ast.Node, source []byte) string {
	var builder strings.Builder
	for i := 0; i < node.Lines().Len(); i++ {
		segment := node.Lines().At(i)
		builder.Write(segment.Value(source))
	}
	return builder.String()
}
