package interfaces

import (
	"time"

	"github.com/google/uuid"
)

// Article is a single conceptual document assembled from a Markdown draft:
// a slug identifier, a title, and an ordered sequence of Sections. Articles
// are constructed once per build and discarded after publishing.
type Article struct {
	ID           uuid.UUID
	Slug         string
	Title        string
	Summary      string
	Sections     []Section
	TOC          []TOCEntry
	SourcePath   string
	Revision     int
	FrontMatter  FrontMatter
	Body         []byte
	LastModified time.Time
	Checksum     []byte
}

// Section is a heading-delimited subdivision of an Article. The anchor id is
// derived from the heading text (lowercase, spaces to hyphens) and is unique
// within the Article.
type Section struct {
	Heading  string
	Level    int
	Anchor   string
	Body     string
	Listings []CodeListing
}

// CodeListing is a literal code block attached to a Section. The pipeline
// treats it as opaque text: it is never parsed or executed.
type CodeListing struct {
	Language string
	Code     string
}

// TOCEntry records an intra-article link discovered in the source, typically
// a table-of-contents item pointing at a section anchor. Every entry must
// resolve to an existing Section before the Article can be published.
type TOCEntry struct {
	Label  string
	Anchor string
}

// NonEmptySections counts sections that carry body text or code listings.
// The normalizer uses this as the primary signal when ranking duplicate
// drafts of the same article.
func (a *Article) NonEmptySections() int {
	count := 0
	for _, section := range a.Sections {
		if section.Body != "" || len(section.Listings) > 0 {
			count++
		}
	}
	return count
}

// BodyLength reports the total length of all section bodies and listings,
// used as the tie breaker between duplicate drafts.
func (a *Article) BodyLength() int {
	total := 0
	for _, section := range a.Sections {
		total += len(section.Body)
		for _, listing := range section.Listings {
			total += len(listing.Code)
		}
	}
	return total
}

// SectionByAnchor returns the section matching the supplied anchor id.
func (a *Article) SectionByAnchor(anchor string) (*Section, bool) {
	for i := range a.Sections {
		if a.Sections[i].Anchor == anchor {
			return &a.Sections[i], true
		}
	}
	return nil, false
}
