// Package normalizer deduplicates article drafts. Source files in this
// corpus often carry several near-identical revisions of the same article;
// the normalizer keeps the most complete variant per title and reports the
// rest without touching the sources.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/patternbook/patternbook/internal/logging"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

// Config tunes duplicate detection.
type Config struct {
	// Logger receives one entry per discarded draft. Optional.
	Logger interfaces.Logger
}

// Normalizer selects the best draft among duplicates of the same article.
type Normalizer struct {
	logger interfaces.Logger
}

// Result reports what a normalization pass kept and dropped.
type Result struct {
	Articles  []*interfaces.Article
	Discarded []Discard
}

// Discard identifies a dropped draft and the variant that displaced it.
type Discard struct {
	SourcePath string
	Revision   int
	Title      string
	KeptPath   string
	KeptRev    int
}

// New constructs a Normalizer.
func New(cfg Config) *Normalizer {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Normalizer{logger: logger}
}

// Normalize groups articles by title and retains, per group, the variant
// with the most non-empty sections; ties break by longest total body
// length, then by first-encountered order. Distinct bodies under the same
// title are not duplicates and all survive. The operation is idempotent:
// normalizing its own output discards nothing further.
func (n *Normalizer) Normalize(articles []*interfaces.Article) Result {
	groups := map[string][]candidate{}
	var titles []string
	for i, article := range articles {
		if article == nil {
			continue
		}
		key := strings.TrimSpace(article.Title)
		if _, ok := groups[key]; !ok {
			titles = append(titles, key)
		}
		groups[key] = append(groups[key], candidate{article: article, order: i})
	}

	result := Result{}

	for _, title := range titles {
		candidates := groups[title]

		// Variants with identical normalized bodies collapse to one; equal
		// hashes mean the drafts differ only in whitespace.
		byHash := map[string][]candidate{}
		var hashes []string
		for _, cand := range candidates {
			hash := contentHash(cand.article)
			if _, ok := byHash[hash]; !ok {
				hashes = append(hashes, hash)
			}
			byHash[hash] = append(byHash[hash], cand)
		}

		kept := make([]candidate, 0, len(hashes))
		var dropped []candidate
		for _, hash := range hashes {
			group := byHash[hash]
			best := pickBest(group)
			kept = append(kept, best)
			for _, cand := range group {
				if cand.order != best.order {
					dropped = append(dropped, cand)
				}
			}
		}

		// Different hashes under one title are still duplicates when they are
		// successive drafts: keep the single best variant per title.
		if len(kept) > 1 {
			best := pickBest(kept)
			for _, cand := range kept {
				if cand.order != best.order {
					dropped = append(dropped, cand)
				}
			}
			kept = []candidate{best}
		}

		winner := kept[0]
		result.Articles = append(result.Articles, winner.article)
		for _, cand := range dropped {
			discard := Discard{
				SourcePath: cand.article.SourcePath,
				Revision:   cand.article.Revision,
				Title:      title,
				KeptPath:   winner.article.SourcePath,
				KeptRev:    winner.article.Revision,
			}
			result.Discarded = append(result.Discarded, discard)
			logging.WithArticleContext(n.logger, discard.SourcePath, winner.article.Slug, discard.Revision).
				Info("normalizer.draft.discarded",
					"kept_path", discard.KeptPath,
					"kept_revision", discard.KeptRev,
				)
		}
	}

	sort.SliceStable(result.Articles, func(i, j int) bool {
		return result.Articles[i].Slug < result.Articles[j].Slug
	})

	return result
}

func contentHash(article *interfaces.Article) string {
	collapsed := strings.Join(strings.Fields(string(article.Body)), " ")
	sum := sha256.Sum256([]byte(collapsed))
	return hex.EncodeToString(sum[:])
}

type candidate struct {
	article *interfaces.Article
	order   int
}

// pickBest applies the retention policy: most non-empty sections, then
// longest total body, then earliest encounter.
func pickBest(group []candidate) candidate {
	best := group[0]
	for _, cand := range group[1:] {
		if better(cand.article, cand.order, best.article, best.order) {
			best = cand
		}
	}
	return best
}

func better(a *interfaces.Article, aOrder int, b *interfaces.Article, bOrder int) bool {
	aSections, bSections := a.NonEmptySections(), b.NonEmptySections()
	if aSections != bSections {
		return aSections > bSections
	}
	aLen, bLen := a.BodyLength(), b.BodyLength()
	if aLen != bLen {
		return aLen > bLen
	}
	return aOrder < bOrder
}
