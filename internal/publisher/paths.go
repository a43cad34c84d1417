package publisher

import (
	"path"
	"strings"
)

// articleOutputPath maps an article slug onto its published page location.
// Every article gets a directory-style URL (slug/index.html) so anchors stay
// stable when the site is served from a plain file server.
func articleOutputPath(slug string) string {
	clean := strings.Trim(strings.TrimSpace(slug), "/")
	if clean == "" {
		return "index.html"
	}
	return path.Join(clean, "index.html")
}

// articleRoute is the canonical site-relative route for an article.
func articleRoute(slug string) string {
	clean := strings.Trim(strings.TrimSpace(slug), "/")
	if clean == "" {
		return "/"
	}
	return "/" + clean + "/"
}
