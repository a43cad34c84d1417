// Package markdown discovers Markdown article sources, splits multi-draft
// files into individual documents, and extracts the structural outline
// (sections, anchors, code listings, intra-article links) used by the rest
// of the build pipeline.
package markdown
