package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SiteBuilder runs the full pipeline: load sources, normalize duplicates,
// publish the static site.
type SiteBuilder interface {
	Build(ctx context.Context, params BuildParams) (*BuildReport, error)
}

// BuildParams carries per-invocation overrides for a site build.
type BuildParams struct {
	// InputDir overrides the configured source directory.
	InputDir string
	// Pattern overrides the source file glob.
	Pattern string
	// DryRun renders without writing any output.
	DryRun bool
}

// BuildReport aggregates the outcome of one build invocation.
type BuildReport struct {
	BuildID       uuid.UUID
	Documents     int
	Articles      int
	Discarded     int
	PagesBuilt    int
	PagesSkipped  int
	PagesFailed   int
	Duration      time.Duration
	DryRun        bool
	// Failures lists per-article errors (broken anchors) that did not stop
	// the build. A non-empty list means the process should exit non-zero.
	Failures []string
}
