package sitecmd

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"

	"github.com/patternbook/patternbook/internal/commands"
	"github.com/patternbook/patternbook/internal/logging"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

const buildOperation = "site.build"

// ErrArticlesFailed is returned when the build completed but one or more
// articles failed with broken anchors. Unaffected articles were still
// published; callers should exit non-zero.
var ErrArticlesFailed = errors.New("site command: one or more articles failed")

var _ command.Commander[BuildSiteCommand] = (*BuildSiteHandler)(nil)

// BuildSiteHandler orchestrates site builds via the shared command handler
// foundation.
type BuildSiteHandler struct {
	inner *commands.Handler[BuildSiteCommand]

	// Report holds the outcome of the most recent successful execution so
	// CLI callers can print a summary.
	Report *interfaces.BuildReport
}

// NewBuildSiteHandler creates a handler bound to the supplied site builder.
func NewBuildSiteHandler(builder interfaces.SiteBuilder, logger interfaces.Logger, opts ...commands.HandlerOption[BuildSiteCommand]) *BuildSiteHandler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = logging.NoOp()
	}

	handler := &BuildSiteHandler{}

	exec := func(ctx context.Context, msg BuildSiteCommand) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		report, err := builder.Build(ctx, interfaces.BuildParams{
			InputDir: msg.InputDir,
			Pattern:  msg.Pattern,
			DryRun:   msg.DryRun,
		})
		if err != nil {
			return err
		}
		handler.Report = report

		logging.WithFields(baseLogger, map[string]any{
			"build_id":      report.BuildID.String(),
			"documents":     report.Documents,
			"articles":      report.Articles,
			"discarded":     report.Discarded,
			"pages_built":   report.PagesBuilt,
			"pages_skipped": report.PagesSkipped,
			"pages_failed":  report.PagesFailed,
			"dry_run":       report.DryRun,
		}).Info("site.command.build.completed")

		if report.PagesFailed > 0 {
			return ErrArticlesFailed
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[BuildSiteCommand]{
		commands.WithLogger[BuildSiteCommand](baseLogger),
		commands.WithOperation[BuildSiteCommand](buildOperation),
	}
	handlerOpts = append(handlerOpts, opts...)

	handler.inner = commands.NewHandler(exec, handlerOpts...)
	return handler
}

// Execute implements command.Commander.
func (h *BuildSiteHandler) Execute(ctx context.Context, msg BuildSiteCommand) error {
	return h.inner.Execute(ctx, msg)
}
