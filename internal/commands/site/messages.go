// Package sitecmd exposes the build pipeline through go-command messages so
// hosts can schedule or compose builds the same way the CLI triggers them.
package sitecmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const buildSiteMessageType = "patternbook.site.build"

// BuildSiteCommand triggers a full load → normalize → publish run over the
// configured source directory.
type BuildSiteCommand struct {
	// InputDir selects the directory holding Markdown article sources.
	InputDir string `json:"input_dir"`
	// Pattern optionally overrides the source glob (defaults to *.md).
	Pattern string `json:"pattern,omitempty"`
	// DryRun renders every page without writing output.
	DryRun bool `json:"dry_run,omitempty"`
}

// Type implements command.Message.
func (BuildSiteCommand) Type() string { return buildSiteMessageType }

// Validate ensures the input directory is present before handlers execute.
func (cmd BuildSiteCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.InputDir, validation.Required, validation.By(func(value any) error {
			if strings.TrimSpace(value.(string)) == "" {
				return validation.NewError("patternbook.site.build.input_required", "input directory is required")
			}
			return nil
		})),
	)
}
