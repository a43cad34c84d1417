// Package errs defines the error taxonomy shared across the build pipeline.
// Two failure kinds exist: read errors abort the whole build, broken anchor
// errors fail a single article while the rest of the build continues.
package errs

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// CategoryRead tags unreadable or missing source files.
	CategoryRead = goerrors.Category("read")
	// CategoryAnchor tags table-of-contents entries with no matching section.
	CategoryAnchor = goerrors.Category("anchor")
)

const (
	readErrorCode    = "READ_ERROR"
	brokenAnchorCode = "BROKEN_ANCHOR"
)

// WrapRead categorizes a filesystem failure as a fatal read error.
func WrapRead(err error, msg string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, CategoryRead, msg).
		WithTextCode(readErrorCode)
}

// WrapBrokenAnchor categorizes a dangling anchor reference. The message
// should carry the source file and the offending entry so reports point at
// the exact table-of-contents line.
func WrapBrokenAnchor(err error, msg string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, CategoryAnchor, msg).
		WithTextCode(brokenAnchorCode)
}

// IsReadError reports whether err (or anything it wraps) is a read error.
func IsReadError(err error) bool {
	return goerrors.HasCategory(err, CategoryRead)
}

// IsBrokenAnchor reports whether err (or anything it wraps) is a broken
// anchor error.
func IsBrokenAnchor(err error) bool {
	return goerrors.HasCategory(err, CategoryAnchor)
}
