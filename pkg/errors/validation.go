package errors

import (
	"strings"
	"unicode"
)

const maxPathLength = 500

// ValidateModuleID validates a lazy-unit identifier as reported by an
// instrumented module. Identifiers are build-relative paths such as
// "src/pages/Browse/index.tsx"; a single leading slash is tolerated.
//
// Validation rules:
//   - Identifier cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes
func ValidateModuleID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "module id cannot be empty")
	}
	if err := checkPathChars(strings.TrimPrefix(id, "/")); err != nil {
		return New(ErrCodeInvalidInput, "invalid module id %q: %s", id, UserMessage(err))
	}
	return nil
}

// ValidateHref validates a build output path before it is emitted into
// markup or a Link header. Hrefs come from the manifest and are relative to
// the public base ("assets/index-BX1.js").
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
//   - No characters that would break out of an attribute or a Link target (<>"')
func ValidateHref(href string) error {
	if href == "" {
		return New(ErrCodeInvalidPath, "href cannot be empty")
	}
	if strings.HasPrefix(href, "/") {
		return New(ErrCodeInvalidPath, "href must be relative (cannot start with /)")
	}
	if strings.ContainsAny(href, "<>\"' ") {
		return New(ErrCodeInvalidPath, "href contains markup characters: %q", href)
	}
	return checkPathChars(href)
}

func checkPathChars(path string) error {
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
