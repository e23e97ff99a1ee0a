package utils

import (
	"regexp"
	"strings"
)

var (
	// Characters invalid in filenames on most filesystems, plus quotes,
	// which would break a Content-Disposition header.
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	// Whitespace characters to normalize
	whitespaceChars = regexp.MustCompile(`[\r\n\t]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes a book title safe to use as a download filename.
// Path separators, quotes and control characters are stripped so the
// result can be embedded in a Content-Disposition header as-is.
func SanitizeFilename(filename string) string {
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = whitespaceChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)

	// Leave room for the extension; most filesystems cap names at 255.
	if len(filename) > 200 {
		filename = strings.TrimSpace(filename[:200])
	}

	if filename == "" {
		filename = "book"
	}
	return filename
}

// KnownBookExtensions contains file extensions accepted for catalog
// uploads. Compound extensions must come before their suffixes.
var KnownBookExtensions = []string{
	".fb2.zip",
	".fb2",
	".epub",
	".pdf",
	".txt",
	".docx",
	".doc",
	".mobi",
	".azw3",
	".azw",
	".djvu",
}

// BookExtension returns the recognized e-book extension of a filename,
// or "" if the file type is not accepted.
func BookExtension(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range KnownBookExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}
