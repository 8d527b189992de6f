package utils

import (
	"regexp"
	"strings"
)

var (
	invalidFilenameChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	consecutiveUnderscores = regexp.MustCompile(`_+`)
)

const maxFilenameLength = 100

// SanitizeFilename turns an arbitrary string (a host name, usually) into a safe path component.
// The result is never empty and at most 100 bytes long.
func SanitizeFilename(name string) string {
	s := invalidFilenameChars.ReplaceAllString(name, "_")
	s = consecutiveUnderscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_ ")
	if len(s) > maxFilenameLength {
		s = strings.Trim(s[:maxFilenameLength], "_ ")
	}
	if s == "" {
		return "untitled"
	}
	return s
}
