package handler

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxStoredNameLength = 120

// sanitizeFilename reduces a client-supplied upload name to a safe base name.
// Directory components from any platform are dropped and control characters
// removed; an empty result becomes "upload".
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '/' || r == ':' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	if r := []rune(name); len(r) > maxStoredNameLength {
		ext := filepath.Ext(name)
		name = string(r[:maxStoredNameLength-len([]rune(ext))]) + ext
	}
	return name
}
