package util

import (
	"errors"
	"path/filepath"
	"strings"
)

// maxFileNameRunes bounds stored names. Extension uploads often carry the
// article headline as the file name, which can run very long.
const maxFileNameRunes = 160

// SanitizeFileName removes path separators, rejects traversal patterns, and
// truncates oversized names while keeping the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	if runes := []rune(s); len(runes) > maxFileNameRunes {
		ext := filepath.Ext(s)
		if len(ext) >= maxFileNameRunes {
			ext = ""
		}
		keep := maxFileNameRunes - len([]rune(ext))
		s = string(runes[:keep]) + ext
	}
	return s, nil
}
