// Package sanitize normalizes user-supplied identifiers at the server
// boundary and masks sensitive values before they reach a log line.
package sanitize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// DefaultName is substituted for empty or fully-stripped names.
	DefaultName = "anonymous"

	// DefaultRoom is substituted for empty room identifiers.
	DefaultRoom = "lobby"

	maxNameLen     = 32
	maxRoomLen     = 32
	maxFilenameLen = 256
	maxLogDataLen  = 64
)

var nameAllowed = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)

// Name trims, strips disallowed characters, and truncates a display name
// to 32 code units. Empty results become "anonymous". Idempotent.
func Name(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return DefaultName
	}
	cleaned = nameAllowed.ReplaceAllString(cleaned, "")
	if strings.TrimSpace(cleaned) == "" {
		return DefaultName
	}
	return TruncateRunes(cleaned, maxNameLen)
}

// Room trims, lowercases, and truncates a room id to 32 code units.
// Empty results become "lobby". Idempotent.
func Room(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return DefaultRoom
	}
	return TruncateRunes(cleaned, maxRoomLen)
}

// Filename truncates a filename to 256 code units. Receivers additionally
// strip path separators via Basename before saving.
func Filename(raw string) string {
	return TruncateRunes(raw, maxFilenameLen)
}

// Basename reduces a path to a separator-free base name safe to create
// under a download directory.
func Basename(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	base = strings.NewReplacer("/", "_", "\\", "_").Replace(base)
	if base == "" || base == "." || base == ".." {
		return "unnamed_file"
	}
	return TruncateRunes(base, maxFilenameLen)
}

// Token masks an authentication token for logging: first and last 4
// characters when longer than 8, otherwise "***".
func Token(token *string) string {
	if token == nil {
		return "None"
	}
	t := *token
	if t == "" {
		return ""
	}
	if len(t) <= 8 {
		return "***"
	}
	return fmt.Sprintf("%s***%s", t[:4], t[len(t)-4:])
}

// LogData truncates free-form values before logging and marks empties.
func LogData(data string) string {
	if data == "" {
		return "<empty>"
	}
	if len(data) > maxLogDataLen {
		return fmt.Sprintf("%s...<%d chars total>", data[:maxLogDataLen], len(data))
	}
	return data
}

// TruncateRunes cuts s to at most n code units.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
