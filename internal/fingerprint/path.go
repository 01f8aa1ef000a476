package fingerprint

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Placeholder replaces variable path segments.
const Placeholder = ":id"

// NormalizePath strips the query string and replaces numeric, UUID and long
// hex segments so that /contacts/123 and /contacts/456 collapse together.
func NormalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if isVariable(seg) {
			segments[i] = Placeholder
		}
	}

	out := strings.Join(segments, "/")
	if len(out) > 1 {
		out = strings.TrimRight(out, "/")
	}
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

func isVariable(seg string) bool {
	if seg == "" {
		return false
	}
	if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
		return true
	}
	if len(seg) == 36 || len(seg) == 32 {
		if _, err := uuid.Parse(seg); err == nil {
			return true
		}
	}
	return len(seg) >= 16 && isHex(seg)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
