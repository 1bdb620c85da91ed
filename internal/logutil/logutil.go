// Package logutil keeps shopper data out of logs and names artifacts.
package logutil

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// sensitiveMarkers are substrings of normalized field names that carry
// shopper PII or credentials.
var sensitiveMarkers = []string{"token", "secret", "password", "email", "phone", "street", "cookie"}

// IsSensitiveLogField reports whether key names personal or secret data.
// Case, dashes and underscores are ignored.
func IsSensitiveLogField(key string) bool {
	k := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	if k == "authorization" {
		return true
	}
	for _, m := range sensitiveMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

// FormatFieldsForLog renders submitted form fields as sorted key="value"
// pairs with sensitive values replaced by [REDACTED].
func FormatFieldsForLog(fields map[string]string) string {
	if len(fields) == 0 {
		return "{}"
	}
	keys := slices.Sorted(maps.Keys(fields))
	var b strings.Builder
	for i, k := range keys {
		v := fields[k]
		if IsSensitiveLogField(k) {
			v = "[REDACTED]"
		}
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s=%q", strings.ToLower(k), v)
	}
	return b.String()
}

// TruncateForLog flattens value to one line and cuts it at maxChars.
// maxChars <= 0 disables the cut.
func TruncateForLog(value string, maxChars int) string {
	line := strings.ReplaceAll(strings.TrimSpace(value), "\n", `\n`)
	if maxChars > 0 && len(line) > maxChars {
		return line[:maxChars] + "... [truncated]"
	}
	return line
}

// Slug turns a human-readable name into a file-safe token: whitespace runs
// become '-', path separators and other unsafe runes are dropped.
func Slug(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
			lastDash = r == '-'
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "action"
	}
	return out
}
