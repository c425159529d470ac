package logging

import (
	"log/slog"
	"strings"
)

// sensitiveKeyPatterns are substrings of attribute keys whose values are
// never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"credential",
	"cookie",
}

// RedactedValue replaces sensitive values.
const RedactedValue = "***REDACTED***"

// Redact returns a with sensitive string values replaced. Groups are walked
// recursively. A value starting with "Bearer " is redacted whatever its key.
func Redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		if IsSensitiveKey(a.Key) || strings.HasPrefix(v, "Bearer ") {
			return slog.String(a.Key, RedactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = Redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey reports whether key names something that must not be logged.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}
