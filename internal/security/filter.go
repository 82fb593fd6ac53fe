// Package security sanitizes pipeline text before it leaves the
// service and validates raw feature input before the pipeline sees it.
package security

import (
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// maxTextLen caps any single sanitized string.
const maxTextLen = 10000

const truncationMarker = "... [TRUNCATED]"

var (
	whitespaceRE = regexp.MustCompile(`\s+`)

	// Pattern-matched toxicity terms get a neutral placeholder.
	toxicityRE = regexp.MustCompile(`(?i)\b(scam|fraud|stupid|idiot|damn|hell)\b`)

	// PII: email addresses, Sri Lankan phone numbers, NIC numbers.
	piiRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b` +
		`|\+94\d{9}\b` +
		`|\b0\d{9}\b` +
		`|\b\d{9}[vx]\b`)

	// A trailing "&..." without its ";" is an escape cut short by the
	// truncation point. Escaped text has no bare ampersands, so the match
	// is always a partial entity.
	danglingEntityRE = regexp.MustCompile(`&[a-zA-Z0-9#]*$`)
)

// Sanitize normalizes a text leaf: collapses whitespace, escapes
// markup, redacts toxicity and PII, and truncates overlong text.
// Idempotent: applying it twice equals applying it once (markup is
// unescaped before re-escaping so existing entities do not double).
func Sanitize(text string) string {
	text = strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
	text = html.EscapeString(html.UnescapeString(text))
	text = toxicityRE.ReplaceAllString(text, "[REDACTED]")
	text = piiRE.ReplaceAllString(text, "[PII_REDACTED]")
	if len(text) > maxTextLen {
		cut := danglingEntityRE.ReplaceAllString(text[:maxTextLen-len(truncationMarker)], "")
		text = cut + truncationMarker
	}
	return text
}

// FilterPayload recursively sanitizes every string leaf of a decoded
// JSON payload and stamps a filtering marker. It never fails visibly:
// an internal panic degrades to a placeholder payload.
func FilterPayload(payload map[string]any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("security: filter panic", zap.Any("panic", r))
			out = map[string]any{
				"error":     "response could not be safely rendered",
				"_security": "filtered",
			}
		}
	}()

	filtered := filterValue(payload).(map[string]any)
	filtered["_security"] = "filtered"
	return filtered
}

func filterValue(v any) any {
	switch val := v.(type) {
	case string:
		return Sanitize(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = filterValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = filterValue(item)
		}
		return out
	default:
		return v
	}
}

// SafeURL reports whether a link may be exposed: http/https URLs on an
// allow-listed domain, or bare relative paths.
func SafeURL(link string, allowedDomains []string) bool {
	if link == "" {
		return true
	}
	if strings.HasPrefix(link, "/") && !strings.HasPrefix(link, "//") {
		return true
	}
	lower := strings.ToLower(link)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}

	rest := lower[strings.Index(lower, "://")+3:]
	host := rest
	for _, sep := range []string{"/", "?", "#"} {
		if i := strings.Index(host, sep); i >= 0 {
			host = host[:i]
		}
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}

	for _, domain := range allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
