// Package logging holds helpers that keep secrets and oversized payloads
// out of structured log fields.
package logging

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQueryLogLength is the maximum length of a synthesized query to log.
	MaxQueryLogLength = 200
	// MaxQuestionLogLength bounds user questions and LLM replies in logs.
	MaxQuestionLogLength = 120
	// tokenPreviewLength is how much of a continuation token is logged.
	tokenPreviewLength = 8
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx in key/value DSNs and ;password=xxx in JDBC property lists
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Provider keys echoed back in LLM error bodies (sk-..., sk-ant-...).
	providerKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9-_]{16,}`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s;]+`)
)

// SanitizeConnectionString removes credentials from a datasource URL,
// including JDBC URLs with ;password= properties.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeError sanitizes driver and LLM provider errors before logging.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeQuery truncates a SQL statement for logging and removes
// credential-looking literals.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := TruncateString(collapseWhitespace(query), MaxQueryLogLength)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return sanitized
}

// SanitizeQuestion shortens free text (questions, model replies) to one line.
func SanitizeQuestion(text string) string {
	return TruncateString(collapseWhitespace(text), MaxQuestionLogLength)
}

// TokenPreview returns a short prefix of an opaque token. Whole continuation
// tokens are never logged.
func TokenPreview(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= tokenPreviewLength {
		return RedactedText
	}
	return token[:tokenPreviewLength] + "..."
}

// TruncateString truncates s to at most maxLen bytes, without splitting a
// UTF-8 sequence, and adds an ellipsis if anything was cut.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
