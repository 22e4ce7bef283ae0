package llm

import (
	"regexp"
	"strings"
)

var (
	aliasPattern       = regexp.MustCompile(`__([^_]+?)__`)
	fencedSQLPattern   = regexp.MustCompile("(?i)```sql\\s*([\\s\\S]*?)```")
	selectStmtPattern  = regexp.MustCompile(`(?i)select[\s\S]*?;`)
	selectStartPattern = regexp.MustCompile(`(?i)select`)

	// Sentence markers some models leak into their output, each stuck to the
	// token before it.
	sentenceMarkerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\S+\s*<[|｜]begin[▁_]of[▁_]sentence[|｜]>`),
		regexp.MustCompile(`\S+\s*<[|｜]end[▁_]of[▁_]sentence[|｜]>`),
	}
)

// ExtractAlias returns the first __alias__ token in text.
func ExtractAlias(text string) (string, bool) {
	m := aliasPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractFencedSQL returns the trimmed body of the first ```sql fenced block.
func ExtractFencedSQL(text string) (string, bool) {
	m := fencedSQLPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExtractSelect returns the first SELECT ... ; statement in text, or if none
// is terminated, everything from the first SELECT to the end.
func ExtractSelect(text string) (string, bool) {
	if m := selectStmtPattern.FindString(text); m != "" {
		return strings.TrimSpace(m), true
	}
	loc := selectStartPattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(text[loc[0]:]), true
}

// Sanitize strips leaked sentence markers together with the token preceding
// each, and trims the result. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	for {
		cleaned := text
		for _, p := range sentenceMarkerPatterns {
			cleaned = p.ReplaceAllString(cleaned, "")
		}
		if cleaned == text {
			break
		}
		text = cleaned
	}
	return strings.TrimSpace(text)
}

// ExtractSQL pulls a statement out of a model reply: a fenced sql block wins,
// otherwise the first SELECT statement. The result is sanitized; an empty
// statement counts as no statement.
func ExtractSQL(text string) (string, bool) {
	sql, ok := ExtractFencedSQL(text)
	if !ok && strings.Contains(strings.ToUpper(text), "SELECT") {
		sql, ok = ExtractSelect(text)
	}
	if !ok {
		return "", false
	}

	sql = Sanitize(sql)
	if sql == "" {
		return "", false
	}
	return sql, true
}
