package sql

import (
	"regexp"
	"strings"
)

// SubstituteTable replaces whole-word, case-insensitive occurrences of
// tableName in sqlQuery with binding. Occurrences that are part of a longer
// identifier (sales inside sales_detail, or a qualified x.sales) or that sit
// inside quotes ("sales", [sales], `sales`, 'sales') are left alone. An empty
// binding returns the input unchanged.
func SubstituteTable(sqlQuery, tableName, binding string) string {
	if tableName == "" || binding == "" {
		return sqlQuery
	}

	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(tableName))

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(sqlQuery, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && !isBoundaryBefore(sqlQuery[start-1]) {
			continue
		}
		if end < len(sqlQuery) && (isIdentByte(sqlQuery[end]) || isQuoteByte(sqlQuery[end])) {
			continue
		}
		b.WriteString(sqlQuery[last:start])
		b.WriteString(binding)
		last = end
	}
	b.WriteString(sqlQuery[last:])
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c >= 0x80
}

func isQuoteByte(c byte) bool {
	switch c {
	case '"', '`', '\'', '[', ']':
		return true
	}
	return false
}

func isBoundaryBefore(c byte) bool {
	return !isIdentByte(c) && !isQuoteByte(c) && c != '.'
}

// Wrap applies the configured pre and post fragments to a statement.
// A trailing semicolon is removed before post is appended.
func Wrap(sqlQuery, pre, post string) string {
	out := sqlQuery
	if pre != "" {
		out = pre + out
	}
	if post != "" {
		out = strings.TrimSpace(out)
		out = strings.TrimSuffix(out, ";")
		out += post
	}
	return out
}
