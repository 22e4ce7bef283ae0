package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a request value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Field       string // Name of the field that failed the check
	Value       string // The value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in a request-supplied value that is used as a lookup key, such as a tenant
// id or a table alias override.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	result := CheckValueForInjection("company", "acme")
//	// result == nil
//
//	result = CheckValueForInjection("company", "acme' OR '1'='1")
//	// result.IsSQLi == true
func CheckValueForInjection(field, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Field:       field,
			Value:       value,
		}
	}

	return nil
}
