// internal/app/system/normalize/normalize.go

// Package normalize provides canonical forms for user-supplied identity
// fields. Stores normalize on write so lookups never depend on how a value
// was typed.
package normalize

import "strings"

// Phone canonicalizes a phone number: digits and a leading "+" only.
// "09 1234-5678" and "0912345678" normalize to the same value.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Name trims surrounding whitespace and collapses interior runs of
// whitespace to single spaces. Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Code canonicalizes an institution join code: trimmed and uppercased.
func Code(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
