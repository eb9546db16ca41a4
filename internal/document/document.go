// Package document validates the identity documents accepted at checkout:
// the national ID (DNI) with its weighted check digit, the foreign
// resident card and the passport.
package document

import (
	"strings"
	"unicode"
)

type Type string

const (
	TypeNationalID Type = "NATIONAL_ID"
	TypeForeignID  Type = "FOREIGN_ID"
	TypePassport   Type = "PASSPORT"
)

// Known reports whether t is one of the accepted document types.
func Known(t Type) bool {
	switch t {
	case TypeNationalID, TypeForeignID, TypePassport:
		return true
	}
	return false
}

// nationalIDWeights multiply the eight DNI digits positionally before the
// mod-11 check.
var nationalIDWeights = [8]int{3, 2, 7, 6, 5, 4, 3, 2}

// Normalize strips whitespace and punctuation, keeping only letters and
// digits. Normalizing an already-normalized number is a no-op.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
}

// Validate normalizes raw and checks it against the rules for the given
// document type. Unknown types are invalid.
func Validate(t Type, raw string) bool {
	n := Normalize(raw)
	switch t {
	case TypeNationalID:
		return validNationalID(n)
	case TypeForeignID:
		return len(n) == 9 && allDigits(n)
	case TypePassport:
		return len(n) >= 6 && len(n) <= 12 && allAlphanumeric(n)
	}
	return false
}

// validNationalID checks the eight-digit DNI: the weighted digit sum mod 11
// maps to an expected check value (the remainder itself below 2, otherwise
// 11 minus the remainder) which must equal the last digit.
func validNationalID(n string) bool {
	if len(n) != 8 || !allDigits(n) {
		return false
	}
	sum := 0
	for i, r := range n {
		sum += int(r-'0') * nationalIDWeights[i]
	}
	rem := sum % 11
	expected := rem
	if rem >= 2 {
		expected = 11 - rem
	}
	return expected == int(n[7]-'0')
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func allAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return s != ""
}
