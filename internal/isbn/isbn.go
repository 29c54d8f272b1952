package isbn

import (
	"strconv"
	"strings"
)

// Clean strips hyphens and spaces and upper-cases a trailing x
func Clean(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	isbn = strings.NewReplacer("-", "", " ", "", "‐", "", "–", "").Replace(isbn)
	return strings.ToUpper(isbn)
}

// Valid10 reports whether s is an ISBN-10 with a correct check digit
func Valid10(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 0
	for i, c := range s {
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c == 'X' && i == 9:
			d = 10
		default:
			return false
		}
		sum += d * (10 - i)
	}
	return sum%11 == 0
}

// Valid13 reports whether s is a 978/979 ISBN-13 with a correct check digit
func Valid13(s string) bool {
	if len(s) != 13 || !(strings.HasPrefix(s, "978") || strings.HasPrefix(s, "979")) {
		return false
	}
	sum := 0
	for i, c := range s {
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return sum%10 == 0
}

// Normalize cleans s and returns it as a valid ISBN-13.
// Returns an empty string if s is not a valid ISBN-10 or ISBN-13.
func Normalize(s string) string {
	s = Clean(s)
	switch {
	case Valid13(s):
		return s
	case Valid10(s):
		return To13(s)
	default:
		return ""
	}
}

// To13 converts an ISBN-10 to ISBN-13 by prepending 978 and computing the check digit.
// Returns an empty string if the input is not a valid ISBN-10.
func To13(isbn10 string) string {
	if len(isbn10) != 10 {
		return ""
	}
	base := "978" + isbn10[:9]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10
	return base + strconv.Itoa(check)
}

// To10 converts a 978-prefixed ISBN-13 to ISBN-10.
// Returns an empty string if the input is not a convertible ISBN-13.
func To10(isbn13 string) string {
	if len(isbn13) != 13 || !strings.HasPrefix(isbn13, "978") {
		return ""
	}
	base := isbn13[3:12]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		sum += d * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return base + "X"
	}
	return base + strconv.Itoa(check)
}
