// Package stringutil holds small string helpers shared across packages.
package stringutil

import (
	"net/mail"
	"strings"
	"unicode"
)

// StringAddressList converts a list of addresses to a list of strings.
func StringAddressList(addrs []*mail.Address) []string {
	s := make([]string, len(addrs))
	for i, a := range addrs {
		if a != nil {
			s[i] = a.String()
		}
	}
	return s
}

// MakePathPrefixer returns a function prepending the configured base path to
// absolute URL paths, for use behind a reverse proxy.
func MakePathPrefixer(basePath string) func(path string) string {
	base := strings.Trim(basePath, "/")
	if base != "" {
		base = "/" + base
	}
	return func(path string) string {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return base + path
	}
}

// Preview collapses runs of whitespace in s to single spaces and truncates
// the result to at most max runes.
func Preview(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true // Strips leading whitespace.
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && n > 0 {
			// The separator only fits if the next rune does too.
			if n+2 > max {
				break
			}
			b.WriteRune(' ')
			n++
		}
		space = false
		if n+1 > max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
