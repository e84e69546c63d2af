// Package sanitize renders untrusted message content safe for display.
package sanitize

import (
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// htmlPolicy extends the bluemonday UGC preset with the formatting email
// generators lean on. Style values have already been through cleanStyle, so
// whatever survives the filter is accepted here.
var htmlPolicy = bluemonday.UGCPolicy().
	AllowElements("center").
	AllowAttrs("style").Matching(regexp.MustCompile(".*")).Globally()

// HTML sanitizes untrusted markup while preserving allowed inline styling.
func HTML(input string) (string, error) {
	filtered, err := filterStyleAttrs(input)
	if err != nil {
		return "", err
	}
	return htmlPolicy.Sanitize(filtered), nil
}

// filterStyleAttrs rewrites start tags so that style attributes hold only
// the properties cleanStyle allows. Attributes emptied by the filter are
// dropped entirely.
func filterStyleAttrs(input string) (string, error) {
	var (
		b   strings.Builder
		tag []byte
	)
	z := html.NewTokenizer(strings.NewReader(input))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return b.String(), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				b.Write(z.Raw())
				continue
			}
			tag = append(tag[:0], '<')
			tag = append(tag, name...)
			for {
				key, val, more := z.TagAttr()
				value := string(val)
				isStyle := strings.EqualFold(string(key), "style")
				if isStyle {
					value = cleanStyle(value)
				}
				if !isStyle || value != "" {
					tag = append(tag, ' ')
					tag = append(tag, key...)
					tag = append(tag, '=', '"')
					tag = append(tag, html.EscapeString(value)...)
					tag = append(tag, '"')
				}
				if !more {
					break
				}
			}
			if tt == html.SelfClosingTagToken {
				tag = append(tag, '/')
			}
			tag = append(tag, '>')
			b.Write(tag)
		default:
			b.Write(z.Raw())
		}
	}
}
