package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Text reduces markup to its visible text for preview building. Tags are
// replaced with spaces, script and style bodies are dropped, and runs of
// whitespace collapse to a single space.
func Text(input string) string {
	var (
		b    strings.Builder
		skip int
	)
	z := html.NewTokenizer(strings.NewReader(input))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); hiddenElement(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); hiddenElement(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken, html.CommentToken, html.DoctypeToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// hiddenElement reports whether an element's text content never renders.
func hiddenElement(name []byte) bool {
	switch string(name) {
	case "head", "noscript", "script", "style":
		return true
	}
	return false
}
