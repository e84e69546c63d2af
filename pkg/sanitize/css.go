package sanitize

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

// safeStyleProperties lists the inline CSS properties cleanStyle preserves.
// Everything else is dropped, notably positioning tricks that would let a
// message render outside its own pane.
var safeStyleProperties = map[string]struct{}{
	"align":            {},
	"background-color": {},
	"border":           {},
	"border-bottom":    {},
	"border-left":      {},
	"border-radius":    {},
	"border-right":     {},
	"border-top":       {},
	"box-sizing":       {},
	"clear":            {},
	"color":            {},
	"content":          {},
	"display":          {},
	"font-family":      {},
	"font-size":        {},
	"font-weight":      {},
	"height":           {},
	"line-height":      {},
	"margin":           {},
	"margin-bottom":    {},
	"margin-left":      {},
	"margin-right":     {},
	"margin-top":       {},
	"max-height":       {},
	"max-width":        {},
	"overflow":         {},
	"padding":          {},
	"padding-bottom":   {},
	"padding-left":     {},
	"padding-right":    {},
	"padding-top":      {},
	"table-layout":     {},
	"text-align":       {},
	"text-decoration":  {},
	"text-shadow":      {},
	"vertical-align":   {},
	"width":            {},
	"word-break":       {},
}

// styleState consumes one token and returns the state for the next.
type styleState func(b *strings.Builder, t *scanner.Token) styleState

// cleanStyle filters an inline style declaration down to the properties in
// safeStyleProperties. Returns empty if the declaration cannot be tokenized.
func cleanStyle(input string) string {
	b := &strings.Builder{}
	scan := scanner.New(input)
	state := styleProperty
	for {
		t := scan.Next()
		if t.Type == scanner.TokenEOF {
			return b.String()
		}
		if t.Type == scanner.TokenError {
			return ""
		}
		if state = state(b, t); state == nil {
			return ""
		}
	}
}

// styleProperty expects a property name, skipping leading whitespace.
func styleProperty(b *strings.Builder, t *scanner.Token) styleState {
	switch t.Type {
	case scanner.TokenS:
		return styleProperty
	case scanner.TokenIdent:
		if _, ok := safeStyleProperties[strings.ToLower(t.Value)]; ok {
			b.WriteString(t.Value)
			return styleCopy
		}
	}
	return styleSkip
}

// styleSkip discards tokens through the end of the current declaration.
func styleSkip(b *strings.Builder, t *scanner.Token) styleState {
	if t.Type == scanner.TokenChar && t.Value == ";" {
		return styleProperty
	}
	return styleSkip
}

// styleCopy emits tokens through the end of the current declaration.
func styleCopy(b *strings.Builder, t *scanner.Token) styleState {
	b.WriteString(t.Value)
	if t.Type == scanner.TokenChar && t.Value == ";" {
		return styleProperty
	}
	return styleCopy
}
