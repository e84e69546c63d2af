package sanitize_test

import (
	"testing"

	"github.com/driftmail/driftmail/pkg/sanitize"
)

func TestText(t *testing.T) {
	testCases := []struct {
		name, input, want string
	}{
		{
			"empty",
			``,
			``,
		},
		{
			"plain",
			`plain text`,
			`plain text`,
		},
		{
			"tags become spaces",
			`<p>one</p><p>two</p>`,
			`one two`,
		},
		{
			"whitespace collapsed",
			"<div>\n\tspread   out\n</div>",
			`spread out`,
		},
		{
			"entities decoded",
			`<div>entities &amp; more</div>`,
			`entities & more`,
		},
		{
			"script body dropped",
			`safe<script>alert("nope")</script> text`,
			`safe text`,
		},
		{
			"style body dropped",
			`<style>.a { color: red; }</style>hello`,
			`hello`,
		},
		{
			"head skipped",
			`<html><head><title>Page</title></head><body>Body</body></html>`,
			`Body`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := sanitize.Text(tc.input)
			if got != tc.want {
				t.Errorf("input: %s\ngot : %q\nwant: %q", tc.input, got, tc.want)
			}
		})
	}
}
