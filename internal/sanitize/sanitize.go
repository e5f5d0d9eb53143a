// package sanitize strips markup from user-entered text before it is stored.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// dropped elements lose their content as well as their tags.
var dropped = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"object":   true,
	"noscript": true,
	"template": true,
}

// StripHTML removes every tag (no tags are allowed), drops script-like element bodies,
// unescapes entities, and trims surrounding whitespace. Unescaped text is stripped again
// until nothing changes, so encoded markup cannot come back out as tags.
func StripHTML(s string) string {
	out := strings.TrimSpace(s)
	for strings.ContainsAny(out, "<&") {
		next := stripOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// stripOnce is a single tokenizer pass. Each changing pass shortens the text.
func stripOnce(s string) string {
	var (
		b     strings.Builder
		skip  int
		token = html.NewTokenizer(strings.NewReader(s))
	)

	for {
		switch token.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := token.TagName()
			if dropped[string(name)] {
				skip++
			}
		case html.EndTagToken:
			name, _ := token.TagName()
			if dropped[string(name)] && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(token.Text())
			}
		}
	}
}

// Text sanitizes s and caps it at max runes (0 means no cap).
func Text(s string, max int) string {
	out := StripHTML(s)
	if max > 0 {
		if r := []rune(out); len(r) > max {
			out = strings.TrimSpace(string(r[:max]))
		}
	}
	return out
}
