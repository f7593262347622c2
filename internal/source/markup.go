package source

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var markupPattern = regexp.MustCompile(`<[a-zA-Z/!][^>]*>|&[a-zA-Z]+;|&#[0-9]+;`)

// HasMarkup reports whether s looks like an HTML fragment
func HasMarkup(s string) bool {
	return markupPattern.MatchString(s)
}

// StripMarkup flattens an HTML fragment to its visible text. Script and
// style bodies are dropped, entities decoded, whitespace collapsed. Plain
// text comes back unchanged.
func StripMarkup(s string) string {
	if !HasMarkup(s) {
		return s
	}

	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var text strings.Builder
	inScript := false
	inStyle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return strings.Join(strings.Fields(text.String()), " ")
			}
			// malformed beyond what the tokenizer tolerates
			return s

		case html.StartTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			}

		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			}

		case html.TextToken:
			if inScript || inStyle {
				continue
			}
			if chunk := strings.TrimSpace(tokenizer.Token().Data); chunk != "" {
				text.WriteString(chunk)
				text.WriteByte(' ')
			}
		}
	}
}
