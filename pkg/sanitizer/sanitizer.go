package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var strict = bluemonday.StrictPolicy()

// stripMarkup removes every tag and leaves the text content. bluemonday escapes
// entities on the way out, so they are decoded again.
func stripMarkup(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}

// SanitizeText is for single-line fields such as an appointment title.
func SanitizeText(input string) string {
	return Pipeline{stripMarkup, TrimAndNormalize}.Apply(input)
}

// SanitizeMultiline keeps line breaks but normalizes each line. Runs of blank
// lines collapse to one.
func SanitizeMultiline(input string) string {
	text := stripMarkup(strings.ReplaceAll(input, "\r\n", "\n"))

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = TrimAndNormalize(line)
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
