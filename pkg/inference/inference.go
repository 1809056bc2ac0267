// Package inference derives contact fields from raw card text.
package inference

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// Whitespace includes Unicode space separators such as the ideographic space
// U+3000, and the separator controls that also terminate lines.
const (
	space    = `\s\p{Zs}\v\x{1c}-\x{1f}\x{85}\x{2028}\x{2029}`
	nonSpace = `[^` + space + `]`
)

var (
	reEmail   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	rePhone   = regexp.MustCompile(`\+?[0-9][0-9\-()` + space + `]{8,}`)
	reWebsite = regexp.MustCompile(`https?://` + nonSpace + `+|www\.` + nonSpace + `+`)

	reLineBreak = regexp.MustCompile(`\r\n|[\n\r\v\f\x{1c}-\x{1e}\x{85}\x{2028}\x{2029}]`)
)

// Lines splits text into trimmed, non-blank lines in their original order.
// CR, CRLF, LF and the Unicode line and paragraph separators all end a line.
func Lines(text string) []string {
	var lines []string
	for _, line := range reLineBreak.Split(text, -1) {
		line = trimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Infer fills the empty attributes of existing from text and never overwrites a
// populated one. The first line becomes the company, the second the name; email,
// phone and website come from the first match of their pattern anywhere in text.
func Infer(text string, existing types.CardFields) types.CardFields {
	fields := existing
	if trimSpace(text) == "" {
		return fields
	}

	lines := Lines(text)
	if len(lines) > 0 {
		fields.FillEmpty(types.FieldCompany, lines[0])
	}
	if len(lines) > 1 {
		fields.FillEmpty(types.FieldName, lines[1])
	}

	fields.FillEmpty(types.FieldEmail, firstMatch(reEmail, text))
	fields.FillEmpty(types.FieldPhone, firstMatch(rePhone, text))
	fields.FillEmpty(types.FieldWebsite, firstMatch(reWebsite, text))
	return fields
}

func firstMatch(re *regexp.Regexp, text string) string {
	return trimSpace(re.FindString(text))
}

// trimSpace also strips the information separators U+001C..U+001F, which
// unicode.IsSpace does not report.
func trimSpace(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
	})
}
