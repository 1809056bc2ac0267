package pdftext

import (
	"strconv"
	"strings"
)

// TJ adjustments below this (thousandths of an em) are rendered as a space
const kerningSpace = -200

type tokenKind int

const (
	tokOperand tokenKind = iota
	tokString
	tokArrayStart
	tokArrayEnd
	tokOperator
)

type token struct {
	kind tokenKind
	text string
}

// TextFromContentStream returns the text shown by a page content stream.
// Line breaks come from T*, ' and ", from Td and TD with a vertical offset,
// and from the end of each text object.
func TextFromContentStream(data []byte) string {
	var (
		sb       strings.Builder
		operands []token
		array    []token
		inArray  bool
	)
	newline := func() {
		sb.WriteByte('\n')
	}

	sc := scanner{data: data}
	for {
		tok, ok := sc.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokArrayStart:
			inArray, array = true, array[:0]
			continue
		case tokArrayEnd:
			inArray = false
			operands = append(operands, token{kind: tokArrayEnd})
			continue
		case tokOperator:
		default:
			if inArray {
				array = append(array, tok)
			} else {
				operands = append(operands, tok)
			}
			continue
		}

		switch tok.text {
		case "Tj":
			sb.WriteString(lastString(operands))
		case "'", `"`:
			newline()
			sb.WriteString(lastString(operands))
		case "TJ":
			for _, el := range array {
				if el.kind == tokString {
					sb.WriteString(el.text)
				} else if v, err := strconv.ParseFloat(el.text, 64); err == nil && v < kerningSpace {
					sb.WriteByte(' ')
				}
			}
		case "T*", "ET":
			newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].text != "0" {
				newline()
			} else {
				sb.WriteByte(' ')
			}
		}
		operands = operands[:0]
	}
	return normalize(sb.String())
}

// normalize collapses runs of spaces and drops blank lines
func normalize(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func lastString(operands []token) string {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			return operands[i].text
		}
	}
	return ""
}

type scanner struct {
	data []byte
	pos  int
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func (s *scanner) next() (token, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			s.pos++
			return token{kind: tokString, text: s.literal()}, true
		case c == '<' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '<':
			s.pos += 2
			return token{kind: tokOperand, text: "<<"}, true
		case c == '>' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '>':
			s.pos += 2
			return token{kind: tokOperand, text: ">>"}, true
		case c == '<':
			s.pos++
			return token{kind: tokString, text: s.hex()}, true
		case c == '[':
			s.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			s.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			start := s.pos
			s.pos++
			s.word()
			return token{kind: tokOperand, text: string(s.data[start:s.pos])}, true
		case isDelimiter(c):
			s.pos++
		default:
			start := s.pos
			s.word()
			w := string(s.data[start:s.pos])
			if isNumber(w) || w == "true" || w == "false" || w == "null" {
				return token{kind: tokOperand, text: w}, true
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (s *scanner) word() {
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
}

// literal reads a parenthesised string after its opening bracket
func (s *scanner) literal() string {
	var sb strings.Builder
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return sb.String()
			}
			sb.WriteByte(c)
		case '\\':
			s.escape(&sb)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func (s *scanner) escape(sb *strings.Builder) {
	if s.pos >= len(s.data) {
		return
	}
	c := s.data[s.pos]
	s.pos++
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'b', 'f':
	case '\r', '\n':
		// line continuation
	default:
		if c >= '0' && c <= '7' {
			val := int(c - '0')
			for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
				val = val*8 + int(s.data[s.pos]-'0')
				s.pos++
			}
			sb.WriteByte(byte(val))
			return
		}
		sb.WriteByte(c)
	}
}

// hex reads a hex string after its opening bracket. Two byte values are
// treated as UTF-16BE when the string starts with a byte order mark.
func (s *scanner) hex() string {
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		if c := s.data[s.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return ""
		}
		raw = append(raw, byte(v))
	}
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		var sb strings.Builder
		for i := 2; i+1 < len(raw); i += 2 {
			sb.WriteRune(rune(raw[i])<<8 | rune(raw[i+1]))
		}
		return sb.String()
	}
	return string(raw)
}

func isNumber(w string) bool {
	_, err := strconv.ParseFloat(w, 64)
	return err == nil
}
