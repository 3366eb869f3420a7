package extract

import "strings"

// maskLine blanks the contents of string literals and drops a trailing line
// comment, keeping byte offsets aligned with the original line. Quote
// characters themselves are kept so argument boundaries stay visible.
func maskLine(line string) string {
	b := []byte(line)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote != 0 {
			switch {
			case c == '\\' && i+1 < len(b):
				b[i], b[i+1] = ' ', ' '
				i++
			case c == quote:
				quote = 0
			default:
				b[i] = ' '
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '/':
			if i+1 < len(b) && b[i+1] == '/' {
				return string(b[:i])
			}
		}
	}
	return string(b)
}

// indexAll returns every offset of token in s, left to right.
func indexAll(s, token string) []int {
	var out []int
	for off := 0; ; {
		i := strings.Index(s[off:], token)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(token)
	}
}

// callArgs splits the argument list of the call whose opening parenthesis is
// at open. Splitting runs on the masked line so commas and parentheses inside
// strings are ignored; the returned arguments are sliced from the original
// line and trimmed. ok is false when the call is not closed on this line.
func callArgs(line, masked string, open int) (args []string, ok bool) {
	depth := 0
	start := open + 1
	for i := open + 1; i < len(masked); i++ {
		switch masked[i] {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				args = append(args, strings.TrimSpace(line[start:i]))
				return args, true
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(line[start:i]))
				start = i + 1
			}
		}
	}
	return nil, false
}

// unquote strips one pair of matching surrounding quote characters.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
