package dom

import (
	"errors"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Compile parses a CSS selector group.
//
// cascadia has no namespace syntax, so ns|tag is rewritten to the escaped
// element name ns\:tag (the HTML parser keeps prefixed names verbatim) and
// *|tag to plain tag before parsing.
func Compile(query string) (cascadia.Matcher, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	sel, err := cascadia.ParseGroup(rewriteNamespaces(query))
	if err != nil {
		return nil, errors.Join(ErrInvalidQuery, err)
	}
	return sel, nil
}

func rewriteNamespaces(q string) string {
	if !strings.Contains(q, "|") {
		return q
	}
	var b strings.Builder
	var quote byte
	depth := 0
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(q) {
				b.WriteByte(c)
				i++
				c = q[i]
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == '|' && depth == 0 && i+1 < len(q) && q[i+1] != '=':
			if i > 0 && q[i-1] == '*' {
				// *|tag: drop the already written '*'
				s := b.String()
				b.Reset()
				b.WriteString(s[:len(s)-1])
				continue
			}
			if i > 0 && isIdent(q[i-1]) {
				b.WriteString(`\:`)
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isIdent(c byte) bool {
	return c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}
