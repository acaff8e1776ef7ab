package query

import "strings"

// Split removes comments from a SQL script and splits it into statements on
// semicolons. Quoted strings and identifiers are copied verbatim, so comment
// markers and semicolons inside them are preserved. Empty statements are dropped.
func Split(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	n := len(script)
	for i := 0; i < n; i++ {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := quotedEnd(script, i)
			current.WriteString(script[i:end])
			i = end - 1

		case c == '-' && i+1 < n && script[i+1] == '-', c == '#':
			for i < n && script[i] != '\n' {
				i++
			}
			current.WriteByte('\n')

		case c == '/' && i+1 < n && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += end + 3
			}
			current.WriteByte(' ')

		case c == ';':
			flush()

		default:
			current.WriteByte(c)
		}
	}
	flush()
	return statements
}

// quotedEnd returns the index just past the quoted section starting at start.
// A doubled quote character escapes itself; inside string literals a backslash
// escapes the next byte. An unterminated quote runs to the end of the input.
func quotedEnd(s string, start int) int {
	end, _ := scanQuoted(s, start)
	return end
}

// scanQuoted is quotedEnd that also reports whether the closing quote was found.
func scanQuoted(s string, start int) (int, bool) {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quote != '`' {
				i++
			}
		case quote:
			if i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			return i + 1, true
		}
	}
	return len(s), false
}

// Terminated reports whether script ends with a semicolon outside quotes and
// comments, ignoring trailing whitespace and comments. An open quote or block
// comment means the script is not terminated.
func Terminated(script string) bool {
	terminated := false
	n := len(script)
	for i := 0; i < n; i++ {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end, closed := scanQuoted(script, i)
			if !closed {
				return false
			}
			i = end - 1
			terminated = false

		case c == '-' && i+1 < n && script[i+1] == '-', c == '#':
			for i < n && script[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 3

		case c == ';':
			terminated = true

		case c == ' ' || c == '\t' || c == '\n' || c == '\r':

		default:
			terminated = false
		}
	}
	return terminated
}
