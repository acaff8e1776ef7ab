package query

import (
	"regexp"
	"strings"
)

var ddlPrefix = regexp.MustCompile(`(?i)^\s*(create|alter)\s`)

// ansiTypes maps type names the MySQL grammar lacks onto equivalents it accepts.
var ansiTypes = map[string]string{
	"BOOLEAN":     "TINYINT(1)",
	"BOOL":        "TINYINT(1)",
	"SERIAL":      "BIGINT",
	"BIGSERIAL":   "BIGINT",
	"TIMESTAMPTZ": "TIMESTAMP",
}

// ansiRewrite rewrites ANSI and PostgreSQL-style SQL into the MySQL dialect:
// double-quoted identifiers become backtick-quoted, ::type casts are dropped,
// and in CREATE/ALTER statements a few type names are replaced.
func ansiRewrite(sql string) string {
	ddl := ddlPrefix.MatchString(sql)

	var b strings.Builder
	b.Grow(len(sql))
	n := len(sql)
	for i := 0; i < n; i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '`':
			end := quotedEnd(sql, i)
			b.WriteString(sql[i:end])
			i = end - 1

		case c == '"':
			end := quotedEnd(sql, i)
			inner := ""
			if end-1 > i+1 {
				inner = sql[i+1 : end-1]
			}
			inner = strings.ReplaceAll(inner, `""`, `"`)
			b.WriteByte('`')
			b.WriteString(strings.ReplaceAll(inner, "`", "``"))
			b.WriteByte('`')
			i = end - 1

		case c == ':' && i+1 < n && sql[i+1] == ':':
			i = castEnd(sql, i+2) - 1

		case ddl && isIdentStart(c) && (i == 0 || !isIdentChar(sql[i-1])):
			j := i
			for j < n && isIdentChar(sql[j]) {
				j++
			}
			word := sql[i:j]
			if repl, ok := ansiTypes[strings.ToUpper(word)]; ok {
				b.WriteString(repl)
			} else {
				b.WriteString(word)
			}
			i = j - 1

		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// castEnd returns the index just past a cast target such as int, varchar(20) or text[].
func castEnd(s string, i int) int {
	for i < len(s) && s[i] == ' ' {
		i++
	}
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '(' {
		if end := strings.IndexByte(s[i:], ')'); end >= 0 {
			i += end + 1
		}
	}
	for i+1 < len(s) && s[i] == '[' && s[i+1] == ']' {
		i += 2
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
