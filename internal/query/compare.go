package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// toNumber reads a numeric value. Strings holding a number are parsed; booleans
// and other types are not numbers. NaN and the infinities are not numbers either,
// so "inf" stays text.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, isFinite(n)
	case float32:
		return float64(n), isFinite(float64(n))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || !isFinite(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// finite returns f, or nil when f overflowed or is NaN. Rows only ever carry
// finite floats.
func finite(f float64) interface{} {
	if !isFinite(f) {
		return nil
	}
	return f
}

// addInt64 adds two integers; ok is false on overflow.
func addInt64(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}

// mulInt64 multiplies two integers; ok is false on overflow.
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}

// toInteger reads an integral value, including integer strings.
func toInteger(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// toText renders a value the way string comparisons and LIKE see it.
func toText(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		if s {
			return "true"
		}
		return "false"
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// looseEqual compares two non-nil values: numerically when both are numeric,
// booleans against numbers as 1/0, and otherwise by exact text.
func looseEqual(a, b interface{}) bool {
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
		return boolEqual(ab, b)
	}
	if bb, ok := b.(bool); ok {
		return boolEqual(bb, a)
	}
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an == bn
		}
	}
	return toText(a) == toText(b)
}

func boolEqual(b bool, other interface{}) bool {
	if n, ok := toNumber(other); ok {
		return (n != 0) == b
	}
	return strings.EqualFold(toText(other), strconv.FormatBool(b))
}

// compareValues orders two values. Nil sorts before everything; numbers compare
// numerically when both sides are numeric; everything else compares as
// case-insensitive text.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	an, aok := numericForOrder(a)
	bn, bok := numericForOrder(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(toText(a)), strings.ToLower(toText(b)))
}

func numericForOrder(v interface{}) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return toNumber(v)
}

// likePattern translates a LIKE pattern into an anchored, case-insensitive
// regular expression. % matches any run, _ one character, and a backslash
// makes the next character literal.
func likePattern(pattern string) string {
	var b strings.Builder
	b.WriteString("(?is)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(`\\`)
	}
	b.WriteByte('$')
	return b.String()
}

// truthy reports the boolean value of a condition result; ok is false for NULL.
func truthy(v interface{}) (value bool, ok bool) {
	switch t := v.(type) {
	case nil:
		return false, false
	case bool:
		return t, true
	case string:
		if n, isNum := toNumber(t); isNum {
			return n != 0, true
		}
		return false, true
	}
	if n, isNum := toNumber(v); isNum {
		return n != 0, true
	}
	return true, true
}
