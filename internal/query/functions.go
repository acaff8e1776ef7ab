package query

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/docsql/internal/core"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

type scalarFunc func(e *Evaluator, args []interface{}) (interface{}, error)

type funcSpec struct {
	minArgs int
	maxArgs int // -1 for variadic
	fn      scalarFunc
}

var scalarFuncs = map[string]funcSpec{
	"NOW":               {0, 1, fnNow},
	"CURRENT_TIMESTAMP": {0, 1, fnNow},
	"SYSDATE":           {0, 1, fnNow},
	"LOCALTIME":         {0, 1, fnNow},
	"LOCALTIMESTAMP":    {0, 1, fnNow},
	"CURDATE":           {0, 0, fnCurDate},
	"CURRENT_DATE":      {0, 0, fnCurDate},
	"CURTIME":           {0, 1, fnCurTime},
	"CURRENT_TIME":      {0, 1, fnCurTime},
	"UNIX_TIMESTAMP":    {0, 1, fnUnixTimestamp},
	"UUID":              {0, 0, fnUUID},

	"UPPER":            {1, 1, stringFunc(strings.ToUpper)},
	"UCASE":            {1, 1, stringFunc(strings.ToUpper)},
	"LOWER":            {1, 1, stringFunc(strings.ToLower)},
	"LCASE":            {1, 1, stringFunc(strings.ToLower)},
	"TRIM":             {1, 1, stringFunc(strings.TrimSpace)},
	"LTRIM":            {1, 1, stringFunc(func(s string) string { return strings.TrimLeft(s, " \t\r\n") })},
	"RTRIM":            {1, 1, stringFunc(func(s string) string { return strings.TrimRight(s, " \t\r\n") })},
	"LENGTH":           {1, 1, fnLength},
	"CHAR_LENGTH":      {1, 1, fnCharLength},
	"CHARACTER_LENGTH": {1, 1, fnCharLength},
	"CONCAT":           {1, -1, fnConcat},
	"CONCAT_WS":        {2, -1, fnConcatWS},
	"REPLACE":          {3, 3, fnReplace},

	"COALESCE": {1, -1, fnCoalesce},
	"IFNULL":   {2, 2, fnCoalesce},
	"NULLIF":   {2, 2, fnNullIf},
	"IF":       {3, 3, fnIf},
	"GREATEST": {1, -1, extremum(1)},
	"LEAST":    {1, -1, extremum(-1)},

	"ABS":     {1, 1, numericFunc(math.Abs)},
	"FLOOR":   {1, 1, numericFunc(math.Floor)},
	"CEIL":    {1, 1, numericFunc(math.Ceil)},
	"CEILING": {1, 1, numericFunc(math.Ceil)},
	"ROUND":   {1, 2, fnRound},
	"MOD":     {2, 2, fnMod},
}

// call applies a scalar function. Unknown functions evaluate to NULL; the first
// occurrence of each is recorded on the trace.
func (e *Evaluator) call(name string, args []interface{}) (interface{}, error) {
	spec, ok := scalarFuncs[name]
	if !ok {
		if !e.reported[name] {
			e.reported[name] = true
			e.tracef("unknown function %s evaluated to NULL", name)
		}
		return nil, nil
	}
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		return nil, fmt.Errorf("%w: wrong number of arguments to %s", core.ErrSyntax, name)
	}
	return spec.fn(e, args)
}

func fnNow(e *Evaluator, _ []interface{}) (interface{}, error) {
	return e.now().UTC().Format(time.RFC3339), nil
}

func fnCurDate(e *Evaluator, _ []interface{}) (interface{}, error) {
	return e.now().UTC().Format(dateLayout), nil
}

func fnCurTime(e *Evaluator, _ []interface{}) (interface{}, error) {
	return e.now().UTC().Format(timeLayout), nil
}

func fnUnixTimestamp(e *Evaluator, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return e.now().Unix(), nil
	}
	t, ok := parseTime(args[0])
	if !ok {
		return nil, nil
	}
	return t.Unix(), nil
}

func fnUUID(_ *Evaluator, _ []interface{}) (interface{}, error) {
	return uuid.NewString(), nil
}

func stringFunc(fn func(string) string) scalarFunc {
	return func(_ *Evaluator, args []interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return fn(toText(args[0])), nil
	}
}

func numericFunc(fn func(float64) float64) scalarFunc {
	return func(_ *Evaluator, args []interface{}) (interface{}, error) {
		if i, ok := args[0].(int64); ok {
			return int64(fn(float64(i))), nil
		}
		f, ok := toNumber(args[0])
		if !ok {
			return nil, nil
		}
		return finite(fn(f)), nil
	}
}

func fnLength(_ *Evaluator, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return int64(len(toText(args[0]))), nil
}

func fnCharLength(_ *Evaluator, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return int64(utf8.RuneCountInString(toText(args[0]))), nil
}

func fnConcat(_ *Evaluator, args []interface{}) (interface{}, error) {
	var b strings.Builder
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
		b.WriteString(toText(a))
	}
	return b.String(), nil
}

func fnConcatWS(_ *Evaluator, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	parts := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if a != nil {
			parts = append(parts, toText(a))
		}
	}
	return strings.Join(parts, toText(args[0])), nil
}

func fnReplace(_ *Evaluator, args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}
	return strings.ReplaceAll(toText(args[0]), toText(args[1]), toText(args[2])), nil
}

func fnCoalesce(_ *Evaluator, args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a != nil {
			return a, nil
		}
	}
	return nil, nil
}

func fnNullIf(_ *Evaluator, args []interface{}) (interface{}, error) {
	if args[0] != nil && args[1] != nil && looseEqual(args[0], args[1]) {
		return nil, nil
	}
	return args[0], nil
}

func fnIf(_ *Evaluator, args []interface{}) (interface{}, error) {
	if b, ok := truthy(args[0]); ok && b {
		return args[1], nil
	}
	return args[2], nil
}

func extremum(sign int) scalarFunc {
	return func(_ *Evaluator, args []interface{}) (interface{}, error) {
		best := args[0]
		for _, a := range args {
			if a == nil {
				return nil, nil
			}
			if compareValues(a, best)*sign > 0 {
				best = a
			}
		}
		return best, nil
	}
}

func fnRound(_ *Evaluator, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	digits := int64(0)
	if len(args) == 2 {
		d, ok := toInteger(args[1])
		if !ok {
			return nil, nil
		}
		digits = d
	}
	if i, ok := args[0].(int64); ok && digits >= 0 {
		return i, nil
	}
	f, ok := toNumber(args[0])
	if !ok {
		return nil, nil
	}
	if digits > 15 {
		return f, nil
	}
	if digits < -308 {
		return float64(0), nil
	}
	scale := math.Pow(10, float64(digits))
	return finite(math.Round(f*scale) / scale), nil
}

func fnMod(_ *Evaluator, args []interface{}) (interface{}, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	return arithmetic(OpMod, args[0], args[1]), nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", dateLayout}

func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
