package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// Group is a partition of rows sharing the same GROUP BY values.
type Group struct {
	// Row is the representative row: the group's first row, or an empty row
	// for the implicit group of an empty input.
	Row  *core.Row
	Rows []*core.Row

	// Aggregates maps AggregateCall.Key to the computed value.
	Aggregates map[string]interface{}
}

// IsAggregate reports whether a SELECT needs grouping.
func (s *SelectStmt) IsAggregate() bool {
	if len(s.GroupBy) > 0 {
		return true
	}
	for _, item := range s.Items {
		if ContainsAggregate(item.Expr) {
			return true
		}
	}
	if ContainsAggregate(s.Having) {
		return true
	}
	for _, o := range s.OrderBy {
		if ContainsAggregate(o.Expr) {
			return true
		}
	}
	return false
}

// Aggregates returns every distinct aggregate call of the statement in order of appearance.
func (s *SelectStmt) Aggregates() []*AggregateCall {
	var (
		calls []*AggregateCall
		seen  = make(map[string]bool)
	)
	collect := func(expr Expr) {
		Walk(expr, func(e Expr) bool {
			if call, ok := e.(*AggregateCall); ok {
				if !seen[call.Key()] {
					seen[call.Key()] = true
					calls = append(calls, call)
				}
				return false
			}
			return true
		})
	}
	for _, item := range s.Items {
		collect(item.Expr)
	}
	collect(s.Having)
	for _, o := range s.OrderBy {
		collect(o.Expr)
	}
	return calls
}

// Aggregate partitions rows by the statement's GROUP BY expressions and
// computes its aggregates per group. Groups keep the order in which their first
// row appeared. Without GROUP BY all rows form one group, even when there are none.
func (e *Evaluator) Aggregate(stmt *SelectStmt, rows []*core.Row) ([]*Group, error) {
	groups, err := e.partition(stmt.GroupBy, rows)
	if err != nil {
		return nil, err
	}

	calls := stmt.Aggregates()
	for _, g := range groups {
		g.Aggregates = make(map[string]interface{}, len(calls))
		for _, call := range calls {
			v, err := e.computeAggregate(call, g.Rows)
			if err != nil {
				return nil, err
			}
			g.Aggregates[call.Key()] = v
		}
	}
	return groups, nil
}

func (e *Evaluator) partition(keys []Expr, rows []*core.Row) ([]*Group, error) {
	if len(keys) == 0 {
		g := &Group{Rows: rows, Row: core.NewRow()}
		if len(rows) > 0 {
			g.Row = rows[0]
		}
		return []*Group{g}, nil
	}

	var (
		groups []*Group
		index  = make(map[string]*Group)
	)
	for _, row := range rows {
		var b strings.Builder
		for _, k := range keys {
			v, err := e.Eval(k, row)
			if err != nil {
				return nil, err
			}
			b.WriteString(groupKey(v))
			b.WriteByte(0)
		}
		key := b.String()
		g, ok := index[key]
		if !ok {
			g = &Group{Row: row}
			index[key] = g
			groups = append(groups, g)
		}
		g.Rows = append(g.Rows, row)
	}
	return groups, nil
}

// groupKey renders a value so that numerically equal numbers share a key.
func groupKey(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case int64, int, int32, float64, float32:
		f, _ := toNumber(n)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func (e *Evaluator) computeAggregate(call *AggregateCall, rows []*core.Row) (interface{}, error) {
	if call.Star {
		return int64(len(rows)), nil
	}

	values := make([]interface{}, 0, len(rows))
	seen := make(map[string]bool)
	for _, row := range rows {
		v, err := e.Eval(call.Arg, row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if call.Distinct {
			key := groupKey(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		values = append(values, v)
	}

	switch call.Func {
	case "COUNT":
		return int64(len(values)), nil
	case "SUM":
		return sum(values), nil
	case "AVG":
		total, n := 0.0, 0
		for _, v := range values {
			if f, ok := toNumber(v); ok {
				total += f
				n++
			}
		}
		if n == 0 {
			return nil, nil
		}
		return finite(total / float64(n)), nil
	case "MIN":
		return extreme(values, -1), nil
	case "MAX":
		return extreme(values, 1), nil
	}
	return nil, fmt.Errorf("%w: aggregate %s", core.ErrUnsupportedOperator, call.Func)
}

// sum adds the numeric values. The result is an integer when every addend is
// and the total fits in an int64; otherwise it is a float.
func sum(values []interface{}) interface{} {
	var (
		intTotal   int64
		floatTotal float64
		allInts    = true
		n          int
	)
	for _, v := range values {
		if i, ok := v.(int64); ok {
			if allInts {
				t, fits := addInt64(intTotal, i)
				intTotal = t
				allInts = fits
			}
			floatTotal += float64(i)
			n++
			continue
		}
		if f, ok := toNumber(v); ok {
			floatTotal += f
			allInts = false
			n++
		}
	}
	switch {
	case n == 0:
		return nil
	case allInts:
		return intTotal
	}
	return finite(floatTotal)
}

// extreme returns the smallest (sign -1) or largest (sign 1) value. Numeric
// values take precedence; only when there are none are the values compared as text.
func extreme(values []interface{}, sign int) interface{} {
	candidates := make([]interface{}, 0, len(values))
	for _, v := range values {
		if _, ok := toNumber(v); ok {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		candidates = values
	}

	var best interface{}
	for _, v := range candidates {
		if best == nil || compareValues(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}
