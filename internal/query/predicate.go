package query

import (
	"fmt"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// Match reports whether row satisfies cond. A nil condition matches every row
// and a NULL result does not match.
func (e *Evaluator) Match(cond Expr, row *core.Row) (bool, error) {
	return e.matchWith(cond, row, nil)
}

// MatchGroup is Match for HAVING: aggregates resolve from the group's values.
func (e *Evaluator) MatchGroup(cond Expr, row *core.Row, aggregates map[string]interface{}) (bool, error) {
	if aggregates == nil {
		aggregates = map[string]interface{}{}
	}
	return e.matchWith(cond, row, aggregates)
}

func (e *Evaluator) matchWith(cond Expr, row *core.Row, aggs map[string]interface{}) (bool, error) {
	if cond == nil {
		return true, nil
	}
	v, err := e.eval(cond, row, aggs)
	if err != nil {
		return false, err
	}
	b, ok := truthy(v)
	return ok && b, nil
}

// Filter returns the rows matching cond, preserving order.
func (e *Evaluator) Filter(cond Expr, rows []*core.Row) ([]*core.Row, error) {
	if cond == nil {
		return rows, nil
	}
	out := make([]*core.Row, 0, len(rows))
	for _, row := range rows {
		ok, err := e.Match(cond, row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// logical evaluates AND and OR with three-valued logic, short-circuiting on
// the left operand when it decides the result.
func (e *Evaluator) logical(x *LogicalExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	l, err := e.eval(x.Left, row, aggs)
	if err != nil {
		return nil, err
	}
	lb, lok := truthy(l)

	switch x.Op {
	case OpAnd:
		if lok && !lb {
			return false, nil
		}
		r, err := e.eval(x.Right, row, aggs)
		if err != nil {
			return nil, err
		}
		rb, rok := truthy(r)
		switch {
		case rok && !rb:
			return false, nil
		case !lok || !rok:
			return nil, nil
		}
		return true, nil

	case OpOr:
		if lok && lb {
			return true, nil
		}
		r, err := e.eval(x.Right, row, aggs)
		if err != nil {
			return nil, err
		}
		rb, rok := truthy(r)
		switch {
		case rok && rb:
			return true, nil
		case !lok || !rok:
			return nil, nil
		}
		return false, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedOperator, x.Op)
}
