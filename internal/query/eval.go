package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// Tracer records diagnostic steps. *core.Result implements it.
type Tracer interface {
	Tracef(format string, args ...interface{})
}

// Evaluator computes expression values against rows. Missing columns read as
// NULL, comparisons involving NULL yield NULL, and conditions treat NULL as false.
// An Evaluator caches compiled patterns and is not safe for concurrent use.
type Evaluator struct {
	tracer   Tracer
	now      func() time.Time
	reported map[string]bool
	patterns map[string]*regexp.Regexp
}

// NewEvaluator creates an evaluator. Tracer receives permissive fallbacks such as
// unknown functions; now is the statement clock.
func NewEvaluator(tracer Tracer, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		tracer:   tracer,
		now:      now,
		reported: make(map[string]bool),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Eval evaluates expr against row. Row may be nil for constant expressions.
func (e *Evaluator) Eval(expr Expr, row *core.Row) (interface{}, error) {
	return e.eval(expr, row, nil)
}

// EvalGroup evaluates expr for a group: aggregate calls read their computed
// value from aggregates, and column references read the group's representative row.
func (e *Evaluator) EvalGroup(expr Expr, row *core.Row, aggregates map[string]interface{}) (interface{}, error) {
	if aggregates == nil {
		aggregates = map[string]interface{}{}
	}
	return e.eval(expr, row, aggregates)
}

func (e *Evaluator) tracef(format string, args ...interface{}) {
	if e.tracer != nil {
		e.tracer.Tracef(format, args...)
	}
}

func (e *Evaluator) eval(expr Expr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	switch x := expr.(type) {
	case nil:
		return nil, nil
	case *Literal:
		return x.Value, nil
	case *ColumnRef:
		return lookup(row, x), nil
	case *DefaultValue:
		return nil, fmt.Errorf("%w: DEFAULT is only valid in INSERT values", core.ErrSyntax)

	case *ComparisonExpr:
		return e.comparison(x, row, aggs)
	case *LogicalExpr:
		return e.logical(x, row, aggs)
	case *NotExpr:
		v, err := e.eval(x.Expr, row, aggs)
		if err != nil {
			return nil, err
		}
		b, ok := truthy(v)
		if !ok {
			return nil, nil
		}
		return !b, nil

	case *BinaryExpr:
		return e.binary(x, row, aggs)
	case *UnaryExpr:
		return e.unary(x, row, aggs)
	case *InExpr:
		return e.in(x, row, aggs)
	case *BetweenExpr:
		return e.between(x, row, aggs)
	case *IsExpr:
		return e.is(x, row, aggs)

	case *FuncCall:
		args := make([]interface{}, len(x.Args))
		for i, arg := range x.Args {
			v, err := e.eval(arg, row, aggs)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return e.call(x.Name, args)

	case *AggregateCall:
		if aggs == nil {
			return nil, fmt.Errorf("%w: invalid use of aggregate %s", core.ErrSyntax, x.Key())
		}
		v, ok := aggs[x.Key()]
		if !ok {
			return nil, fmt.Errorf("%w: aggregate %s was not computed", core.ErrSyntax, x.Key())
		}
		return v, nil

	case *CaseExpr:
		return e.caseWhen(x, row, aggs)
	case *CastExpr:
		v, err := e.eval(x.Expr, row, aggs)
		if err != nil {
			return nil, err
		}
		return cast(v, x.Type), nil
	}
	return nil, fmt.Errorf("%w: %T", core.ErrUnsupportedOperator, expr)
}

// lookup resolves a column reference. A qualifier unknown to the row is
// ignored and the bare column name is used.
func lookup(row *core.Row, ref *ColumnRef) interface{} {
	if row == nil {
		return nil
	}
	if ref.Qualifier != "" {
		if src := row.Source(ref.Qualifier); src != nil {
			return field(src, ref.Name)
		}
	}
	return field(row, ref.Name)
}

func field(row *core.Row, name string) interface{} {
	if v, ok := row.Get(name); ok {
		return v
	}
	for _, k := range row.Keys() {
		if strings.EqualFold(k, name) {
			v, _ := row.Get(k)
			return v
		}
	}
	if strings.EqualFold(name, core.DocIDColumn) {
		v, _ := row.Get(core.DocIDColumn)
		return v
	}
	return nil
}

func (e *Evaluator) comparison(x *ComparisonExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	switch x.Op {
	case OpEq, OpNe, OpLt, OpGt, OpLe, OpGe, OpNullSafeEq, OpLike, OpNotLike, OpRegexp, OpNotRegexp:
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedOperator, x.Op)
	}

	l, err := e.eval(x.Left, row, aggs)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(x.Right, row, aggs)
	if err != nil {
		return nil, err
	}

	if x.Op == OpNullSafeEq {
		if l == nil || r == nil {
			return l == nil && r == nil, nil
		}
		return looseEqual(l, r), nil
	}
	if l == nil || r == nil {
		return nil, nil
	}

	switch x.Op {
	case OpEq:
		return looseEqual(l, r), nil
	case OpNe:
		return !looseEqual(l, r), nil
	case OpLt:
		return compareValues(l, r) < 0, nil
	case OpGt:
		return compareValues(l, r) > 0, nil
	case OpLe:
		return compareValues(l, r) <= 0, nil
	case OpGe:
		return compareValues(l, r) >= 0, nil
	case OpLike, OpNotLike:
		re, err := e.pattern(likePattern(toText(r)))
		if err != nil {
			return nil, err
		}
		return re.MatchString(toText(l)) == (x.Op == OpLike), nil
	default:
		re, err := e.pattern("(?i)" + toText(r))
		if err != nil {
			return nil, err
		}
		return re.MatchString(toText(l)) == (x.Op == OpRegexp), nil
	}
}

func (e *Evaluator) pattern(expr string) (*regexp.Regexp, error) {
	if re, ok := e.patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %w", core.ErrInvalidArgument, expr, err)
	}
	e.patterns[expr] = re
	return re, nil
}

func (e *Evaluator) binary(x *BinaryExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	switch x.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpIntDiv, OpMod:
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedOperator, x.Op)
	}
	l, err := e.eval(x.Left, row, aggs)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(x.Right, row, aggs)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return arithmetic(x.Op, l, r), nil
}

// arithmetic applies an arithmetic operator. Integer operands stay integers
// except for /; a non-numeric operand or a zero divisor yields NULL.
func arithmetic(op Operator, l, r interface{}) interface{} {
	li, lInt := toInteger(l)
	ri, rInt := toInteger(r)
	if lInt && rInt {
		switch op {
		case OpAdd:
			if s, ok := addInt64(li, ri); ok {
				return s
			}
		case OpSub:
			if ri != math.MinInt64 {
				if s, ok := addInt64(li, -ri); ok {
					return s
				}
			}
		case OpMul:
			if p, ok := mulInt64(li, ri); ok {
				return p
			}
		case OpIntDiv:
			if ri == 0 {
				return nil
			}
			if li != math.MinInt64 || ri != -1 {
				return li / ri
			}
		case OpMod:
			if ri == 0 {
				return nil
			}
			if ri == -1 {
				return int64(0)
			}
			return li % ri
		}
	}

	lf, lok := toNumber(l)
	rf, rok := toNumber(r)
	if !lok || !rok {
		return nil
	}
	switch op {
	case OpAdd:
		return finite(lf + rf)
	case OpSub:
		return finite(lf - rf)
	case OpMul:
		return finite(lf * rf)
	case OpDiv:
		if rf == 0 {
			return nil
		}
		return finite(lf / rf)
	case OpIntDiv:
		if rf == 0 {
			return nil
		}
		q := math.Trunc(lf / rf)
		if q >= math.MaxInt64 || q < math.MinInt64 {
			return finite(q)
		}
		return int64(q)
	case OpMod:
		if rf == 0 {
			return nil
		}
		return finite(math.Mod(lf, rf))
	}
	return nil
}

func (e *Evaluator) unary(x *UnaryExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	switch x.Op {
	case OpNeg, OpPos, OpNot:
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedOperator, x.Op)
	}
	v, err := e.eval(x.Expr, row, aggs)
	if err != nil || v == nil {
		return nil, err
	}

	switch x.Op {
	case OpNeg:
		if i, ok := toInteger(v); ok && i != math.MinInt64 {
			return -i, nil
		}
		if f, ok := toNumber(v); ok {
			return -f, nil
		}
		return nil, nil
	case OpNot:
		b, ok := truthy(v)
		if !ok {
			return nil, nil
		}
		return !b, nil
	}
	return v, nil
}

func (e *Evaluator) in(x *InExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	v, err := e.eval(x.Expr, row, aggs)
	if err != nil || v == nil {
		return nil, err
	}
	sawNull := false
	for _, item := range x.List {
		iv, err := e.eval(item, row, aggs)
		if err != nil {
			return nil, err
		}
		if iv == nil {
			sawNull = true
			continue
		}
		if looseEqual(v, iv) {
			return !x.Not, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return x.Not, nil
}

func (e *Evaluator) between(x *BetweenExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	v, err := e.eval(x.Expr, row, aggs)
	if err != nil {
		return nil, err
	}
	from, err := e.eval(x.From, row, aggs)
	if err != nil {
		return nil, err
	}
	to, err := e.eval(x.To, row, aggs)
	if err != nil {
		return nil, err
	}
	if v == nil || from == nil || to == nil {
		return nil, nil
	}
	inside := compareValues(v, from) >= 0 && compareValues(v, to) <= 0
	return inside != x.Not, nil
}

func (e *Evaluator) is(x *IsExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	v, err := e.eval(x.Expr, row, aggs)
	if err != nil {
		return nil, err
	}
	b, known := truthy(v)
	switch x.Op {
	case OpIsNull:
		return v == nil, nil
	case OpIsNotNull:
		return v != nil, nil
	case OpIsTrue:
		return known && b, nil
	case OpIsNotTrue:
		return !(known && b), nil
	case OpIsFalse:
		return known && !b, nil
	case OpIsNotFalse:
		return !(known && !b), nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedOperator, x.Op)
}

func (e *Evaluator) caseWhen(x *CaseExpr, row *core.Row, aggs map[string]interface{}) (interface{}, error) {
	var operand interface{}
	if x.Operand != nil {
		var err error
		if operand, err = e.eval(x.Operand, row, aggs); err != nil {
			return nil, err
		}
	}

	for _, w := range x.Whens {
		cond, err := e.eval(w.Cond, row, aggs)
		if err != nil {
			return nil, err
		}
		matched := false
		if x.Operand != nil {
			matched = operand != nil && cond != nil && looseEqual(operand, cond)
		} else {
			b, ok := truthy(cond)
			matched = ok && b
		}
		if matched {
			return e.eval(w.Result, row, aggs)
		}
	}
	return e.eval(x.Else, row, aggs)
}

func cast(v interface{}, target string) interface{} {
	if v == nil {
		return nil
	}
	switch {
	case strings.HasPrefix(target, "SIGNED"), strings.HasPrefix(target, "UNSIGNED"), strings.HasPrefix(target, "INT"):
		if i, ok := toInteger(v); ok {
			return i
		}
		if f, ok := toNumber(v); ok {
			return int64(f)
		}
		return nil
	case strings.HasPrefix(target, "DECIMAL"), target == "FLOAT", target == "DOUBLE", target == "REAL":
		if f, ok := toNumber(v); ok {
			return f
		}
		return nil
	case strings.HasPrefix(target, "CHAR"), strings.HasPrefix(target, "NCHAR"), strings.HasPrefix(target, "BINARY"):
		return toText(v)
	case target == "DATE":
		if t, ok := parseTime(v); ok {
			return t.Format(dateLayout)
		}
		return nil
	case target == "DATETIME", target == "TIMESTAMP":
		if t, ok := parseTime(v); ok {
			return t.Format(time.RFC3339)
		}
		return nil
	}
	return v
}
