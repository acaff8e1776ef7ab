package query

import (
	"fmt"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// JoinInput is the right-hand side of a join: the clause and the rows of its table.
type JoinInput struct {
	Clause JoinClause
	Rows   []*core.Row

	// Columns are the declared columns of the right table. A LEFT JOIN pads
	// unmatched rows with NULL for each of them.
	Columns []string
}

// Joiner combines row sets with nested-loop joins.
type Joiner struct {
	eval       *Evaluator
	permissive bool
}

// NewJoiner creates a joiner. With permissive set, RIGHT and NATURAL joins pass
// the left rows through unchanged and record the fallback on the trace instead
// of failing.
func NewJoiner(eval *Evaluator, permissive bool) *Joiner {
	return &Joiner{eval: eval, permissive: permissive}
}

// Join widens every left row with each matching right row. Combined rows keep
// the left value when both sides share a column name; qualified references
// reach either side through the row's sources.
func (j *Joiner) Join(left []*core.Row, right JoinInput) ([]*core.Row, error) {
	clause := right.Clause
	switch clause.Kind {
	case JoinInner, JoinLeft, JoinCross:
	case JoinRight, JoinNatural:
		if !j.permissive {
			return nil, fmt.Errorf("%w: %s %s", core.ErrUnsupportedJoinKind, clause.Kind, clause.Table.Name)
		}
		j.eval.tracef("join fallback: %s %s not supported, %d left rows passed through", clause.Kind, clause.Table.Name, len(left))
		return left, nil
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedJoinKind, clause.Kind)
	}

	qualifier := clause.Table.Qualifier()
	var padding []string
	if clause.Kind == JoinLeft {
		padding = observedColumns(right.Columns, right.Rows)
	}

	out := make([]*core.Row, 0, len(left))
	for _, l := range left {
		matched := false
		for _, r := range right.Rows {
			if !usingMatches(clause.Using, l, r) {
				continue
			}
			combined := core.JoinRows(l, r, qualifier)
			ok, err := j.eval.Match(clause.On, combined)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, combined)
				matched = true
			}
		}
		if !matched && clause.Kind == JoinLeft {
			out = append(out, core.JoinRows(l, core.NullRow(padding), qualifier))
		}
	}
	return out, nil
}

func usingMatches(columns []string, l, r *core.Row) bool {
	for _, col := range columns {
		lv, rv := field(l, col), field(r, col)
		if lv == nil || rv == nil || !looseEqual(lv, rv) {
			return false
		}
	}
	return true
}

// observedColumns returns the declared columns followed by any other keys seen
// on rows, in order of first appearance.
func observedColumns(declared []string, rows []*core.Row) []string {
	seen := make(map[string]bool, len(declared))
	out := make([]string, 0, len(declared))
	for _, c := range declared {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, row := range rows {
		for _, k := range row.Keys() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
