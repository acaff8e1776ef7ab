package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// Projection is the shaped result of a SELECT.
type Projection struct {
	Rows    []*core.Row
	Columns []string

	// Groups is the number of groups formed, zero for non-aggregate queries.
	Groups int
}

type projected struct {
	out  *core.Row
	view *core.Row // source row overlaid with the output columns, for HAVING and ORDER BY
	aggs map[string]interface{}
	keys []interface{}
}

// Projector applies grouping, the select list, HAVING, DISTINCT, ORDER BY, and
// LIMIT to filtered rows.
type Projector struct {
	eval *Evaluator
}

// NewProjector creates a projector.
func NewProjector(eval *Evaluator) *Projector {
	return &Projector{eval: eval}
}

// Project shapes rows for stmt. Declared lists the declared columns of the
// queried tables; it names the columns of SELECT * when no row survives.
func (p *Projector) Project(stmt *SelectStmt, rows []*core.Row, declared []string) (*Projection, error) {
	var (
		entries []*projected
		groups  int
	)

	if stmt.IsAggregate() {
		grouped, err := p.eval.Aggregate(stmt, rows)
		if err != nil {
			return nil, err
		}
		groups = len(grouped)
		for _, g := range grouped {
			entry, keep, err := p.projectOne(stmt, g.Row, g.Aggregates)
			if err != nil {
				return nil, err
			}
			if keep {
				entries = append(entries, entry)
			}
		}
	} else {
		for _, row := range rows {
			entry, keep, err := p.projectOne(stmt, row, nil)
			if err != nil {
				return nil, err
			}
			if keep {
				entries = append(entries, entry)
			}
		}
	}

	if stmt.Distinct {
		var err error
		if entries, err = distinct(entries); err != nil {
			return nil, err
		}
	}
	if len(stmt.OrderBy) > 0 {
		if err := p.sort(stmt.OrderBy, entries); err != nil {
			return nil, err
		}
	}
	entries = limit(stmt.Limit, entries)

	result := &Projection{Groups: groups, Rows: make([]*core.Row, len(entries))}
	for i, entry := range entries {
		result.Rows[i] = entry.out
	}
	if len(result.Rows) > 0 {
		result.Columns = observedColumns(nil, result.Rows)
	} else {
		result.Columns = emptyColumns(stmt.Items, declared)
	}
	return result, nil
}

func (p *Projector) projectOne(stmt *SelectStmt, row *core.Row, aggs map[string]interface{}) (*projected, bool, error) {
	out, err := p.projectRow(stmt.Items, row, aggs)
	if err != nil {
		return nil, false, err
	}
	view := row.Clone()
	for _, k := range out.Keys() {
		v, _ := out.Get(k)
		view.Set(k, v)
	}

	if stmt.Having != nil {
		var ok bool
		if aggs != nil {
			ok, err = p.eval.MatchGroup(stmt.Having, view, aggs)
		} else {
			ok, err = p.eval.Match(stmt.Having, view)
		}
		if err != nil || !ok {
			return nil, false, err
		}
	}
	return &projected{out: out, view: view, aggs: aggs}, true, nil
}

func (p *Projector) projectRow(items []SelectItem, row *core.Row, aggs map[string]interface{}) (*core.Row, error) {
	out := core.NewRow()
	out.ID = row.ID
	out.TableID = row.TableID

	for _, item := range items {
		if item.Star {
			src := row
			if item.StarTable != "" {
				if src = row.Source(item.StarTable); src == nil {
					return nil, fmt.Errorf("%w: %s in %s.*", core.ErrTableNotFound, item.StarTable, item.StarTable)
				}
			}
			for _, k := range src.Keys() {
				if !out.Has(k) {
					v, _ := src.Get(k)
					out.Set(k, v)
				}
			}
			continue
		}

		var (
			v   interface{}
			err error
		)
		if aggs != nil {
			v, err = p.eval.EvalGroup(item.Expr, row, aggs)
		} else {
			v, err = p.eval.Eval(item.Expr, row)
		}
		if err != nil {
			return nil, err
		}
		out.Set(uniqueName(out, ItemName(item)), v)
	}
	return out, nil
}

// ItemName is the result column name of a select item: its alias, the bare
// column name, <func>_<arg> for an aggregate, or the expression text.
func ItemName(item SelectItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	switch e := item.Expr.(type) {
	case *ColumnRef:
		return e.Name
	case *AggregateCall:
		return e.DerivedName()
	}
	return item.Text
}

// uniqueName suffixes name with _2, _3, ... when the row already has it.
func uniqueName(row *core.Row, name string) string {
	if !row.Has(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if !row.Has(candidate) {
			return candidate
		}
	}
}

func emptyColumns(items []SelectItem, declared []string) []string {
	scratch := core.NewRow()
	for _, item := range items {
		if item.Star {
			for _, c := range declared {
				if !scratch.Has(c) {
					scratch.Set(c, nil)
				}
			}
			continue
		}
		scratch.Set(uniqueName(scratch, ItemName(item)), nil)
	}
	return scratch.Keys()
}

func distinct(entries []*projected) ([]*projected, error) {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, entry := range entries {
		key, err := json.Marshal(entry.out)
		if err != nil {
			return nil, fmt.Errorf("failed to compare rows: %w", err)
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		out = append(out, entry)
	}
	return out, nil
}

// sort orders entries stably by the ORDER BY keys. NULL sorts first in both
// directions. An integer literal key selects an output column by position.
func (p *Projector) sort(order []OrderItem, entries []*projected) error {
	for _, entry := range entries {
		entry.keys = make([]interface{}, len(order))
		for i, o := range order {
			v, err := p.orderKey(o.Expr, entry)
			if err != nil {
				return err
			}
			entry.keys[i] = v
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		for k, o := range order {
			a, b := entries[i].keys[k], entries[j].keys[k]
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				return true
			case b == nil:
				return false
			}
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if o.Desc {
				c = -c
			}
			return c < 0
		}
		return false
	})
	return nil
}

func (p *Projector) orderKey(expr Expr, entry *projected) (interface{}, error) {
	if lit, ok := expr.(*Literal); ok {
		if pos, ok := lit.Value.(int64); ok {
			keys := entry.out.Keys()
			if pos < 1 || int(pos) > len(keys) {
				return nil, fmt.Errorf("%w: ORDER BY position %d is out of range", core.ErrSyntax, pos)
			}
			v, _ := entry.out.Get(keys[pos-1])
			return v, nil
		}
	}
	if entry.aggs != nil {
		return p.eval.EvalGroup(expr, entry.view, entry.aggs)
	}
	return p.eval.Eval(expr, entry.view)
}

func limit(l *LimitClause, entries []*projected) []*projected {
	if l == nil {
		return entries
	}
	if l.Offset >= int64(len(entries)) {
		return nil
	}
	entries = entries[l.Offset:]
	if l.Count < int64(len(entries)) {
		entries = entries[:l.Count]
	}
	return entries
}
