package engine

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/query"
	"github.com/rzpsarthak13/docsql/internal/table"
)

func (e *Engine) execSelect(x *execution, stmt *query.SelectStmt) error {
	rows, declared, err := e.source(x, stmt)
	if err != nil {
		return err
	}

	if stmt.Where != nil {
		if rows, err = x.eval.Filter(stmt.Where, rows); err != nil {
			return err
		}
		x.result.Tracef("filter: %d rows matched", len(rows))
	}

	projection, err := query.NewProjector(x.eval).Project(stmt, rows, declared)
	if err != nil {
		return err
	}
	if stmt.IsAggregate() {
		x.result.Tracef("aggregate: %d groups", projection.Groups)
	}

	x.result.Rows = projection.Rows
	x.result.Columns = projection.Columns
	x.result.Message = fmt.Sprintf("%d rows returned.", len(projection.Rows))
	return nil
}

// source fetches the FROM table and folds each join into it. It returns the
// combined rows and the declared columns of every table involved.
func (e *Engine) source(x *execution, stmt *query.SelectStmt) ([]*core.Row, []string, error) {
	if stmt.From == nil {
		return []*core.Row{core.NewRow()}, nil, nil
	}

	handle, rows, err := e.scan(x, *stmt.From)
	if err != nil {
		return nil, nil, err
	}
	declared := appendUnique(nil, handle.ColumnNames())

	joiner := query.NewJoiner(x.eval, e.permissiveJoins)
	for _, clause := range stmt.Joins {
		joined, right, err := e.scan(x, clause.Table)
		if err != nil {
			return nil, nil, err
		}
		columns := joined.ColumnNames()
		if rows, err = joiner.Join(rows, query.JoinInput{Clause: clause, Rows: right, Columns: columns}); err != nil {
			return nil, nil, err
		}
		declared = appendUnique(declared, columns)
		x.result.Tracef("join: %s %s -> %d rows", clause.Kind, clause.Table.Name, len(rows))
	}
	return rows, declared, nil
}

// scan fetches every row of a table, addressed by the reference's alias.
func (e *Engine) scan(x *execution, ref query.TableRef) (*table.Handle, []*core.Row, error) {
	handle, err := e.open(x, ref.Name)
	if err != nil {
		return nil, nil, err
	}
	rows, err := handle.Rows(x.ctx)
	if err != nil {
		return nil, nil, err
	}
	if ref.Alias != "" {
		for _, row := range rows {
			row.SetQualifier(ref.Alias)
		}
	}
	x.result.Tracef("scan: %s -> %d rows", handle.Name(), len(rows))
	return handle, rows, nil
}

func appendUnique(dst, names []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, n := range dst {
		seen[strings.ToLower(n)] = true
	}
	for _, n := range names {
		if !seen[strings.ToLower(n)] {
			seen[strings.ToLower(n)] = true
			dst = append(dst, n)
		}
	}
	return dst
}
