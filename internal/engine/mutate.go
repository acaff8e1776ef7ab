package engine

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/query"
	"github.com/rzpsarthak13/docsql/internal/table"
)

func (e *Engine) execInsert(x *execution, stmt *query.InsertStmt) error {
	handle, err := e.open(x, stmt.Table)
	if err != nil {
		return err
	}

	declared := handle.Columns()
	targets := stmt.Columns
	if len(targets) == 0 {
		targets = handle.ColumnNames()
	}
	targets = canonicalNames(targets, declared)

	for i, tuple := range stmt.Rows {
		if len(tuple) != len(targets) {
			return fmt.Errorf("%w: row %d has %d values for %d columns", core.ErrColumnCount, i+1, len(tuple), len(targets))
		}
	}

	mapper := e.catalog.Mapper()
	inserted := 0
	for _, tuple := range stmt.Rows {
		if err := x.ctx.Err(); err != nil {
			return err
		}

		fields := make(map[string]interface{}, len(declared))
		for i, expr := range tuple {
			col := targets[i]
			if _, ok := expr.(*query.DefaultValue); ok {
				if meta, ok := findColumn(declared, col); ok {
					fields[col] = mapper.ResolveDefault(meta, x.now)
				} else {
					fields[col] = nil
				}
				continue
			}
			v, err := x.eval.Eval(expr, nil)
			if err != nil {
				return err
			}
			fields[col] = v
		}
		for _, col := range declared {
			if _, set := fields[col.Name]; !set && col.Default != nil {
				fields[col.Name] = mapper.ResolveDefault(col, x.now)
			}
		}

		if _, err := handle.Insert(x.ctx, fields); err != nil {
			return err
		}
		inserted++
	}

	x.result.RowsAffected = inserted
	x.result.Message = fmt.Sprintf("%d rows inserted.", inserted)
	x.result.Tracef("insert: %s <- %d rows", handle.Name(), inserted)
	return nil
}

func (e *Engine) execUpdate(x *execution, stmt *query.UpdateStmt) error {
	handle, matched, err := e.matchRows(x, stmt.Table, stmt.Where, stmt.Limit)
	if err != nil {
		return err
	}
	targets := make([]string, len(stmt.Set))
	for i, a := range stmt.Set {
		targets[i] = a.Column
	}
	targets = canonicalNames(targets, handle.Columns())

	updated := 0
	for _, row := range matched {
		if err := x.ctx.Err(); err != nil {
			return err
		}

		fields := make(map[string]interface{}, len(stmt.Set))
		for i, a := range stmt.Set {
			if _, ok := a.Value.(*query.DefaultValue); ok {
				fields[targets[i]] = nil
				if meta, ok := findColumn(handle.Columns(), targets[i]); ok {
					fields[targets[i]] = e.catalog.Mapper().ResolveDefault(meta, x.now)
				}
				continue
			}
			v, err := x.eval.Eval(a.Value, row)
			if err != nil {
				return err
			}
			fields[targets[i]] = v
		}
		if err := handle.Update(x.ctx, row.ID, fields); err != nil {
			return err
		}
		updated++
	}

	x.result.RowsAffected = updated
	x.result.Message = fmt.Sprintf("%d rows updated.", updated)
	x.result.Tracef("update: %s -> %d rows", handle.Name(), updated)
	return nil
}

func (e *Engine) execDelete(x *execution, stmt *query.DeleteStmt) error {
	handle, matched, err := e.matchRows(x, stmt.Table, stmt.Where, stmt.Limit)
	if err != nil {
		return err
	}

	deleted := 0
	for _, row := range matched {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		if err := handle.Delete(x.ctx, row.ID); err != nil {
			return err
		}
		deleted++
	}

	x.result.RowsAffected = deleted
	x.result.Message = fmt.Sprintf("%d rows deleted.", deleted)
	x.result.Tracef("delete: %s -> %d rows", handle.Name(), deleted)
	return nil
}

// matchRows fetches the rows of a table that satisfy where, in storage order,
// truncated to limit.
func (e *Engine) matchRows(x *execution, ref query.TableRef, where query.Expr, limit *query.LimitClause) (*table.Handle, []*core.Row, error) {
	handle, rows, err := e.scan(x, ref)
	if err != nil {
		return nil, nil, err
	}

	matched, err := x.eval.Filter(where, rows)
	if err != nil {
		return nil, nil, err
	}
	if limit != nil && int64(len(matched)) > limit.Count {
		matched = matched[:limit.Count]
	}
	return handle, matched, nil
}

// canonicalNames maps names onto the declared spelling of matching columns.
// Undeclared names are kept as written.
func canonicalNames(names []string, declared []core.ColumnMeta) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = name
		if col, ok := findColumn(declared, name); ok {
			out[i] = col.Name
		}
	}
	return out
}

func findColumn(columns []core.ColumnMeta, name string) (core.ColumnMeta, bool) {
	for _, col := range columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return core.ColumnMeta{}, false
}
