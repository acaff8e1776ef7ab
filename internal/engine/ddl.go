package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/query"
	"github.com/rzpsarthak13/docsql/internal/schema"
	"github.com/rzpsarthak13/docsql/internal/table"
)

func (e *Engine) execCreate(x *execution, stmt *query.CreateTableStmt) error {
	def := schema.TableDefinition{Name: stmt.Table}
	for _, col := range stmt.Columns {
		cd, err := e.columnDefinition(x, col)
		if err != nil {
			return err
		}
		def.Columns = append(def.Columns, cd)
		if col.Unique {
			def.Constraints = append(def.Constraints, schema.ConstraintDefinition{
				Name:    col.Name,
				Type:    core.ConstraintUnique,
				Columns: []string{col.Name},
			})
		}
	}
	for _, con := range stmt.Constraints {
		def.Constraints = append(def.Constraints, constraintDefinition(con))
	}

	meta, warnings, err := e.catalog.CreateTable(x.ctx, x.scope, def)
	if err != nil {
		if stmt.IfNotExists && errors.Is(err, core.ErrTableExists) {
			x.result.Message = fmt.Sprintf("Table %s already exists.", stmt.Table)
			x.result.Tracef("create: %s exists, skipped", stmt.Table)
			return nil
		}
		return err
	}
	for _, w := range warnings {
		x.warn(w)
	}

	table.New(x.scope, meta, nil, e.store, e.handleOptions(x)...).Announce(x.ctx, core.OperationCreateTable)
	x.result.Message = fmt.Sprintf("Table %s created.", meta.Name)
	x.result.Tracef("create: %s with %d columns", meta.Name, len(def.Columns))
	return nil
}

func (e *Engine) execDrop(x *execution, stmt *query.DropTableStmt) error {
	dropped := make([]string, 0, len(stmt.Tables))
	for _, name := range stmt.Tables {
		meta, err := e.catalog.ResolveTable(x.ctx, x.scope, name)
		if err != nil {
			if stmt.IfExists && errors.Is(err, core.ErrTableNotFound) {
				x.result.Tracef("drop: %s does not exist, skipped", name)
				continue
			}
			return err
		}
		if err := e.catalog.DropTable(x.ctx, x.scope, meta); err != nil {
			return err
		}
		table.New(x.scope, meta, nil, e.store, e.handleOptions(x)...).Announce(x.ctx, core.OperationDropTable)
		x.result.Tracef("drop: %s", meta.Name)
		dropped = append(dropped, meta.Name)
	}

	switch len(dropped) {
	case 0:
		x.result.Message = "No tables dropped."
	case 1:
		x.result.Message = fmt.Sprintf("Table %s dropped.", dropped[0])
	default:
		x.result.Message = fmt.Sprintf("Tables %s dropped.", strings.Join(dropped, ", "))
	}
	return nil
}

func (e *Engine) execAlter(x *execution, stmt *query.AlterTableStmt) error {
	meta, err := e.catalog.ResolveTable(x.ctx, x.scope, stmt.Table)
	if err != nil {
		return err
	}

	for _, action := range stmt.Actions {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		switch a := action.(type) {
		case query.AddColumn:
			def, err := e.columnDefinition(x, a.Column)
			if err != nil {
				return err
			}
			col, warnings, err := e.catalog.AddColumn(x.ctx, x.scope, meta, def)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				x.warn(w)
			}
			if a.Column.PrimaryKey || a.Column.Unique {
				con := schema.ConstraintDefinition{Name: col.Name, Type: core.ConstraintUnique, Columns: []string{col.Name}}
				if a.Column.PrimaryKey {
					con = schema.ConstraintDefinition{Type: core.ConstraintPrimaryKey, Columns: []string{col.Name}}
				}
				if _, err := e.catalog.AddConstraint(x.ctx, x.scope, meta, con); err != nil {
					return err
				}
			}
			x.result.Tracef("alter: %s add column %s %s", meta.Name, col.Name, col.Type)

		case query.DropColumn:
			if err := e.catalog.DropColumn(x.ctx, x.scope, meta, a.Name); err != nil {
				return err
			}
			x.result.Tracef("alter: %s drop column %s", meta.Name, a.Name)

		case query.AddConstraint:
			con, err := e.catalog.AddConstraint(x.ctx, x.scope, meta, constraintDefinition(a.Constraint))
			if err != nil {
				return err
			}
			x.result.Tracef("alter: %s add %s %s", meta.Name, con.Type, con.Name)

		case query.DropConstraint:
			if err := e.catalog.DropConstraint(x.ctx, x.scope, meta, a.Name, a.Type); err != nil {
				return err
			}
			label := a.Name
			if label == "" {
				label = string(a.Type)
			}
			x.result.Tracef("alter: %s drop constraint %s", meta.Name, label)

		case query.RenameTable:
			old := meta.Name
			if err := e.catalog.RenameTable(x.ctx, x.scope, meta, a.NewName); err != nil {
				return err
			}
			x.result.Tracef("alter: rename %s to %s", old, a.NewName)

		default:
			return fmt.Errorf("%w: ALTER TABLE action %T", core.ErrUnsupportedStatement, action)
		}
	}

	table.New(x.scope, meta, nil, e.store, e.handleOptions(x)...).Announce(x.ctx, core.OperationAlterTable)
	x.result.Message = fmt.Sprintf("Table %s altered.", meta.Name)
	return nil
}

// columnDefinition converts a parsed column. DEFAULT expressions are evaluated
// now, except timestamp functions which are stored symbolically and resolved
// on each INSERT.
func (e *Engine) columnDefinition(x *execution, col query.ColumnDef) (schema.ColumnDefinition, error) {
	def := schema.ColumnDefinition{
		Name:       col.Name,
		Type:       col.Type,
		PrimaryKey: col.PrimaryKey,
		NotNull:    col.NotNull,
	}
	if col.Default == nil {
		return def, nil
	}

	def.HasDefault = true
	if fn, ok := col.Default.(*query.FuncCall); ok && isCurrentTimestamp(fn.Name) {
		def.Default = schema.DefaultCurrentTimestamp
		return def, nil
	}
	v, err := x.eval.Eval(col.Default, nil)
	if err != nil {
		return def, fmt.Errorf("column %s default: %w", col.Name, err)
	}
	def.Default = v
	return def, nil
}

func isCurrentTimestamp(name string) bool {
	switch name {
	case "CURRENT_TIMESTAMP", "NOW", "LOCALTIME", "LOCALTIMESTAMP", "CURRENT_DATE", "CURDATE":
		return true
	}
	return false
}

func constraintDefinition(con query.ConstraintDef) schema.ConstraintDefinition {
	return schema.ConstraintDefinition{
		Name:       con.Name,
		Type:       con.Type,
		Columns:    con.Columns,
		RefTable:   con.RefTable,
		RefColumns: con.RefColumns,
		OnDelete:   con.OnDelete,
		OnUpdate:   con.OnUpdate,
	}
}
