package docsql

import (
	"github.com/rzpsarthak13/docsql/internal/core"
)

// Scope identifies the tenant and project a statement runs in. Both are required.
type Scope = core.Scope

// Result is the outcome of the last statement of an Execute call.
type Result = core.Result

// Row is one result row. Its fields keep the order the query produced them in.
type Row = core.Row

// ChangeEvent describes one write, as delivered to a relay handler.
type ChangeEvent = core.ChangeEvent

// Table metadata as stored in the catalog.
type (
	TableMeta      = core.TableMeta
	ColumnMeta     = core.ColumnMeta
	ConstraintMeta = core.ConstraintMeta
)

// TableInfo describes one table of a scope.
type TableInfo struct {
	Table       *TableMeta
	Columns     []ColumnMeta
	Constraints []ConstraintMeta
}
