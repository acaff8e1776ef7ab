package core

import "time"

// ColumnType is one of the declared column types. Types are advisory.
type ColumnType string

const (
	TypeInt       ColumnType = "INT"
	TypeVarchar   ColumnType = "VARCHAR"
	TypeBoolean   ColumnType = "BOOLEAN"
	TypeDate      ColumnType = "DATE"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeFloat     ColumnType = "FLOAT"
	TypeText      ColumnType = "TEXT"
)

// ConstraintType identifies the kind of a recorded constraint.
type ConstraintType string

const (
	ConstraintPrimaryKey ConstraintType = "PRIMARY KEY"
	ConstraintForeignKey ConstraintType = "FOREIGN KEY"
	ConstraintUnique     ConstraintType = "UNIQUE"
)

// TableMeta is the metadata record of a table.
type TableMeta struct {
	// ID is the immutable identifier; it also names the row collection.
	ID string

	// ScopePath is the storage path of the owning scope.
	ScopePath string

	// Name is the display name used by SQL statements.
	Name string

	// Description is free text.
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ColumnMeta is the metadata record of a column.
type ColumnMeta struct {
	ID         string
	TableID    string
	Name       string
	Type       ColumnType
	PrimaryKey bool
	Nullable   bool

	// Default is nil when the column has no default.
	Default interface{}

	// Position orders the columns of a table.
	Position int
}

// ConstraintMeta is the metadata record of a constraint. Constraints are not
// enforced at write time.
type ConstraintMeta struct {
	ID         string
	TableID    string
	Name       string
	Type       ConstraintType
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

// ColumnNames returns the names of the given columns in order.
func ColumnNames(columns []ColumnMeta) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}
