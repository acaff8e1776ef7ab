package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// DefinitionValidator checks table definitions before they are persisted.
type DefinitionValidator struct{}

// NewDefinitionValidator creates a new definition validator.
func NewDefinitionValidator() *DefinitionValidator {
	return &DefinitionValidator{}
}

// ValidateTable checks that a table has a name, at least one column, unique
// column names, and constraints that only reference its own columns.
func (dv *DefinitionValidator) ValidateTable(def TableDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: table name cannot be empty", core.ErrInvalidDefinition)
	}
	if len(def.Columns) == 0 {
		return fmt.Errorf("%w: table %s must declare at least one column", core.ErrInvalidDefinition, def.Name)
	}

	seen := make(map[string]bool, len(def.Columns))
	for _, col := range def.Columns {
		if err := dv.ValidateColumn(col); err != nil {
			return fmt.Errorf("table %s: %w", def.Name, err)
		}
		key := strings.ToLower(col.Name)
		if seen[key] {
			return fmt.Errorf("%w: table %s: duplicate column %s", core.ErrInvalidDefinition, def.Name, col.Name)
		}
		seen[key] = true
	}

	for _, con := range def.Constraints {
		if len(con.Columns) == 0 {
			return fmt.Errorf("%w: table %s: %s constraint has no columns", core.ErrInvalidDefinition, def.Name, con.Type)
		}
		for _, name := range con.Columns {
			if !seen[strings.ToLower(name)] {
				return fmt.Errorf("%w: table %s: %s constraint references unknown column %s", core.ErrInvalidDefinition, def.Name, con.Type, name)
			}
		}
	}
	return nil
}

// ValidateColumn checks a single column definition.
func (dv *DefinitionValidator) ValidateColumn(col ColumnDefinition) error {
	if strings.TrimSpace(col.Name) == "" {
		return fmt.Errorf("%w: column name cannot be empty", core.ErrInvalidDefinition)
	}
	if col.Name == core.DocIDColumn {
		return fmt.Errorf("%w: column name %s is reserved", core.ErrInvalidDefinition, core.DocIDColumn)
	}
	if col.PrimaryKey && col.HasDefault && col.Default == nil {
		return fmt.Errorf("%w: primary key column %s cannot default to NULL", core.ErrInvalidDefinition, col.Name)
	}
	return nil
}
