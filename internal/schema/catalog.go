package schema

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/rzpsarthak13/docsql/internal/core"
)

var (
	// ErrColumnNotFound is returned when ALTER TABLE names a column the table does not have.
	ErrColumnNotFound = errors.New("column not found")

	// ErrColumnExists is returned when ALTER TABLE ADD COLUMN reuses a name.
	ErrColumnExists = errors.New("column already exists")

	// ErrConstraintNotFound is returned when dropping an unknown constraint.
	ErrConstraintNotFound = errors.New("constraint not found")
)

// TableDefinition describes a table to create.
type TableDefinition struct {
	Name        string
	Description string
	Columns     []ColumnDefinition
	Constraints []ConstraintDefinition
}

// ColumnDefinition describes a column to create. Type is the declared SQL type.
type ColumnDefinition struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	HasDefault bool
	Default    interface{}
}

// ConstraintDefinition describes a constraint to record.
type ConstraintDefinition struct {
	Name       string
	Type       core.ConstraintType
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

// Catalog stores table, column, and constraint metadata as documents in the
// reserved collections of each scope. It is the only writer of metadata.
type Catalog struct {
	store     core.DocumentStore
	mapper    *TypeMapper
	validator *DefinitionValidator
	now       func() time.Time
}

// NewCatalog creates a catalog over a document store.
func NewCatalog(store core.DocumentStore) *Catalog {
	return &Catalog{
		store:     store,
		mapper:    NewTypeMapper(),
		validator: NewDefinitionValidator(),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (c *Catalog) SetClock(now func() time.Time) {
	c.now = now
}

// Mapper returns the catalog's type mapper.
func (c *Catalog) Mapper() *TypeMapper {
	return c.mapper
}

// ListTables returns every table of the scope ordered by name.
func (c *Catalog) ListTables(ctx context.Context, scope core.Scope) ([]*core.TableMeta, error) {
	docs, err := c.store.ListDocuments(ctx, scope, core.TablesCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]*core.TableMeta, 0, len(docs))
	for _, doc := range docs {
		tables = append(tables, tableFromDocument(doc))
	}
	sort.SliceStable(tables, func(i, j int) bool {
		return strings.ToLower(tables[i].Name) < strings.ToLower(tables[j].Name)
	})
	return tables, nil
}

// ResolveTable finds a table by name, case-insensitively.
// Returns an error wrapping core.ErrTableNotFound when no table matches.
func (c *Catalog) ResolveTable(ctx context.Context, scope core.Scope, name string) (*core.TableMeta, error) {
	tables, err := c.ListTables(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, name)
}

// Columns returns the columns of a table ordered by position.
func (c *Catalog) Columns(ctx context.Context, scope core.Scope, tableID string) ([]core.ColumnMeta, error) {
	docs, err := c.store.ListDocuments(ctx, scope, core.ColumnsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}

	var columns []core.ColumnMeta
	for _, doc := range docs {
		if stringField(doc.Fields, "tableId") == tableID {
			columns = append(columns, columnFromDocument(doc))
		}
	}
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Position < columns[j].Position })
	return columns, nil
}

// Constraints returns the constraints recorded for a table.
func (c *Catalog) Constraints(ctx context.Context, scope core.Scope, tableID string) ([]core.ConstraintMeta, error) {
	docs, err := c.store.ListDocuments(ctx, scope, core.ConstraintsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraints: %w", err)
	}

	var constraints []core.ConstraintMeta
	for _, doc := range docs {
		if stringField(doc.Fields, "tableId") == tableID {
			constraints = append(constraints, constraintFromDocument(doc))
		}
	}
	return constraints, nil
}

// CreateTable persists a table, its columns, and its constraints.
// Primary keys declared inline or with a table-level PRIMARY KEY are merged
// into one PRIMARY KEY constraint. Unknown declared types are stored as TEXT
// and reported in the returned warnings.
func (c *Catalog) CreateTable(ctx context.Context, scope core.Scope, def TableDefinition) (*core.TableMeta, []string, error) {
	if err := c.validator.ValidateTable(def); err != nil {
		return nil, nil, err
	}

	if _, err := c.ResolveTable(ctx, scope, def.Name); err == nil {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrTableExists, def.Name)
	} else if !errors.Is(err, core.ErrTableNotFound) {
		return nil, nil, err
	}

	primary := make(map[string]bool)
	var constraints []ConstraintDefinition
	for _, con := range def.Constraints {
		if con.Type == core.ConstraintPrimaryKey {
			for _, name := range con.Columns {
				primary[strings.ToLower(name)] = true
			}
			continue
		}
		constraints = append(constraints, con)
	}
	var pkColumns []string
	for i := range def.Columns {
		col := &def.Columns[i]
		if col.PrimaryKey || primary[strings.ToLower(col.Name)] {
			col.PrimaryKey = true
			pkColumns = append(pkColumns, col.Name)
		}
	}
	if len(pkColumns) > 0 {
		constraints = append([]ConstraintDefinition{{Name: "PRIMARY", Type: core.ConstraintPrimaryKey, Columns: pkColumns}}, constraints...)
	}

	// Coerce defaults before anything is written so a bad default leaves no partial table.
	var warnings []string
	metas := make([]core.ColumnMeta, len(def.Columns))
	for i, col := range def.Columns {
		meta, warning, err := c.columnMeta(col, i)
		if err != nil {
			return nil, nil, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		metas[i] = meta
	}

	now := c.now().UTC()
	table := &core.TableMeta{
		ScopePath:   scope.Path(),
		Name:        def.Name,
		Description: def.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := c.store.AddDocument(ctx, scope, core.TablesCollection, tableDocument(table))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create table %s: %w", def.Name, err)
	}
	table.ID = id

	for _, meta := range metas {
		meta.TableID = id
		if _, err := c.store.AddDocument(ctx, scope, core.ColumnsCollection, columnDocument(meta)); err != nil {
			return nil, nil, fmt.Errorf("failed to create column %s.%s: %w", def.Name, meta.Name, err)
		}
	}
	for _, con := range constraints {
		if _, err := c.store.AddDocument(ctx, scope, core.ConstraintsCollection, constraintDocument(id, con)); err != nil {
			return nil, nil, fmt.Errorf("failed to record constraint on %s: %w", def.Name, err)
		}
	}

	log.Printf("[CATALOG] Created table %s (%s) with %d columns in %s", def.Name, id, len(metas), scope)
	return table, warnings, nil
}

// DropTable deletes a table's rows, columns, constraints, and finally its metadata record.
func (c *Catalog) DropTable(ctx context.Context, scope core.Scope, table *core.TableMeta) error {
	if err := c.store.DeleteCollection(ctx, scope, core.TablesCollection+"/"+table.ID); err != nil {
		return fmt.Errorf("failed to delete rows of %s: %w", table.Name, err)
	}

	for _, collection := range []string{core.ColumnsCollection, core.ConstraintsCollection} {
		docs, err := c.store.ListDocuments(ctx, scope, collection)
		if err != nil {
			return fmt.Errorf("failed to list %s of %s: %w", collection, table.Name, err)
		}
		for _, doc := range docs {
			if stringField(doc.Fields, "tableId") != table.ID {
				continue
			}
			if err := c.store.DeleteDocument(ctx, scope, collection, doc.ID); err != nil {
				return fmt.Errorf("failed to delete %s of %s: %w", collection, table.Name, err)
			}
		}
	}

	if err := c.store.DeleteDocument(ctx, scope, core.TablesCollection, table.ID); err != nil {
		return fmt.Errorf("failed to delete table %s: %w", table.Name, err)
	}

	log.Printf("[CATALOG] Dropped table %s (%s) in %s", table.Name, table.ID, scope)
	return nil
}

// AddColumn appends a column to a table.
func (c *Catalog) AddColumn(ctx context.Context, scope core.Scope, table *core.TableMeta, def ColumnDefinition) (core.ColumnMeta, []string, error) {
	if err := c.validator.ValidateColumn(def); err != nil {
		return core.ColumnMeta{}, nil, err
	}

	columns, err := c.Columns(ctx, scope, table.ID)
	if err != nil {
		return core.ColumnMeta{}, nil, err
	}
	position := 0
	for _, col := range columns {
		if strings.EqualFold(col.Name, def.Name) {
			return core.ColumnMeta{}, nil, fmt.Errorf("%w: %s.%s", ErrColumnExists, table.Name, def.Name)
		}
		if col.Position >= position {
			position = col.Position + 1
		}
	}

	meta, warning, err := c.columnMeta(def, position)
	if err != nil {
		return core.ColumnMeta{}, nil, err
	}
	meta.TableID = table.ID

	id, err := c.store.AddDocument(ctx, scope, core.ColumnsCollection, columnDocument(meta))
	if err != nil {
		return core.ColumnMeta{}, nil, fmt.Errorf("failed to add column %s.%s: %w", table.Name, def.Name, err)
	}
	meta.ID = id

	var warnings []string
	if warning != "" {
		warnings = append(warnings, warning)
	}
	return meta, warnings, c.touch(ctx, scope, table)
}

// DropColumn removes a column's metadata. Values already stored in rows are kept.
func (c *Catalog) DropColumn(ctx context.Context, scope core.Scope, table *core.TableMeta, name string) error {
	columns, err := c.Columns(ctx, scope, table.ID)
	if err != nil {
		return err
	}
	for _, col := range columns {
		if strings.EqualFold(col.Name, name) {
			if err := c.store.DeleteDocument(ctx, scope, core.ColumnsCollection, col.ID); err != nil {
				return fmt.Errorf("failed to drop column %s.%s: %w", table.Name, name, err)
			}
			return c.touch(ctx, scope, table)
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrColumnNotFound, table.Name, name)
}

// AddConstraint records a constraint on a table. A PRIMARY KEY also flags its columns.
func (c *Catalog) AddConstraint(ctx context.Context, scope core.Scope, table *core.TableMeta, def ConstraintDefinition) (core.ConstraintMeta, error) {
	columns, err := c.Columns(ctx, scope, table.ID)
	if err != nil {
		return core.ConstraintMeta{}, err
	}
	byName := make(map[string]core.ColumnMeta, len(columns))
	for _, col := range columns {
		byName[strings.ToLower(col.Name)] = col
	}
	for _, name := range def.Columns {
		if _, ok := byName[strings.ToLower(name)]; !ok {
			return core.ConstraintMeta{}, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, table.Name, name)
		}
	}

	if def.Type == core.ConstraintPrimaryKey {
		if def.Name == "" {
			def.Name = "PRIMARY"
		}
		for _, name := range def.Columns {
			col := byName[strings.ToLower(name)]
			if err := c.store.UpdateDocument(ctx, scope, core.ColumnsCollection, col.ID, map[string]interface{}{"primaryKey": true, "nullable": false}); err != nil {
				return core.ConstraintMeta{}, fmt.Errorf("failed to flag primary key column %s: %w", name, err)
			}
		}
	}

	id, err := c.store.AddDocument(ctx, scope, core.ConstraintsCollection, constraintDocument(table.ID, def))
	if err != nil {
		return core.ConstraintMeta{}, fmt.Errorf("failed to record constraint on %s: %w", table.Name, err)
	}

	meta := core.ConstraintMeta{
		ID:         id,
		TableID:    table.ID,
		Name:       def.Name,
		Type:       def.Type,
		Columns:    def.Columns,
		RefTable:   def.RefTable,
		RefColumns: def.RefColumns,
		OnDelete:   def.OnDelete,
		OnUpdate:   def.OnUpdate,
	}
	return meta, c.touch(ctx, scope, table)
}

// DropConstraint removes a constraint by name, or every constraint of a type when
// name is empty (DROP PRIMARY KEY).
func (c *Catalog) DropConstraint(ctx context.Context, scope core.Scope, table *core.TableMeta, name string, constraintType core.ConstraintType) error {
	constraints, err := c.Constraints(ctx, scope, table.ID)
	if err != nil {
		return err
	}

	dropped := 0
	for _, con := range constraints {
		match := name != "" && strings.EqualFold(con.Name, name)
		if name == "" && con.Type == constraintType {
			match = true
		}
		if !match {
			continue
		}
		if err := c.store.DeleteDocument(ctx, scope, core.ConstraintsCollection, con.ID); err != nil {
			return fmt.Errorf("failed to drop constraint %s: %w", con.Name, err)
		}
		if con.Type == core.ConstraintPrimaryKey {
			if err := c.clearPrimaryKey(ctx, scope, table, con.Columns); err != nil {
				return err
			}
		}
		dropped++
	}
	if dropped == 0 {
		label := name
		if label == "" {
			label = string(constraintType)
		}
		return fmt.Errorf("%w: %s on %s", ErrConstraintNotFound, label, table.Name)
	}
	return c.touch(ctx, scope, table)
}

// RenameTable changes a table's display name. The identifier is unchanged.
func (c *Catalog) RenameTable(ctx context.Context, scope core.Scope, table *core.TableMeta, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return fmt.Errorf("%w: table name cannot be empty", core.ErrInvalidDefinition)
	}
	if existing, err := c.ResolveTable(ctx, scope, newName); err == nil && existing.ID != table.ID {
		return fmt.Errorf("%w: %s", core.ErrTableExists, newName)
	} else if err != nil && !errors.Is(err, core.ErrTableNotFound) {
		return err
	}

	table.Name = newName
	if err := c.store.UpdateDocument(ctx, scope, core.TablesCollection, table.ID, map[string]interface{}{"name": newName}); err != nil {
		return fmt.Errorf("failed to rename table: %w", err)
	}
	return c.touch(ctx, scope, table)
}

func (c *Catalog) clearPrimaryKey(ctx context.Context, scope core.Scope, table *core.TableMeta, names []string) error {
	columns, err := c.Columns(ctx, scope, table.ID)
	if err != nil {
		return err
	}
	for _, col := range columns {
		for _, name := range names {
			if strings.EqualFold(col.Name, name) {
				if err := c.store.UpdateDocument(ctx, scope, core.ColumnsCollection, col.ID, map[string]interface{}{"primaryKey": false}); err != nil {
					return fmt.Errorf("failed to clear primary key flag on %s: %w", col.Name, err)
				}
			}
		}
	}
	return nil
}

func (c *Catalog) touch(ctx context.Context, scope core.Scope, table *core.TableMeta) error {
	table.UpdatedAt = c.now().UTC()
	if err := c.store.UpdateDocument(ctx, scope, core.TablesCollection, table.ID, map[string]interface{}{
		"updatedAt": table.UpdatedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return fmt.Errorf("failed to update table %s: %w", table.Name, err)
	}
	return nil
}

func (c *Catalog) columnMeta(def ColumnDefinition, position int) (core.ColumnMeta, string, error) {
	columnType, known := c.mapper.Normalize(def.Type)
	warning := ""
	if !known {
		warning = fmt.Sprintf("column %s: unknown type %q stored as TEXT", def.Name, def.Type)
	}

	meta := core.ColumnMeta{
		Name:       def.Name,
		Type:       columnType,
		PrimaryKey: def.PrimaryKey,
		Nullable:   !def.NotNull && !def.PrimaryKey,
		Position:   position,
	}
	if def.HasDefault {
		value, err := c.mapper.CoerceDefault(def.Default, columnType)
		if err != nil {
			return core.ColumnMeta{}, "", fmt.Errorf("%w: column %s default: %w", core.ErrInvalidDefinition, def.Name, err)
		}
		meta.Default = value
	}
	return meta, warning, nil
}

func tableDocument(t *core.TableMeta) map[string]interface{} {
	return map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"scopePath":   t.ScopePath,
		"createdAt":   t.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":   t.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func tableFromDocument(doc core.Document) *core.TableMeta {
	return &core.TableMeta{
		ID:          doc.ID,
		ScopePath:   stringField(doc.Fields, "scopePath"),
		Name:        stringField(doc.Fields, "name"),
		Description: stringField(doc.Fields, "description"),
		CreatedAt:   timeField(doc.Fields, "createdAt"),
		UpdatedAt:   timeField(doc.Fields, "updatedAt"),
	}
}

func columnDocument(c core.ColumnMeta) map[string]interface{} {
	doc := map[string]interface{}{
		"tableId":    c.TableID,
		"name":       c.Name,
		"type":       string(c.Type),
		"primaryKey": c.PrimaryKey,
		"nullable":   c.Nullable,
		"position":   c.Position,
	}
	if c.Default != nil {
		doc["default"] = c.Default
	}
	return doc
}

func columnFromDocument(doc core.Document) core.ColumnMeta {
	col := core.ColumnMeta{
		ID:       doc.ID,
		TableID:  stringField(doc.Fields, "tableId"),
		Name:     stringField(doc.Fields, "name"),
		Type:     core.ColumnType(stringField(doc.Fields, "type")),
		Default:  doc.Fields["default"],
		Position: intField(doc.Fields, "position"),
	}
	col.PrimaryKey, _ = doc.Fields["primaryKey"].(bool)
	col.Nullable, _ = doc.Fields["nullable"].(bool)
	return col
}

func constraintDocument(tableID string, def ConstraintDefinition) map[string]interface{} {
	doc := map[string]interface{}{
		"tableId": tableID,
		"name":    def.Name,
		"type":    string(def.Type),
		"columns": def.Columns,
	}
	if def.RefTable != "" {
		doc["refTable"] = def.RefTable
		doc["refColumns"] = def.RefColumns
	}
	if def.OnDelete != "" {
		doc["onDelete"] = def.OnDelete
	}
	if def.OnUpdate != "" {
		doc["onUpdate"] = def.OnUpdate
	}
	return doc
}

func constraintFromDocument(doc core.Document) core.ConstraintMeta {
	return core.ConstraintMeta{
		ID:         doc.ID,
		TableID:    stringField(doc.Fields, "tableId"),
		Name:       stringField(doc.Fields, "name"),
		Type:       core.ConstraintType(stringField(doc.Fields, "type")),
		Columns:    stringsField(doc.Fields, "columns"),
		RefTable:   stringField(doc.Fields, "refTable"),
		RefColumns: stringsField(doc.Fields, "refColumns"),
		OnDelete:   stringField(doc.Fields, "onDelete"),
		OnUpdate:   stringField(doc.Fields, "onUpdate"),
	}
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

func intField(fields map[string]interface{}, key string) int {
	switch v := fields[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func timeField(fields map[string]interface{}, key string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, stringField(fields, key))
	return t
}

func stringsField(fields map[string]interface{}, key string) []string {
	raw, _ := fields[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
