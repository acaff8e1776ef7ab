package query

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/rzpsarthak13/docsql/internal/core"
)

var (
	alterTablePattern  = regexp.MustCompile(`(?i)^\s*alter\s+(ignore\s+)?table\s`)
	createTablePattern = regexp.MustCompile(`(?i)^\s*create\s+(temporary\s+)?table\s`)
	dropTablePattern   = regexp.MustCompile(`(?i)^\s*drop\s+(temporary\s+)?table\s`)
	ifNotExistsPattern = regexp.MustCompile(`(?i)^\s*create\s+(temporary\s+)?table\s+if\s+not\s+exists\s`)
	ifExistsPattern    = regexp.MustCompile(`(?i)^\s*drop\s+(temporary\s+)?table\s+if\s+exists\s`)
)

var aggregateFuncs = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

var comparisonOps = map[string]Operator{
	sqlparser.EqualStr:         OpEq,
	sqlparser.NotEqualStr:      OpNe,
	sqlparser.LessThanStr:      OpLt,
	sqlparser.GreaterThanStr:   OpGt,
	sqlparser.LessEqualStr:     OpLe,
	sqlparser.GreaterEqualStr:  OpGe,
	sqlparser.NullSafeEqualStr: OpNullSafeEq,
	sqlparser.LikeStr:          OpLike,
	sqlparser.NotLikeStr:       OpNotLike,
	sqlparser.RegexpStr:        OpRegexp,
	sqlparser.NotRegexpStr:     OpNotRegexp,
}

// Parser converts SQL text into the statement types of this package. It is the
// only place that knows about the third-party syntax tree; nodes it cannot map
// are rejected with core.ErrSyntax.
type Parser struct {
	dialectFallback bool
}

// NewParser creates a parser. With dialectFallback enabled, a statement the
// MySQL grammar rejects is retried after rewriting ANSI identifiers and casts.
func NewParser(dialectFallback bool) *Parser {
	return &Parser{dialectFallback: dialectFallback}
}

// Parse parses a single statement.
func (p *Parser) Parse(sql string) (Statement, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("%w: empty statement", core.ErrSyntax)
	}

	if alterTablePattern.MatchString(sql) {
		return p.parseAlter(sql)
	}

	text := sql
	var foreignKeys []ConstraintDef
	if createTablePattern.MatchString(sql) {
		var err error
		text, foreignKeys, err = extractForeignKeys(sql)
		if err != nil {
			return nil, err
		}
	}

	node, err := p.parseNode(text)
	if err != nil {
		return nil, err
	}
	stmt, err := convertStatement(node, sql)
	if err != nil {
		return nil, err
	}
	if create, ok := stmt.(*CreateTableStmt); ok {
		create.Constraints = append(create.Constraints, foreignKeys...)
	}
	return stmt, nil
}

func (p *Parser) parseNode(sql string) (sqlparser.Statement, error) {
	node, err := sqlparser.ParseStrictDDL(sql)
	if err == nil {
		return node, nil
	}
	if p.dialectFallback {
		if rewritten := ansiRewrite(sql); rewritten != sql {
			if retried, retryErr := sqlparser.ParseStrictDDL(rewritten); retryErr == nil {
				return retried, nil
			}
		}
	}

	switch sqlparser.Preview(sql) {
	case sqlparser.StmtSelect, sqlparser.StmtInsert, sqlparser.StmtUpdate,
		sqlparser.StmtDelete, sqlparser.StmtDDL, sqlparser.StmtUnknown:
		return nil, fmt.Errorf("%w: %v", core.ErrSyntax, err)
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedStatement, sqlparser.StmtType(sqlparser.Preview(sql)))
	}
}

func convertStatement(node sqlparser.Statement, raw string) (Statement, error) {
	switch s := node.(type) {
	case *sqlparser.Select:
		return convertSelect(s)
	case *sqlparser.Union:
		return nil, fmt.Errorf("%w: UNION", core.ErrUnsupportedStatement)
	case *sqlparser.Insert:
		if s.Action == sqlparser.ReplaceStr {
			return nil, fmt.Errorf("%w: REPLACE", core.ErrUnsupportedStatement)
		}
		return convertInsert(s)
	case *sqlparser.Update:
		return convertUpdate(s)
	case *sqlparser.Delete:
		return convertDelete(s)
	case *sqlparser.DDL:
		return convertDDL(s, raw)
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedStatement, sqlparser.StmtType(sqlparser.Preview(raw)))
	}
}

func convertSelect(s *sqlparser.Select) (*SelectStmt, error) {
	stmt := &SelectStmt{Distinct: s.Distinct != ""}

	for _, item := range s.SelectExprs {
		converted, err := convertSelectItem(item)
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, converted)
	}

	if !isDual(s.From) {
		from, joins, err := convertTableExprs(s.From)
		if err != nil {
			return nil, err
		}
		stmt.From = from
		stmt.Joins = joins
	}

	var err error
	if stmt.Where, err = convertWhere(s.Where); err != nil {
		return nil, err
	}
	for _, g := range s.GroupBy {
		expr, err := convertExpr(g)
		if err != nil {
			return nil, err
		}
		stmt.GroupBy = append(stmt.GroupBy, expr)
	}
	if stmt.Having, err = convertWhere(s.Having); err != nil {
		return nil, err
	}
	if stmt.OrderBy, err = convertOrderBy(s.OrderBy); err != nil {
		return nil, err
	}
	if stmt.Limit, err = convertLimit(s.Limit); err != nil {
		return nil, err
	}
	return stmt, nil
}

func convertSelectItem(item sqlparser.SelectExpr) (SelectItem, error) {
	switch e := item.(type) {
	case *sqlparser.StarExpr:
		return SelectItem{Star: true, StarTable: e.TableName.Name.String()}, nil
	case *sqlparser.AliasedExpr:
		expr, err := convertExpr(e.Expr)
		if err != nil {
			return SelectItem{}, err
		}
		return SelectItem{Expr: expr, Alias: e.As.String(), Text: sqlparser.String(e.Expr)}, nil
	default:
		return SelectItem{}, fmt.Errorf("%w: unsupported select expression %s", core.ErrSyntax, sqlparser.String(item))
	}
}

func isDual(from sqlparser.TableExprs) bool {
	if len(from) != 1 {
		return false
	}
	aliased, ok := from[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return false
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	return ok && name.Qualifier.IsEmpty() && strings.EqualFold(name.Name.String(), "dual")
}

// convertTableExprs flattens a FROM clause into the first table and the joins
// applied to it in order. Comma-separated tables become cross joins.
func convertTableExprs(exprs sqlparser.TableExprs) (*TableRef, []JoinClause, error) {
	var (
		from  *TableRef
		joins []JoinClause
	)
	for i, te := range exprs {
		ref, nested, err := convertTableExpr(te)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			from = ref
		} else {
			joins = append(joins, JoinClause{Kind: JoinCross, Table: *ref})
		}
		joins = append(joins, nested...)
	}
	return from, joins, nil
}

func convertTableExpr(te sqlparser.TableExpr) (*TableRef, []JoinClause, error) {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		name, ok := t.Expr.(sqlparser.TableName)
		if !ok {
			return nil, nil, fmt.Errorf("%w: derived tables are not supported", core.ErrSyntax)
		}
		return &TableRef{Name: name.Name.String(), Alias: t.As.String()}, nil, nil

	case *sqlparser.ParenTableExpr:
		return convertTableExprs(t.Exprs)

	case *sqlparser.JoinTableExpr:
		left, joins, err := convertTableExpr(t.LeftExpr)
		if err != nil {
			return nil, nil, err
		}
		right, nested, err := convertTableExpr(t.RightExpr)
		if err != nil {
			return nil, nil, err
		}
		if len(nested) > 0 {
			return nil, nil, fmt.Errorf("%w: nested joins on the right side are not supported", core.ErrSyntax)
		}

		join := JoinClause{Table: *right}
		if join.On, err = convertExpr(t.Condition.On); err != nil {
			return nil, nil, err
		}
		for _, col := range t.Condition.Using {
			join.Using = append(join.Using, col.String())
		}
		join.Kind = joinKind(t.Join, join.On == nil && len(join.Using) == 0)
		return left, append(joins, join), nil

	default:
		return nil, nil, fmt.Errorf("%w: unsupported table expression %s", core.ErrSyntax, sqlparser.String(te))
	}
}

func joinKind(join string, unconditioned bool) JoinKind {
	switch join {
	case sqlparser.LeftJoinStr:
		return JoinLeft
	case sqlparser.RightJoinStr:
		return JoinRight
	case sqlparser.NaturalJoinStr, sqlparser.NaturalLeftJoinStr, sqlparser.NaturalRightJoinStr:
		return JoinNatural
	}
	if unconditioned {
		return JoinCross
	}
	return JoinInner
}

func convertWhere(w *sqlparser.Where) (Expr, error) {
	if w == nil {
		return nil, nil
	}
	return convertExpr(w.Expr)
}

func convertOrderBy(order sqlparser.OrderBy) ([]OrderItem, error) {
	var items []OrderItem
	for _, o := range order {
		expr, err := convertExpr(o.Expr)
		if err != nil {
			return nil, err
		}
		items = append(items, OrderItem{Expr: expr, Desc: o.Direction == sqlparser.DescScr})
	}
	return items, nil
}

func convertLimit(limit *sqlparser.Limit) (*LimitClause, error) {
	if limit == nil {
		return nil, nil
	}
	out := &LimitClause{}
	var err error
	if out.Count, err = limitValue(limit.Rowcount); err != nil {
		return nil, err
	}
	if limit.Offset != nil {
		if out.Offset, err = limitValue(limit.Offset); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func limitValue(e sqlparser.Expr) (int64, error) {
	expr, err := convertExpr(e)
	if err != nil {
		return 0, err
	}
	lit, ok := expr.(*Literal)
	if !ok {
		return 0, fmt.Errorf("%w: LIMIT requires an integer", core.ErrSyntax)
	}
	n, ok := lit.Value.(int64)
	if !ok || n < 0 {
		return 0, fmt.Errorf("%w: LIMIT requires a non-negative integer", core.ErrSyntax)
	}
	return n, nil
}

func convertInsert(s *sqlparser.Insert) (*InsertStmt, error) {
	if len(s.OnDup) > 0 {
		return nil, fmt.Errorf("%w: ON DUPLICATE KEY UPDATE is not supported", core.ErrSyntax)
	}
	values, ok := s.Rows.(sqlparser.Values)
	if !ok {
		return nil, fmt.Errorf("%w: INSERT ... SELECT is not supported", core.ErrSyntax)
	}

	stmt := &InsertStmt{Table: s.Table.Name.String()}
	for _, col := range s.Columns {
		stmt.Columns = append(stmt.Columns, col.String())
	}
	for _, tuple := range values {
		row := make([]Expr, 0, len(tuple))
		for _, v := range tuple {
			expr, err := convertExpr(v)
			if err != nil {
				return nil, err
			}
			row = append(row, expr)
		}
		stmt.Rows = append(stmt.Rows, row)
	}
	return stmt, nil
}

func convertUpdate(s *sqlparser.Update) (*UpdateStmt, error) {
	table, err := singleTable(s.TableExprs, "UPDATE")
	if err != nil {
		return nil, err
	}

	stmt := &UpdateStmt{Table: *table}
	for _, set := range s.Exprs {
		value, err := convertExpr(set.Expr)
		if err != nil {
			return nil, err
		}
		stmt.Set = append(stmt.Set, Assignment{Column: set.Name.Name.String(), Value: value})
	}
	if stmt.Where, err = convertWhere(s.Where); err != nil {
		return nil, err
	}
	if stmt.Limit, err = convertLimit(s.Limit); err != nil {
		return nil, err
	}
	return stmt, nil
}

func convertDelete(s *sqlparser.Delete) (*DeleteStmt, error) {
	if len(s.Targets) > 0 {
		return nil, fmt.Errorf("%w: multi-table DELETE is not supported", core.ErrSyntax)
	}
	table, err := singleTable(s.TableExprs, "DELETE")
	if err != nil {
		return nil, err
	}

	stmt := &DeleteStmt{Table: *table}
	if stmt.Where, err = convertWhere(s.Where); err != nil {
		return nil, err
	}
	if stmt.Limit, err = convertLimit(s.Limit); err != nil {
		return nil, err
	}
	return stmt, nil
}

func singleTable(exprs sqlparser.TableExprs, verb string) (*TableRef, error) {
	from, joins, err := convertTableExprs(exprs)
	if err != nil {
		return nil, err
	}
	if from == nil || len(joins) > 0 {
		return nil, fmt.Errorf("%w: multi-table %s is not supported", core.ErrSyntax, verb)
	}
	return from, nil
}

func convertDDL(d *sqlparser.DDL, raw string) (Statement, error) {
	switch d.Action {
	case sqlparser.CreateStr:
		if d.TableSpec == nil || !createTablePattern.MatchString(raw) {
			return nil, fmt.Errorf("%w: CREATE without a column list", core.ErrUnsupportedStatement)
		}
		return convertCreate(d, raw)

	case sqlparser.DropStr:
		if !dropTablePattern.MatchString(raw) {
			return nil, fmt.Errorf("%w: DROP of a non-table object", core.ErrUnsupportedStatement)
		}
		return &DropTableStmt{Tables: []string{ddlTableName(d)}, IfExists: ifExistsPattern.MatchString(raw)}, nil

	case sqlparser.RenameStr:
		return &AlterTableStmt{
			Table:   d.Table.Name.String(),
			Actions: []AlterAction{RenameTable{NewName: d.NewName.Name.String()}},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedStatement, strings.ToUpper(d.Action))
	}
}

func ddlTableName(d *sqlparser.DDL) string {
	if name := d.Table.Name.String(); name != "" {
		return name
	}
	return d.NewName.Name.String()
}

func convertCreate(d *sqlparser.DDL, raw string) (*CreateTableStmt, error) {
	stmt := &CreateTableStmt{
		Table:       ddlTableName(d),
		IfNotExists: ifNotExistsPattern.MatchString(raw),
	}
	for _, col := range d.TableSpec.Columns {
		def, err := convertColumn(col)
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, def)
	}
	for _, idx := range d.TableSpec.Indexes {
		if con, ok := convertIndex(idx); ok {
			stmt.Constraints = append(stmt.Constraints, con)
		}
	}
	return stmt, nil
}

func convertColumn(col *sqlparser.ColumnDefinition) (ColumnDef, error) {
	def := ColumnDef{
		Name:    col.Name.String(),
		Type:    declaredType(col.Type),
		NotNull: bool(col.Type.NotNull),
	}

	// Key options are rendered last, after any default or comment.
	buf := sqlparser.NewTrackedBuffer(nil)
	col.Type.Format(buf)
	opts := strings.ToLower(buf.String())
	switch {
	case strings.HasSuffix(opts, " primary key"):
		def.PrimaryKey = true
	case strings.HasSuffix(opts, " unique key"), strings.HasSuffix(opts, " unique"):
		def.Unique = true
	}

	if col.Type.Default != nil {
		expr, err := convertDefault(col.Type.Default)
		if err != nil {
			return ColumnDef{}, fmt.Errorf("column %s: %w", def.Name, err)
		}
		def.Default = expr
	}
	return def, nil
}

func declaredType(ct sqlparser.ColumnType) string {
	t := strings.ToUpper(ct.Type)
	if ct.Length != nil {
		t += "(" + string(ct.Length.Val)
		if ct.Scale != nil {
			t += "," + string(ct.Scale.Val)
		}
		t += ")"
	}
	if ct.Unsigned {
		t += " UNSIGNED"
	}
	return t
}

// convertDefault maps a column DEFAULT. The grammar delivers DEFAULT NULL and
// DEFAULT CURRENT_TIMESTAMP as value arguments carrying the keyword.
func convertDefault(v *sqlparser.SQLVal) (Expr, error) {
	if v.Type == sqlparser.ValArg {
		switch strings.ToLower(string(v.Val)) {
		case "null":
			return &Literal{Value: nil}, nil
		case "current_timestamp", "now()", "localtime", "localtimestamp":
			return &FuncCall{Name: "CURRENT_TIMESTAMP"}, nil
		}
	}
	return convertSQLVal(v)
}

func convertIndex(idx *sqlparser.IndexDefinition) (ConstraintDef, bool) {
	columns := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		columns[i] = c.Column.String()
	}
	switch {
	case idx.Info.Primary:
		return ConstraintDef{Name: "PRIMARY", Type: core.ConstraintPrimaryKey, Columns: columns}, true
	case idx.Info.Unique:
		return ConstraintDef{Name: idx.Info.Name.String(), Type: core.ConstraintUnique, Columns: columns}, true
	}
	return ConstraintDef{}, false
}

func convertExpr(e sqlparser.Expr) (Expr, error) {
	switch x := e.(type) {
	case nil:
		return nil, nil

	case *sqlparser.AndExpr:
		return convertLogical(OpAnd, x.Left, x.Right)
	case *sqlparser.OrExpr:
		return convertLogical(OpOr, x.Left, x.Right)
	case *sqlparser.NotExpr:
		inner, err := convertExpr(x.Expr)
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	case *sqlparser.ParenExpr:
		return convertExpr(x.Expr)

	case *sqlparser.ComparisonExpr:
		return convertComparison(x)
	case *sqlparser.RangeCond:
		left, err := convertExpr(x.Left)
		if err != nil {
			return nil, err
		}
		from, err := convertExpr(x.From)
		if err != nil {
			return nil, err
		}
		to, err := convertExpr(x.To)
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{Expr: left, From: from, To: to, Not: x.Operator == sqlparser.NotBetweenStr}, nil
	case *sqlparser.IsExpr:
		inner, err := convertExpr(x.Expr)
		if err != nil {
			return nil, err
		}
		return &IsExpr{Expr: inner, Op: Operator(x.Operator)}, nil

	case *sqlparser.SQLVal:
		return convertSQLVal(x)
	case *sqlparser.NullVal:
		return &Literal{Value: nil}, nil
	case sqlparser.BoolVal:
		return &Literal{Value: bool(x)}, nil
	case *sqlparser.ColName:
		return &ColumnRef{Qualifier: x.Qualifier.Name.String(), Name: x.Name.String()}, nil

	case *sqlparser.BinaryExpr:
		left, err := convertExpr(x.Left)
		if err != nil {
			return nil, err
		}
		right, err := convertExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: Operator(x.Operator), Left: left, Right: right}, nil
	case *sqlparser.UnaryExpr:
		inner, err := convertExpr(x.Expr)
		if err != nil {
			return nil, err
		}
		switch x.Operator {
		case sqlparser.UMinusStr:
			return &UnaryExpr{Op: OpNeg, Expr: inner}, nil
		case sqlparser.UPlusStr:
			return &UnaryExpr{Op: OpPos, Expr: inner}, nil
		case sqlparser.BangStr:
			return &UnaryExpr{Op: OpNot, Expr: inner}, nil
		case sqlparser.BinaryStr, sqlparser.UBinaryStr:
			return inner, nil
		}
		return &UnaryExpr{Op: Operator(strings.TrimSpace(x.Operator)), Expr: inner}, nil
	case *sqlparser.CollateExpr:
		return convertExpr(x.Expr)

	case *sqlparser.FuncExpr:
		return convertFunc(x)
	case *sqlparser.CaseExpr:
		return convertCase(x)
	case *sqlparser.ConvertExpr:
		inner, err := convertExpr(x.Expr)
		if err != nil {
			return nil, err
		}
		return &CastExpr{Expr: inner, Type: strings.ToUpper(x.Type.Type)}, nil
	case *sqlparser.ConvertUsingExpr:
		return convertExpr(x.Expr)

	case *sqlparser.Default:
		return &DefaultValue{}, nil

	case *sqlparser.Subquery, *sqlparser.ExistsExpr:
		return nil, fmt.Errorf("%w: subqueries are not supported", core.ErrSyntax)
	case sqlparser.ValTuple:
		return nil, fmt.Errorf("%w: row constructors are not supported", core.ErrSyntax)
	}

	return nil, fmt.Errorf("%w: unsupported expression %s", core.ErrSyntax, sqlparser.String(e))
}

func convertLogical(op Operator, l, r sqlparser.Expr) (Expr, error) {
	left, err := convertExpr(l)
	if err != nil {
		return nil, err
	}
	right, err := convertExpr(r)
	if err != nil {
		return nil, err
	}
	return &LogicalExpr{Op: op, Left: left, Right: right}, nil
}

func convertComparison(x *sqlparser.ComparisonExpr) (Expr, error) {
	left, err := convertExpr(x.Left)
	if err != nil {
		return nil, err
	}

	if x.Operator == sqlparser.InStr || x.Operator == sqlparser.NotInStr {
		tuple, ok := x.Right.(sqlparser.ValTuple)
		if !ok {
			return nil, fmt.Errorf("%w: IN requires a value list", core.ErrSyntax)
		}
		in := &InExpr{Expr: left, Not: x.Operator == sqlparser.NotInStr}
		for _, v := range tuple {
			item, err := convertExpr(v)
			if err != nil {
				return nil, err
			}
			in.List = append(in.List, item)
		}
		return in, nil
	}

	right, err := convertExpr(x.Right)
	if err != nil {
		return nil, err
	}
	op, ok := comparisonOps[x.Operator]
	if !ok {
		op = Operator(x.Operator)
	}
	return &ComparisonExpr{Op: op, Left: left, Right: right}, nil
}

func convertFunc(f *sqlparser.FuncExpr) (Expr, error) {
	name := strings.ToUpper(f.Name.String())

	if aggregateFuncs[name] {
		if len(f.Exprs) != 1 {
			return nil, fmt.Errorf("%w: %s expects exactly one argument", core.ErrSyntax, name)
		}
		call := &AggregateCall{Func: name, Distinct: f.Distinct}
		switch arg := f.Exprs[0].(type) {
		case *sqlparser.StarExpr:
			if name != "COUNT" || f.Distinct {
				return nil, fmt.Errorf("%w: %s(*) is not valid", core.ErrSyntax, name)
			}
			call.Star = true
		case *sqlparser.AliasedExpr:
			expr, err := convertExpr(arg.Expr)
			if err != nil {
				return nil, err
			}
			call.Arg = expr
			call.ArgText = sqlparser.String(arg.Expr)
		default:
			return nil, fmt.Errorf("%w: unsupported argument to %s", core.ErrSyntax, name)
		}
		return call, nil
	}

	if f.Distinct {
		return nil, fmt.Errorf("%w: DISTINCT is only valid inside aggregate functions", core.ErrSyntax)
	}
	call := &FuncCall{Name: name}
	for _, arg := range f.Exprs {
		aliased, ok := arg.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported argument to %s", core.ErrSyntax, name)
		}
		expr, err := convertExpr(aliased.Expr)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, expr)
	}
	return call, nil
}

func convertCase(c *sqlparser.CaseExpr) (Expr, error) {
	out := &CaseExpr{}
	var err error
	if out.Operand, err = convertExpr(c.Expr); err != nil {
		return nil, err
	}
	for _, w := range c.Whens {
		cond, err := convertExpr(w.Cond)
		if err != nil {
			return nil, err
		}
		result, err := convertExpr(w.Val)
		if err != nil {
			return nil, err
		}
		out.Whens = append(out.Whens, WhenClause{Cond: cond, Result: result})
	}
	if out.Else, err = convertExpr(c.Else); err != nil {
		return nil, err
	}
	return out, nil
}

func convertSQLVal(v *sqlparser.SQLVal) (Expr, error) {
	raw := string(v.Val)
	switch v.Type {
	case sqlparser.StrVal:
		return &Literal{Value: raw}, nil

	case sqlparser.IntVal:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &Literal{Value: n}, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %s", core.ErrSyntax, raw)
		}
		return &Literal{Value: f}, nil

	case sqlparser.FloatVal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %s", core.ErrSyntax, raw)
		}
		return &Literal{Value: f}, nil

	case sqlparser.HexNum:
		digits := strings.TrimPrefix(strings.ToLower(raw), "0x")
		n, err := strconv.ParseInt(digits, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex number %s", core.ErrSyntax, raw)
		}
		return &Literal{Value: n}, nil

	case sqlparser.HexVal:
		digits := strings.Trim(strings.TrimPrefix(strings.ToLower(raw), "x"), "'")
		decoded, err := hex.DecodeString(digits)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex literal %s", core.ErrSyntax, raw)
		}
		return &Literal{Value: string(decoded)}, nil

	case sqlparser.BitVal:
		digits := strings.Trim(strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(raw), "0b"), "b"), "'")
		n, err := strconv.ParseInt(digits, 2, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid bit literal %s", core.ErrSyntax, raw)
		}
		return &Literal{Value: n}, nil

	default:
		return nil, fmt.Errorf("%w: bind variables are not supported (%s)", core.ErrSyntax, raw)
	}
}
