package query

import (
	"strings"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// StatementKind names the top-level kind of a statement.
type StatementKind string

const (
	KindSelect StatementKind = "SELECT"
	KindInsert StatementKind = "INSERT"
	KindUpdate StatementKind = "UPDATE"
	KindDelete StatementKind = "DELETE"
	KindCreate StatementKind = "CREATE"
	KindDrop   StatementKind = "DROP"
	KindAlter  StatementKind = "ALTER"
)

// Statement is a parsed SQL statement. The implementations in this file are the
// complete set; callers switch over them exhaustively.
type Statement interface {
	Kind() StatementKind
	statementNode()
}

// SelectStmt is a SELECT query.
type SelectStmt struct {
	Distinct bool
	Items    []SelectItem

	// From is nil for SELECT without a table (or FROM dual).
	From    *TableRef
	Joins   []JoinClause
	Where   Expr
	GroupBy []Expr
	Having  Expr
	OrderBy []OrderItem
	Limit   *LimitClause
}

// SelectItem is one entry of the select list.
type SelectItem struct {
	// Star is set for * and t.*; StarTable holds the qualifier of t.*.
	Star      bool
	StarTable string

	Expr  Expr
	Alias string

	// Text is the SQL rendering of Expr, used to name unaliased expressions.
	Text string
}

// TableRef names a table with an optional alias.
type TableRef struct {
	Name  string
	Alias string
}

// Qualifier returns the name rows of this table are addressed by.
func (t TableRef) Qualifier() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// JoinKind classifies a join.
type JoinKind string

const (
	JoinInner   JoinKind = "INNER JOIN"
	JoinLeft    JoinKind = "LEFT JOIN"
	JoinCross   JoinKind = "CROSS JOIN"
	JoinRight   JoinKind = "RIGHT JOIN"
	JoinNatural JoinKind = "NATURAL JOIN"
)

// JoinClause is a table joined onto the rows accumulated so far.
type JoinClause struct {
	Kind  JoinKind
	Table TableRef
	On    Expr
	Using []string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// LimitClause holds LIMIT and OFFSET.
type LimitClause struct {
	Count  int64
	Offset int64
}

// InsertStmt is INSERT INTO ... VALUES.
type InsertStmt struct {
	Table   string
	Columns []string
	Rows    [][]Expr
}

// Assignment is one SET entry of an UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

// UpdateStmt is UPDATE ... SET ... [WHERE ...] [LIMIT n].
type UpdateStmt struct {
	Table TableRef
	Set   []Assignment
	Where Expr
	Limit *LimitClause
}

// DeleteStmt is DELETE FROM ... [WHERE ...] [LIMIT n].
type DeleteStmt struct {
	Table TableRef
	Where Expr
	Limit *LimitClause
}

// ColumnDef is a column definition of CREATE TABLE or ALTER TABLE ADD COLUMN.
type ColumnDef struct {
	Name       string
	Type       string
	PrimaryKey bool
	Unique     bool
	NotNull    bool

	// Default is nil when the column declares no default.
	Default Expr
}

// ConstraintDef is a table-level constraint.
type ConstraintDef struct {
	Name       string
	Type       core.ConstraintType
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

// CreateTableStmt is CREATE TABLE.
type CreateTableStmt struct {
	Table       string
	IfNotExists bool
	Columns     []ColumnDef
	Constraints []ConstraintDef
}

// DropTableStmt is DROP TABLE.
type DropTableStmt struct {
	Tables   []string
	IfExists bool
}

// AlterTableStmt is ALTER TABLE (and RENAME TABLE).
type AlterTableStmt struct {
	Table   string
	Actions []AlterAction
}

// AlterAction is one clause of an ALTER TABLE.
type AlterAction interface {
	alterAction()
}

// AddColumn appends a column.
type AddColumn struct{ Column ColumnDef }

// DropColumn removes a column.
type DropColumn struct{ Name string }

// AddConstraint records a constraint.
type AddConstraint struct{ Constraint ConstraintDef }

// DropConstraint removes a constraint by name, or the primary key when Type is
// core.ConstraintPrimaryKey and Name is empty.
type DropConstraint struct {
	Name string
	Type core.ConstraintType
}

// RenameTable changes the table name.
type RenameTable struct{ NewName string }

func (*SelectStmt) Kind() StatementKind      { return KindSelect }
func (*InsertStmt) Kind() StatementKind      { return KindInsert }
func (*UpdateStmt) Kind() StatementKind      { return KindUpdate }
func (*DeleteStmt) Kind() StatementKind      { return KindDelete }
func (*CreateTableStmt) Kind() StatementKind { return KindCreate }
func (*DropTableStmt) Kind() StatementKind   { return KindDrop }
func (*AlterTableStmt) Kind() StatementKind  { return KindAlter }

func (*SelectStmt) statementNode()      {}
func (*InsertStmt) statementNode()      {}
func (*UpdateStmt) statementNode()      {}
func (*DeleteStmt) statementNode()      {}
func (*CreateTableStmt) statementNode() {}
func (*DropTableStmt) statementNode()   {}
func (*AlterTableStmt) statementNode()  {}

func (AddColumn) alterAction()      {}
func (DropColumn) alterAction()     {}
func (AddConstraint) alterAction()  {}
func (DropConstraint) alterAction() {}
func (RenameTable) alterAction()    {}

// Expr is an expression node. The implementations below are the complete set.
type Expr interface {
	exprNode()
}

// Operator is a binary, comparison, logical, or unary operator.
type Operator string

const (
	OpEq         Operator = "="
	OpNe         Operator = "!="
	OpLt         Operator = "<"
	OpGt         Operator = ">"
	OpLe         Operator = "<="
	OpGe         Operator = ">="
	OpNullSafeEq Operator = "<=>"
	OpLike       Operator = "like"
	OpNotLike    Operator = "not like"
	OpRegexp     Operator = "regexp"
	OpNotRegexp  Operator = "not regexp"
	OpAnd        Operator = "and"
	OpOr         Operator = "or"
	OpAdd        Operator = "+"
	OpSub        Operator = "-"
	OpMul        Operator = "*"
	OpDiv        Operator = "/"
	OpIntDiv     Operator = "div"
	OpMod        Operator = "%"
	OpNeg        Operator = "neg"
	OpPos        Operator = "pos"
	OpNot        Operator = "!"
	OpIsNull     Operator = "is null"
	OpIsNotNull  Operator = "is not null"
	OpIsTrue     Operator = "is true"
	OpIsNotTrue  Operator = "is not true"
	OpIsFalse    Operator = "is false"
	OpIsNotFalse Operator = "is not false"
)

// ColumnRef references a column, optionally qualified by a table or alias.
type ColumnRef struct {
	Qualifier string
	Name      string
}

// Literal is a constant: int64, float64, string, bool, or nil.
type Literal struct {
	Value interface{}
}

// DefaultValue is the DEFAULT keyword inside INSERT VALUES.
type DefaultValue struct{}

// ComparisonExpr compares two values.
type ComparisonExpr struct {
	Op          Operator
	Left, Right Expr
}

// LogicalExpr is AND or OR.
type LogicalExpr struct {
	Op          Operator
	Left, Right Expr
}

// NotExpr negates a condition.
type NotExpr struct {
	Expr Expr
}

// BinaryExpr is an arithmetic expression. Operators the evaluator does not
// implement are kept verbatim and rejected at evaluation time.
type BinaryExpr struct {
	Op          Operator
	Left, Right Expr
}

// UnaryExpr is -x, +x, or !x.
type UnaryExpr struct {
	Op   Operator
	Expr Expr
}

// InExpr is x [NOT] IN (list).
type InExpr struct {
	Expr Expr
	List []Expr
	Not  bool
}

// BetweenExpr is x [NOT] BETWEEN from AND to.
type BetweenExpr struct {
	Expr     Expr
	From, To Expr
	Not      bool
}

// IsExpr is x IS [NOT] NULL/TRUE/FALSE.
type IsExpr struct {
	Expr Expr
	Op   Operator
}

// FuncCall is a scalar function call.
type FuncCall struct {
	Name string // upper case
	Args []Expr
}

// AggregateCall is COUNT, SUM, AVG, MIN, or MAX.
type AggregateCall struct {
	Func     string // upper case
	Arg      Expr   // nil for COUNT(*)
	Star     bool
	Distinct bool

	// ArgText is the SQL rendering of the argument.
	ArgText string
}

// Key identifies the aggregate inside a group's computed values.
func (a *AggregateCall) Key() string {
	var b strings.Builder
	b.WriteString(a.Func)
	b.WriteByte('(')
	if a.Distinct {
		b.WriteString("distinct ")
	}
	if a.Star {
		b.WriteByte('*')
	} else {
		b.WriteString(a.ArgText)
	}
	b.WriteByte(')')
	return b.String()
}

// DerivedName is the result column name of an unaliased aggregate: <func>_<arg>.
func (a *AggregateCall) DerivedName() string {
	arg := a.ArgText
	if a.Star {
		arg = "all"
	} else if ref, ok := a.Arg.(*ColumnRef); ok {
		arg = ref.Name
	}
	return strings.ToLower(a.Func) + "_" + arg
}

// CaseExpr is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

// WhenClause is one WHEN ... THEN ... branch.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CastExpr is CAST(x AS type) or CONVERT(x, type).
type CastExpr struct {
	Expr Expr
	Type string // upper case
}

func (*ColumnRef) exprNode()      {}
func (*Literal) exprNode()        {}
func (*DefaultValue) exprNode()   {}
func (*ComparisonExpr) exprNode() {}
func (*LogicalExpr) exprNode()    {}
func (*NotExpr) exprNode()        {}
func (*BinaryExpr) exprNode()     {}
func (*UnaryExpr) exprNode()      {}
func (*InExpr) exprNode()         {}
func (*BetweenExpr) exprNode()    {}
func (*IsExpr) exprNode()         {}
func (*FuncCall) exprNode()       {}
func (*AggregateCall) exprNode()  {}
func (*CaseExpr) exprNode()       {}
func (*CastExpr) exprNode()       {}

// Walk calls fn for expr and every expression nested in it, depth first.
// Returning false from fn skips the node's children.
func Walk(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *ComparisonExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *LogicalExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *BinaryExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *NotExpr:
		Walk(e.Expr, fn)
	case *UnaryExpr:
		Walk(e.Expr, fn)
	case *InExpr:
		Walk(e.Expr, fn)
		for _, item := range e.List {
			Walk(item, fn)
		}
	case *BetweenExpr:
		Walk(e.Expr, fn)
		Walk(e.From, fn)
		Walk(e.To, fn)
	case *IsExpr:
		Walk(e.Expr, fn)
	case *FuncCall:
		for _, arg := range e.Args {
			Walk(arg, fn)
		}
	case *AggregateCall:
		Walk(e.Arg, fn)
	case *CaseExpr:
		Walk(e.Operand, fn)
		for _, w := range e.Whens {
			Walk(w.Cond, fn)
			Walk(w.Result, fn)
		}
		Walk(e.Else, fn)
	case *CastExpr:
		Walk(e.Expr, fn)
	}
}

// ContainsAggregate reports whether expr calls an aggregate function.
func ContainsAggregate(expr Expr) bool {
	found := false
	Walk(expr, func(e Expr) bool {
		if _, ok := e.(*AggregateCall); ok {
			found = true
		}
		return !found
	})
	return found
}
