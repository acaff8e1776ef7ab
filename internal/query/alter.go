package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// The MySQL grammar discards ALTER TABLE details and has no foreign key
// clauses, so both are read from the statement text.

const ident = "(`[^`]+`|\"[^\"]+\"|[A-Za-z_][A-Za-z0-9_$]*)"

var (
	alterHeadPattern = regexp.MustCompile(`(?is)^\s*alter\s+(?:ignore\s+)?table\s+` + ident + `\s*(.*)$`)

	foreignKeyPattern = regexp.MustCompile(`(?is)^(?:add\s+)?(?:constraint(?:\s+` + ident + `)?\s+)?foreign\s+key(?:\s+` + ident + `)?\s*\(([^)]*)\)\s*references\s+` + ident + `\s*\(([^)]*)\)(.*)$`)
	referenceAction   = regexp.MustCompile(`(?i)on\s+(delete|update)\s+(restrict|cascade|set\s+null|set\s+default|no\s+action)`)

	addPrimaryPattern = regexp.MustCompile(`(?is)^add\s+(?:constraint(?:\s+` + ident + `)?\s+)?primary\s+key\s*\(([^)]*)\)$`)
	addUniquePattern  = regexp.MustCompile(`(?is)^add\s+(?:constraint(?:\s+` + ident + `)?\s+)?unique(?:\s+(?:key|index))?(?:\s+` + ident + `)?\s*\(([^)]*)\)$`)
	addIndexPattern   = regexp.MustCompile(`(?is)^add\s+(?:fulltext\s+|spatial\s+)?(?:index|key)\b`)
	addColumnPattern  = regexp.MustCompile(`(?is)^add\s+(?:column\s+)?(.+)$`)

	dropPrimaryPattern    = regexp.MustCompile(`(?is)^drop\s+primary\s+key$`)
	dropConstraintPattern = regexp.MustCompile(`(?is)^drop\s+(foreign\s+key|constraint|index|key)\s+` + ident + `$`)
	dropColumnPattern     = regexp.MustCompile(`(?is)^drop\s+(?:column\s+)?` + ident + `$`)
	renamePattern         = regexp.MustCompile(`(?is)^rename\s+(?:to\s+|as\s+)?` + ident + `$`)
)

func (p *Parser) parseAlter(sql string) (*AlterTableStmt, error) {
	m := alterHeadPattern.FindStringSubmatch(sql)
	if m == nil {
		return nil, fmt.Errorf("%w: malformed ALTER TABLE", core.ErrSyntax)
	}
	body := strings.TrimSpace(m[2])
	if body == "" {
		return nil, fmt.Errorf("%w: ALTER TABLE %s has no changes", core.ErrSyntax, unquoteIdent(m[1]))
	}

	stmt := &AlterTableStmt{Table: unquoteIdent(m[1])}
	for _, clause := range splitTopLevel(body, ',') {
		actions, err := p.alterClause(strings.TrimSpace(clause))
		if err != nil {
			return nil, err
		}
		stmt.Actions = append(stmt.Actions, actions...)
	}
	return stmt, nil
}

func (p *Parser) alterClause(clause string) ([]AlterAction, error) {
	if m := foreignKeyPattern.FindStringSubmatch(clause); m != nil && hasPrefixFold(clause, "add") {
		return []AlterAction{AddConstraint{Constraint: foreignKeyFromMatch(m)}}, nil
	}
	if m := addPrimaryPattern.FindStringSubmatch(clause); m != nil {
		return []AlterAction{AddConstraint{Constraint: ConstraintDef{
			Name:    "PRIMARY",
			Type:    core.ConstraintPrimaryKey,
			Columns: identList(m[2]),
		}}}, nil
	}
	if m := addUniquePattern.FindStringSubmatch(clause); m != nil {
		name := unquoteIdent(m[1])
		if name == "" {
			name = unquoteIdent(m[2])
		}
		return []AlterAction{AddConstraint{Constraint: ConstraintDef{
			Name:    name,
			Type:    core.ConstraintUnique,
			Columns: identList(m[3]),
		}}}, nil
	}
	if addIndexPattern.MatchString(clause) {
		return nil, fmt.Errorf("%w: ALTER TABLE ADD INDEX", core.ErrUnsupportedStatement)
	}
	if m := addColumnPattern.FindStringSubmatch(clause); m != nil {
		columns, err := p.parseColumnDefs(m[1])
		if err != nil {
			return nil, err
		}
		actions := make([]AlterAction, len(columns))
		for i, col := range columns {
			actions[i] = AddColumn{Column: col}
		}
		return actions, nil
	}

	if dropPrimaryPattern.MatchString(clause) {
		return []AlterAction{DropConstraint{Type: core.ConstraintPrimaryKey}}, nil
	}
	if m := dropConstraintPattern.FindStringSubmatch(clause); m != nil {
		drop := DropConstraint{Name: unquoteIdent(m[2])}
		if strings.HasPrefix(strings.ToLower(m[1]), "foreign") {
			drop.Type = core.ConstraintForeignKey
		}
		return []AlterAction{drop}, nil
	}
	if m := dropColumnPattern.FindStringSubmatch(clause); m != nil {
		return []AlterAction{DropColumn{Name: unquoteIdent(m[1])}}, nil
	}
	if m := renamePattern.FindStringSubmatch(clause); m != nil {
		return []AlterAction{RenameTable{NewName: unquoteIdent(m[1])}}, nil
	}

	return nil, fmt.Errorf("%w: ALTER TABLE clause %q", core.ErrUnsupportedStatement, clause)
}

// parseColumnDefs parses one column definition, or a parenthesized list of them,
// by handing them to the grammar as the body of a CREATE TABLE.
func (p *Parser) parseColumnDefs(defs string) ([]ColumnDef, error) {
	defs = strings.TrimSpace(defs)
	body := defs
	if strings.HasPrefix(defs, "(") {
		body = strings.TrimSuffix(strings.TrimPrefix(defs, "("), ")")
	}

	node, err := p.parseNode("CREATE TABLE t (" + body + ")")
	if err != nil {
		return nil, err
	}
	ddl, ok := node.(*sqlparser.DDL)
	if !ok || ddl.TableSpec == nil || len(ddl.TableSpec.Columns) == 0 {
		return nil, fmt.Errorf("%w: invalid column definition %q", core.ErrSyntax, defs)
	}

	columns := make([]ColumnDef, 0, len(ddl.TableSpec.Columns))
	for _, col := range ddl.TableSpec.Columns {
		def, err := convertColumn(col)
		if err != nil {
			return nil, err
		}
		columns = append(columns, def)
	}
	return columns, nil
}

// extractForeignKeys removes table-level FOREIGN KEY clauses from a CREATE TABLE
// statement and returns them as constraints.
func extractForeignKeys(sql string) (string, []ConstraintDef, error) {
	if !strings.Contains(strings.ToLower(sql), "foreign") {
		return sql, nil, nil
	}
	open := indexOutsideQuotes(sql, '(')
	if open < 0 {
		return sql, nil, nil
	}
	closing := matchingParen(sql, open)
	if closing < 0 {
		return "", nil, fmt.Errorf("%w: unbalanced parentheses", core.ErrSyntax)
	}

	var (
		kept        []string
		foreignKeys []ConstraintDef
	)
	for _, element := range splitTopLevel(sql[open+1:closing], ',') {
		trimmed := strings.TrimSpace(element)
		if m := foreignKeyPattern.FindStringSubmatch(trimmed); m != nil {
			foreignKeys = append(foreignKeys, foreignKeyFromMatch(m))
			continue
		}
		kept = append(kept, trimmed)
	}
	return sql[:open+1] + strings.Join(kept, ", ") + sql[closing:], foreignKeys, nil
}

func foreignKeyFromMatch(m []string) ConstraintDef {
	name := unquoteIdent(m[1])
	if name == "" {
		name = unquoteIdent(m[2])
	}
	con := ConstraintDef{
		Name:       name,
		Type:       core.ConstraintForeignKey,
		Columns:    identList(m[3]),
		RefTable:   unquoteIdent(m[4]),
		RefColumns: identList(m[5]),
	}
	for _, action := range referenceAction.FindAllStringSubmatch(m[6], -1) {
		rule := strings.ToUpper(strings.Join(strings.Fields(action[2]), " "))
		if strings.EqualFold(action[1], "delete") {
			con.OnDelete = rule
		} else {
			con.OnUpdate = rule
		}
	}
	return con
}

// splitTopLevel splits s on sep outside quotes and parentheses.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = quotedEnd(s, i) - 1
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func indexOutsideQuotes(s string, target byte) int {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = quotedEnd(s, i) - 1
		case c == target:
			return i
		}
	}
	return -1
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = quotedEnd(s, i) - 1
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func identList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if name := unquoteIdent(strings.TrimSpace(part)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func unquoteIdent(s string) string {
	if len(s) >= 2 && (s[0] == '`' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
