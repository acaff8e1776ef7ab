package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is returned when a statement cannot be parsed under any dialect.
	ErrSyntax = errors.New("syntax error")

	// ErrTableNotFound is returned when a referenced table has no metadata record.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists is returned by CREATE TABLE when the name is already taken.
	ErrTableExists = errors.New("table already exists")

	// ErrColumnCount is returned when an INSERT tuple does not match its column list.
	ErrColumnCount = errors.New("column count does not match value count")

	// ErrUnsupportedStatement is returned for statement kinds the engine does not route.
	ErrUnsupportedStatement = errors.New("unsupported statement")

	// ErrUnsupportedJoinKind is returned for RIGHT and NATURAL joins unless
	// permissive joins are enabled.
	ErrUnsupportedJoinKind = errors.New("unsupported join kind")

	// ErrUnsupportedOperator is returned when an expression uses an operator
	// the evaluator does not implement.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnauthorized is returned before any storage access when the scope is incomplete.
	ErrUnauthorized = errors.New("unauthorized: scope unresolved")

	// ErrScopeUnresolved is an alias of ErrUnauthorized.
	ErrScopeUnresolved = ErrUnauthorized

	// ErrTooManyStatements is returned when an input exceeds the configured statement cap.
	ErrTooManyStatements = errors.New("too many statements")

	// ErrInvalidDefinition is returned when a table or column definition is
	// rejected, including defaults that do not fit the column type.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrInvalidArgument is returned when an expression argument cannot be used,
	// such as a REGEXP pattern that does not compile.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDocumentNotFound is returned by stores when updating a missing document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStoreClosed is returned by stores and queues after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// StatementError wraps the failure of one statement of a multi-statement input.
type StatementError struct {
	// Index is the zero-based position of the statement in the input.
	Index int

	// SQL is the statement text as split from the input.
	SQL string

	// Err is the underlying failure.
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d (%s): %v", e.Index+1, e.SQL, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}
