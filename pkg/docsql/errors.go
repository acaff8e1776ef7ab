package docsql

import (
	"github.com/rzpsarthak13/docsql/internal/client"
	"github.com/rzpsarthak13/docsql/internal/core"
)

// Errors returned by Client. Compare with errors.Is; statement failures arrive
// wrapped in a *StatementError.
var (
	ErrSyntax               = core.ErrSyntax
	ErrTableNotFound        = core.ErrTableNotFound
	ErrTableExists          = core.ErrTableExists
	ErrColumnCount          = core.ErrColumnCount
	ErrUnsupportedStatement = core.ErrUnsupportedStatement
	ErrUnsupportedJoinKind  = core.ErrUnsupportedJoinKind
	ErrUnsupportedOperator  = core.ErrUnsupportedOperator
	ErrUnauthorized         = core.ErrUnauthorized
	ErrTooManyStatements    = core.ErrTooManyStatements
	ErrInvalidDefinition    = core.ErrInvalidDefinition
	ErrInvalidArgument      = core.ErrInvalidArgument
	ErrClientClosed         = client.ErrClientClosed
)

// StatementError identifies which statement of a multi-statement input failed.
type StatementError = core.StatementError
