package core

import "fmt"

// Result is the tabular outcome of a statement.
type Result struct {
	// Rows holds the result rows in order. Empty for non-SELECT statements.
	Rows []*Row `json:"rows"`

	// Columns lists the result column names in order.
	Columns []string `json:"columns"`

	// Message is a human-readable status such as "2 rows inserted.".
	Message string `json:"message,omitempty"`

	// RowsAffected counts rows written by INSERT, UPDATE and DELETE.
	RowsAffected int `json:"rowsAffected"`

	// Trace describes the steps taken, including every permissive fallback.
	Trace []string `json:"trace,omitempty"`
}

// Tracef appends a step description to the trace.
func (r *Result) Tracef(format string, args ...interface{}) {
	r.Trace = append(r.Trace, fmt.Sprintf(format, args...))
}
