package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// printResult writes rows as an aligned table followed by the message, row
// count, and execution trace.
func printResult(w io.Writer, result *core.Result) error {
	if len(result.Columns) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))
		for _, row := range result.Rows {
			cells := make([]string, len(result.Columns))
			for i, col := range result.Columns {
				v, _ := row.Get(col)
				cells[i] = formatValue(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "(%d %s)\n", len(result.Rows), plural(len(result.Rows), "row", "rows"))
	}
	if result.Message != "" {
		fmt.Fprintln(w, result.Message)
	}
	if len(result.Columns) == 0 && result.RowsAffected > 0 {
		fmt.Fprintf(w, "%d %s affected\n", result.RowsAffected, plural(result.RowsAffected, "row", "rows"))
	}
	for _, line := range result.Trace {
		fmt.Fprintf(w, "-- %s\n", line)
	}
	return nil
}

func printJSON(w io.Writer, result *core.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
