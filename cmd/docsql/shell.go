package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/docsql/internal/client"
	"github.com/rzpsarthak13/docsql/internal/query"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive SQL shell",
	Long: `Start an interactive SQL shell. Statements may span several lines and run
once a line ends with ';'. Meta commands: \dt lists tables, \d <table>
describes one, \q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()
		return runShell(cmd, c)
	},
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docsql_history")
}

func runShell(cmd *cobra.Command, c *client.ClientImpl) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if path := historyPath(); path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(path); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	out := cmd.OutOrStdout()
	scope := currentScope()
	fmt.Fprintf(out, "docsql shell (%s). Type \\q to quit.\n", scope)

	var buf statementBuffer
	for {
		prompt := "docsql> "
		if !buf.empty() {
			prompt = "   ...> "
		}
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			buf.reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(input)
		if buf.empty() && strings.HasPrefix(trimmed, `\`) {
			line.AppendHistory(trimmed)
			if quit := runMeta(cmd, c, trimmed); quit {
				return nil
			}
			continue
		}

		sqlText, ready := buf.add(input)
		if !ready {
			continue
		}
		line.AppendHistory(strings.Join(strings.Fields(sqlText), " "))

		result, err := c.Execute(cmd.Context(), scope, sqlText)
		if err != nil {
			fmt.Fprintf(out, "ERROR: %v\n", err)
			continue
		}
		if err := printResult(out, result); err != nil {
			return err
		}
	}
}

// runMeta handles a backslash command. It returns true when the shell should exit.
func runMeta(cmd *cobra.Command, c *client.ClientImpl, input string) bool {
	out := cmd.OutOrStdout()
	fields := strings.Fields(input)
	scope := currentScope()

	switch fields[0] {
	case `\q`, `\quit`:
		return true
	case `\dt`:
		tables, err := c.ListTables(cmd.Context(), scope)
		if err != nil {
			fmt.Fprintf(out, "ERROR: %v\n", err)
			return false
		}
		for _, t := range tables {
			fmt.Fprintln(out, t.Name)
		}
	case `\d`:
		if len(fields) < 2 {
			fmt.Fprintln(out, `usage: \d <table>`)
			return false
		}
		desc, err := c.DescribeTable(cmd.Context(), scope, fields[1])
		if err != nil {
			fmt.Fprintf(out, "ERROR: %v\n", err)
			return false
		}
		printDescription(out, desc)
	default:
		fmt.Fprintf(out, "unknown command %s\n", fields[0])
	}
	return false
}

func printDescription(w io.Writer, desc *client.TableDescription) {
	fmt.Fprintf(w, "Table %s\n", desc.Table.Name)
	for _, col := range desc.Columns {
		attrs := []string{string(col.Type)}
		if col.PrimaryKey {
			attrs = append(attrs, "PRIMARY KEY")
		}
		if !col.Nullable {
			attrs = append(attrs, "NOT NULL")
		}
		if col.Default != nil {
			attrs = append(attrs, "DEFAULT "+formatValue(col.Default))
		}
		fmt.Fprintf(w, "  %-20s %s\n", col.Name, strings.Join(attrs, " "))
	}
	for _, con := range desc.Constraints {
		text := fmt.Sprintf("  %s (%s)", con.Type, strings.Join(con.Columns, ", "))
		if con.RefTable != "" {
			text += fmt.Sprintf(" REFERENCES %s (%s)", con.RefTable, strings.Join(con.RefColumns, ", "))
		}
		fmt.Fprintln(w, text)
	}
}

// statementBuffer accumulates shell lines until the input holds a complete
// statement terminated by a semicolon outside any quotes or comments.
type statementBuffer struct {
	lines []string
}

func (b *statementBuffer) empty() bool { return len(b.lines) == 0 }

func (b *statementBuffer) reset() { b.lines = nil }

func (b *statementBuffer) add(input string) (string, bool) {
	if b.empty() && strings.TrimSpace(input) == "" {
		return "", false
	}
	b.lines = append(b.lines, input)
	text := strings.Join(b.lines, "\n")
	if !query.Terminated(text) {
		return "", false
	}
	b.reset()
	return text, true
}
