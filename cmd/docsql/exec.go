package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	execSQL  string
	execFile string
	execJSON bool
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Execute SQL from a flag, a file, or stdin",
	Example: `  docsql exec -e "SELECT * FROM users"
  docsql exec -f schema.sql --tenant acme --project shop
  echo "SELECT 1" | docsql exec`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sqlText, err := readSQL(cmd.InOrStdin())
		if err != nil {
			return err
		}

		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		result, err := c.Execute(cmd.Context(), currentScope(), sqlText)
		if err != nil {
			return err
		}
		if execJSON {
			return printJSON(cmd.OutOrStdout(), result)
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

func init() {
	execCmd.Flags().StringVarP(&execSQL, "execute", "e", "", "SQL text to execute")
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "file containing SQL to execute")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "print the result as JSON")
}

func readSQL(stdin io.Reader) (string, error) {
	switch {
	case execSQL != "" && execFile != "":
		return "", errors.New("use either --execute or --file, not both")
	case execSQL != "":
		return execSQL, nil
	case execFile != "":
		data, err := os.ReadFile(execFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", execFile, err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
}
