package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/docsql/internal/client"
	"github.com/rzpsarthak13/docsql/internal/core"
)

var (
	configPath string
	tenant     string
	project    string
)

var rootCmd = &cobra.Command{
	Use:           "docsql",
	Short:         "Run SQL against a per-tenant document store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON); DOCSQL_* env vars override it")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", envOr("DOCSQL_TENANT", "default"), "tenant to run statements as")
	rootCmd.PersistentFlags().StringVar(&project, "project", envOr("DOCSQL_PROJECT", "default"), "project to run statements in")

	rootCmd.AddCommand(serveCmd, execCmd, shellCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openClient() (*client.ClientImpl, error) {
	c, err := client.NewClientFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

func currentScope() core.Scope {
	return core.Scope{Tenant: tenant, Project: project}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
