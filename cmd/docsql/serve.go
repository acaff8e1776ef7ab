package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/server"
	"github.com/rzpsarthak13/docsql/pkg/docsql"
)

var (
	serveAddr  string
	logChanges bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if logChanges && c.Feed() != nil {
			config := c.Config().ChangeFeed
			relay := docsql.NewRelay(c.Feed(), logChange, docsql.RelayConfig{Rate: config.RelayRate, BatchSize: config.BatchSize})
			relay.SetObserver(c.Metrics())
			if err := c.RegisterHook(ctx, relay); err != nil {
				return err
			}
		}
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start client: %w", err)
		}

		config := c.Config().Server
		if serveAddr != "" {
			config.Addr = serveAddr
		}
		return server.New(c, c.Metrics(), config).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&logChanges, "log-changes", false, "relay change-feed events to the log")
}

func logChange(_ context.Context, event *core.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	log.Printf("[CHANGE] %s", data)
	return nil
}
