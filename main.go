package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"
)

// version はビルド時に -ldflags "-X main.version=..." で埋め込む
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()

	rootCmd := &cobra.Command{
		Use:          "linkedin-mcp-server",
		Short:        "MCP server for creating LinkedIn posts",
		Long:         "linkedin-mcp-server exposes a create_post tool over the Model Context Protocol, using either stdio or Server-Sent Events.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	if err := bindFlags(rootCmd.Flags(), v); err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serverName, version)
		},
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	if err := loadDotEnv(v, ".env"); err != nil {
		return err
	}

	cfg, err := LoadConfig(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel, os.Stderr)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		"transport", cfg.Transport,
		"debug_mode", cfg.LinkedIn.DebugMode)

	client := NewLinkedInClient(NewHTTPClient(requestTimeout), cfg.LinkedIn, WithClientLogger(logger))
	dispatcher := NewToolDispatcher(logger, NewCreatePostHandler(client, logger))
	info := ServerInfo{
		Name:         serverName,
		Version:      version,
		Instructions: serverInstructions,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Transport {
	case transportStdio:
		return NewStdioServer(dispatcher, info, logger).Listen(ctx, os.Stdin, os.Stdout)
	default:
		return NewSSEServer(dispatcher, info, logger).Start(ctx, cfg.ServerAddress)
	}
}
