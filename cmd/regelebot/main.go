// Package main provides the regelebot CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Haga4000/Regelebot/cli"
)

var (
	// Global flags
	provider string
	dbPath   string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "regelebot",
		Short: "Cinephile companion bot for a WhatsApp film club",
		Long: `Regelebot answers a WhatsApp film club in French.

Members tag the bot or use slash commands; the bot searches TMDb,
recommends films, tracks what the club watched and runs polls.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (gemini, mistral, openai, anthropic)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (defaults to DATABASE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider: provider,
		DBPath:   dbPath,
		Verbose:  verbose,
	}
}

func serveCmd() *cobra.Command {
	var jsonLogs bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server for the WhatsApp gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := options()
			opts.JSONLogs = jsonLogs
			return cli.Serve(ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")

	return cmd
}

func askCmd() *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask the bot a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(cmd.Context(), strings.Join(args, " "), sender, options())
		},
	}

	cmd.Flags().StringVar(&sender, "as", "Membre", "Sender display name")

	return cmd
}

func chatCmd() *cobra.Command {
	var sender string
	var group string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with stored history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(cmd.Context(), group, sender, options())
		},
	}

	cmd.Flags().StringVar(&sender, "as", "Membre", "Sender display name")
	cmd.Flags().StringVar(&group, "group", "cli", "Conversation id used for history")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(os.Stdout, verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}
