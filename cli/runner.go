// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Server lifecycle hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Haga4000/Regelebot/agent"
	"github.com/Haga4000/Regelebot/gateway"
	"github.com/Haga4000/Regelebot/history"
	"github.com/Haga4000/Regelebot/model"
	"github.com/Haga4000/Regelebot/ratelimit"
	"github.com/Haga4000/Regelebot/tools"
)

const maxObservationLen = 300

// Serve runs the webhook server until ctx is cancelled.
func Serve(ctx context.Context, opts Options) error {
	logger := NewLogger(os.Stderr, opts)
	settings, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	if err := settings.RequireServe(); err != nil {
		return err
	}

	app, err := NewApp(settings, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	limiter, err := ratelimit.New(settings.Conversation.RateLimitPerMinute, ratelimit.DefaultMaxKeys)
	if err != nil {
		return err
	}

	server, err := gateway.New(gateway.Config{
		ListenAddr:    settings.Server.ListenAddr,
		WebhookSecret: settings.Server.WebhookSecret,
		CORSOrigin:    settings.Server.CORSOrigin,
		BotName:       settings.Club.BotName,
		WindowSize:    settings.Conversation.WindowSize,
		TokenBudget:   settings.Conversation.TokenBudget,
		Debug:         opts.Verbose,
	}, gateway.Deps{
		Responder:     app.Orchestrator,
		Conversations: app.Store,
		Movies:        app.Movies,
		Stats:         app.Stats,
		Polls:         app.Polls,
		Limiter:       limiter,
		Metrics:       app.Metrics,
		Gatherer:      app.Gatherer,
		Logger:        logger.With("component", "gateway"),
	})
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

// Ask answers a single message without stored history.
func Ask(ctx context.Context, text, sender string, opts Options) error {
	settings, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	app, err := NewApp(settings, NewLogger(os.Stderr, opts))
	if err != nil {
		return err
	}
	defer app.Close()

	resp := app.Orchestrator.Process(ctx, agent.Turn{Text: text, SenderName: sender})
	printResponse(os.Stdout, resp, opts.Verbose)
	if !resp.IsAnswer() {
		return fmt.Errorf("no answer: %s", resp.Outcome)
	}
	return nil
}

// Chat starts an interactive session behaving like a group conversation:
// slash commands run directly, anything else goes to the orchestrator,
// and every exchange is stored under groupID.
func Chat(ctx context.Context, groupID, sender string, opts Options) error {
	settings, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	app, err := NewApp(settings, NewLogger(os.Stderr, opts))
	if err != nil {
		return err
	}
	defer app.Close()

	commands := gateway.NewCommands(settings.Club.BotName, settings.Conversation.WindowSize,
		app.Movies, app.Stats, app.Polls, app.Store, app.Logger)

	recent, err := app.Store.Recent(ctx, groupID, settings.Conversation.WindowSize)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(recent) > 0 {
		fmt.Printf("Resuming conversation '%s' (%d recent messages)\n\n", groupID, len(recent))
	}
	fmt.Printf("Chat with %s as %s. Type 'exit' to quit, /aide for commands.\n\n", settings.Club.BotName, sender)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		recent, err := app.Store.Recent(ctx, groupID, settings.Conversation.WindowSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load history: %v\n", err)
		}
		prepared := history.Prepare(recent, settings.Conversation.WindowSize, settings.Conversation.TokenBudget)
		store(ctx, app, groupID, model.HistoryEntry{Role: model.RoleUser, SenderName: sender, Content: input})

		var reply string
		if gateway.IsCommand(input) {
			reply = commands.Handle(ctx, input, sender, groupID).Text
		} else {
			resp := app.Orchestrator.Process(ctx, agent.Turn{
				Text:          input,
				SenderName:    sender,
				History:       prepared.Window,
				PriorSubjects: prepared.PriorSubjects,
			})
			if opts.Verbose {
				printSteps(os.Stdout, resp.Steps)
			}
			reply = resp.Text
		}

		fmt.Printf("\n%s\n\n", reply)
		if reply != "" {
			store(ctx, app, groupID, model.HistoryEntry{Role: model.RoleBot, Content: reply})
		}
	}

	return scanner.Err()
}

func store(ctx context.Context, app *App, groupID string, entry model.HistoryEntry) {
	entry.CreatedAt = time.Now().UTC()
	if err := app.Store.StoreMessage(ctx, groupID, entry); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save message: %v\n", err)
	}
}

// ListTools prints the tools offered to the model.
func ListTools(w io.Writer, verbose bool) error {
	registry, err := tools.NewCatalog(tools.Services{})
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Available tools:")
	fmt.Fprintln(w)

	for _, def := range registry.Definitions() {
		fmt.Fprintf(w, "  %s\n", def.Name)
		fmt.Fprintf(w, "    %s\n", firstLine(def.Description))

		if verbose {
			if params := describeParams(def.Parameters); len(params) > 0 {
				fmt.Fprintln(w, "    Parameters:")
				for _, p := range params {
					fmt.Fprintf(w, "      %s\n", p)
				}
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

// describeParams renders "name*: type - description" lines from a JSON
// schema, required parameters starred.
func describeParams(schema map[string]any) []string {
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []any:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		star := ""
		if required[name] {
			star = "*"
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s - %s", name, star, typ, desc))
	}
	return lines
}

func printResponse(w io.Writer, resp agent.Response, verbose bool) {
	if verbose {
		printSteps(w, resp.Steps)
	}
	fmt.Fprintf(w, "%s\n\n", resp.Text)
	if !verbose {
		return
	}

	meta := resp.Metadata
	fmt.Fprintf(w, "Outcome: %s (%s/%s, %d backend calls, %dms)\n",
		resp.Outcome, meta.Provider, meta.Model, meta.BackendCalls, meta.ExecutionTimeMs)
	for _, call := range meta.ToolCalls {
		data, _ := json.Marshal(call)
		fmt.Fprintf(w, "  tool %s\n", data)
	}
	if u := meta.TokenUsage; u != nil {
		fmt.Fprintf(w, "Token Usage:\n")
		fmt.Fprintf(w, "  Prompt tokens: %d\n", u.PromptTokens)
		fmt.Fprintf(w, "  Completion tokens: %d\n", u.CompletionTokens)
		fmt.Fprintf(w, "  Total tokens: %d\n", u.TotalTokens)
	}
}

func printSteps(w io.Writer, steps []agent.Step) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(w, "--- Steps ---")
	for _, step := range steps {
		fmt.Fprintf(w, "[%d] %s\n", step.Iteration, step.Thought)
		if step.Action != nil {
			fmt.Fprintf(w, "    Action: %s\n", *step.Action)
		}
		if step.Observation != nil {
			fmt.Fprintf(w, "    Observation: %s\n", truncateString(*step.Observation, maxObservationLen))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "-------------")
	fmt.Fprintln(w)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
