// Reeve is a personal assistant agent with layered memory.
//
// It answers one-shot questions, runs an interactive chat session, and
// translates natural-language recurrence phrases into cron expressions
// for its scheduler. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	reeve ask <question>       Ask a single question
//	reeve chat                 Start an interactive chat session
//	reeve init [dir]           Initialize a working directory with defaults
//	reeve schedule <phrase>    Translate a phrase to a cron expression
//	reeve version              Print version and build information
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/reeve-agent/reeve/internal/agent"
	"github.com/reeve-agent/reeve/internal/buildinfo"
	"github.com/reeve-agent/reeve/internal/config"
	"github.com/reeve-agent/reeve/internal/embeddings"
	"github.com/reeve-agent/reeve/internal/facts"
	"github.com/reeve-agent/reeve/internal/llm"
	"github.com/reeve-agent/reeve/internal/memory"
	"github.com/reeve-agent/reeve/internal/schedule"
	"github.com/reeve-agent/reeve/internal/tools"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// defaultUserID scopes memory for CLI sessions, which have no transport
// identity to key on.
const defaultUserID = "local"

// main is intentionally minimal. It constructs the OS-level environment
// and delegates to [run] so the full lifecycle can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes it impossible to
// call run concurrently from tests, and the surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var userID string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-user" && i+1 < len(args):
			userID = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-user="):
			userID = strings.TrimPrefix(args[i], "-user=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if userID == "" {
		userID = defaultUserID
	}

	switch command {
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: reeve ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, userID, strings.Join(cmdArgs, " "))
	case "chat":
		return runChat(ctx, stdout, stderr, configPath, userID)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "schedule":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: reeve schedule <phrase>")
		}
		return runSchedule(stdout, strings.Join(cmdArgs, " "))
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Reeve - Personal Assistant Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: reeve [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ask <question>      Ask a single question")
	fmt.Fprintln(w, "  chat                Start an interactive chat session")
	fmt.Fprintln(w, "  init [dir]          Initialize a working directory with defaults")
	fmt.Fprintln(w, "  schedule <phrase>   Translate a phrase to a cron expression")
	fmt.Fprintln(w, "  version             Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>   Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -user <id>       Memory scope for this session (default: local)")
	return nil
}

// runSchedule exercises the phrase parser on its own, without booting
// the agent. Handy for checking what a reminder phrase will become.
func runSchedule(w io.Writer, phrase string) error {
	expr, ok := schedule.Parse(phrase)
	if !ok {
		return fmt.Errorf("could not understand %q; try something like \"every day at 6pm\" or a cron expression", phrase)
	}
	fmt.Fprintln(w, expr)
	return nil
}

// runAsk boots the full engine, processes one question, and waits for
// the background memory write before exiting so the exchange is not
// lost when the process ends.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, userID, question string) error {
	app, err := boot(stderr, configPath, userID)
	if err != nil {
		return err
	}
	defer app.close()

	result := app.engine.Run(ctx, agent.Request{
		UserID: userID,
		Prompt: question,
		Tools:  app.registry,
	})
	fmt.Fprintln(stdout, result.Response)

	app.logger.Debug("run finished",
		"iterations", result.IterationCount,
		"tool_calls", result.ToolCallCount,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"latency_ms", result.LatencyMs,
	)

	app.writer.Wait()
	return nil
}

// runChat reads prompts line by line from stdin until EOF or interrupt.
func runChat(ctx context.Context, stdout, stderr io.Writer, configPath, userID string) error {
	app, err := boot(stderr, configPath, userID)
	if err != nil {
		return err
	}
	defer app.close()

	fmt.Fprintln(stdout, "Reeve is ready. Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}

		result := app.engine.Run(ctx, agent.Request{
			UserID: userID,
			Prompt: prompt,
			Tools:  app.registry,
		})
		fmt.Fprintln(stdout, result.Response)
	}

	app.writer.Wait()
	return scanner.Err()
}

// app bundles the wired components for one process.
type app struct {
	engine   *agent.Engine
	registry *tools.Registry
	writer   *memory.Writer
	logger   *slog.Logger
	close    func()
}

// boot loads configuration and wires the stores, providers, memory
// paths, and tool registry into a ready engine. The fact tools are
// bound to userID so the model reads and writes the right scope.
func boot(stderr io.Writer, configPath, userID string) (*app, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := newLogger(stderr, level)
	logger.Debug("config loaded", "path", cfgPath)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	factStore, err := facts.NewStore(filepath.Join(cfg.DataDir, "facts.db"))
	if err != nil {
		return nil, fmt.Errorf("open fact store: %w", err)
	}
	vectors, err := memory.NewVectorStore(filepath.Join(cfg.DataDir, "memories.db"))
	if err != nil {
		factStore.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	var embedder memory.Embedder
	if cfg.Embeddings.Enabled {
		embedder = embeddings.New(embeddings.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
	}

	client := buildLLMClient(cfg, logger)

	buffer := memory.NewBuffer(cfg.Memory.RecentCap)
	assembler := memory.NewAssembler(buffer, vectors, factStore, embedder, memory.AssemblerConfig{
		ContextWindow: cfg.Memory.ContextWindow,
		SemanticTopK:  cfg.Memory.SemanticTopK,
		Threshold:     cfg.Memory.SemanticThreshold,
	}, logger)
	writer := memory.NewWriter(buffer, vectors, factStore, embedder, cfg.Memory.ExtractEvery, logger)
	writer.SetExtractFunc(newFactExtractor(client, cfg.Models.Default))

	registry := tools.NewRegistry()
	registerBuiltinTools(registry)
	facts.RegisterTools(registry, factStore, userID)

	engine := agent.NewEngine(client, assembler, writer, cfg.Models, cfg.Agent, logger)

	return &app{
		engine:   engine,
		registry: registry,
		writer:   writer,
		logger:   logger,
		close: func() {
			vectors.Close()
			factStore.Close()
		},
	}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file, falling
// back to built-in defaults when no file exists anywhere on the search
// path and none was requested explicitly.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// buildLLMClient builds the multi-provider client from configuration.
// The OpenAI-compatible provider is the default backend; Anthropic is
// added when a key is configured. Model routing follows
// cfg.Models.Providers.
func buildLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	openaiClient := llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.Agent.MaxTokens, logger)

	multi := llm.NewMultiClient(openaiClient)
	multi.AddProvider("openai", openaiClient)

	if cfg.Anthropic.APIKey != "" {
		multi.AddProvider("anthropic", llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Agent.MaxTokens, logger))
		logger.Debug("anthropic provider configured")
	}

	for model, provider := range cfg.Models.Providers {
		multi.AddModel(model, provider)
	}
	return multi
}

// registerBuiltinTools adds the tools that ship with the binary.
func registerBuiltinTools(registry *tools.Registry) {
	registry.Register(&tools.Tool{
		Name:        "current_time",
		Description: "Get the current local date and time.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return time.Now().Format("Monday, January 2, 2006 at 3:04 PM MST"), nil
		},
	})

	registry.Register(&tools.Tool{
		Name:        "parse_schedule",
		Description: "Convert a natural-language recurrence phrase like 'every day at 6pm' into a cron expression.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"phrase": map[string]any{
					"type":        "string",
					"description": "The recurrence phrase to convert",
				},
			},
			"required": []string{"phrase"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			phrase, _ := args["phrase"].(string)
			expr, ok := schedule.Parse(phrase)
			if !ok {
				return "", fmt.Errorf("could not understand %q; ask the user to rephrase", phrase)
			}
			return expr, nil
		},
	})
}

const factExtractionPrompt = `Review the conversation below and extract durable facts about the user. ` +
	`Respond with a flat JSON object mapping snake_case keys to short string values, for example {"home_city": "Lisbon"}. ` +
	`Only include stable personal facts such as name, location, preferences, or relationships. ` +
	`Respond with {} if there is nothing worth keeping. Respond with JSON only.`

// newFactExtractor builds the extraction pass the memory writer runs
// every few turns. Failures are the writer's problem; it logs and
// ignores them.
func newFactExtractor(client llm.Client, model string) memory.ExtractFunc {
	return func(ctx context.Context, recent []memory.Record) (map[string]string, error) {
		var b strings.Builder
		for _, r := range recent {
			fmt.Fprintf(&b, "%s: %s\n", r.Role, r.Content)
		}

		resp, err := client.Chat(ctx, model, []llm.Message{
			{Role: llm.RoleSystem, Content: factExtractionPrompt},
			{Role: llm.RoleUser, Content: b.String()},
		}, nil)
		if err != nil {
			return nil, err
		}
		return parseFactJSON(resp.Message.Content), nil
	}
}

// parseFactJSON pulls a flat string map out of model output, tolerating
// code fences and surrounding prose.
func parseFactJSON(content string) map[string]string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(content[start:end+1]), &m); err != nil {
		return nil
	}
	return m
}
