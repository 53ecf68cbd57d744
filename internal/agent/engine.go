// Package agent implements the bounded tool-calling loop that turns one
// user utterance into a grounded answer: memory context in front, up to
// maxIterations provider round-trips, sequential sandboxed tool
// execution under run budgets, retry and fallback on provider failure.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reeve-agent/reeve/internal/config"
	"github.com/reeve-agent/reeve/internal/guard"
	"github.com/reeve-agent/reeve/internal/llm"
	"github.com/reeve-agent/reeve/internal/memory"
	"github.com/reeve-agent/reeve/internal/retry"
	"github.com/reeve-agent/reeve/internal/tools"
)

const defaultSystemPrompt = `You are Reeve, a personal assistant. Be concise and direct. ` +
	`Use the available tools when they help answer the user; otherwise answer from what you know. ` +
	`Always finish with a plain natural-language answer.`

// maxIterationsResponse is returned when a run exhausts its iteration
// ceiling without producing a final answer.
const maxIterationsResponse = "I wasn't able to finish within my step limit. Please try asking in a simpler or more specific way."

// repromptInstruction steers a model that answered with nothing but tool
// syntax back to prose.
const repromptInstruction = "Respond to the user in plain natural language. Do not emit tool call syntax or JSON."

// maxFailureDetail bounds the error detail included in a generic
// provider-failure message.
const maxFailureDetail = 200

// Request describes one agent run.
type Request struct {
	UserID string
	Prompt string
	// Image is an optional base64-encoded image attached to the user turn.
	Image string
	// Tools is the capability set for this run. Nil or empty runs the
	// loop without tool calling.
	Tools *tools.Registry
	// DisableTools forces a plain chat run even when Tools is populated.
	DisableTools bool
}

// RunResult is the outcome of one run. It is a value object; Run always
// returns one, never an error, so callers can relay Response directly.
type RunResult struct {
	Response       string
	ToolCallCount  int
	IterationCount int
	InputTokens    int
	OutputTokens   int
	LatencyMs      int64
}

// Engine drives agent runs. All entry surfaces (interactive messages,
// scheduled tasks, webhooks) call the same Run method. Runs for the
// same user are serialized; runs for different users interleave freely.
type Engine struct {
	llm       llm.Client
	assembler *memory.Assembler
	writer    *memory.Writer
	models    config.ModelsConfig
	cfg       config.AgentConfig
	policy    retry.Policy
	system    string
	logger    *slog.Logger
	locks     *userLocks
}

// NewEngine wires an engine. assembler and writer may be nil, in which
// case runs carry no memory context and record nothing.
func NewEngine(client llm.Client, assembler *memory.Assembler, writer *memory.Writer, models config.ModelsConfig, cfg config.AgentConfig, logger *slog.Logger) *Engine {
	def := config.Default().Agent
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = def.MaxToolCalls
	}
	if cfg.MaxPerTool <= 0 {
		cfg.MaxPerTool = def.MaxPerTool
	}
	if cfg.ToolTimeoutSec <= 0 {
		cfg.ToolTimeoutSec = def.ToolTimeoutSec
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBaseMs <= 0 {
		cfg.RetryBaseMs = def.RetryBaseMs
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.Base = cfg.RetryBase()

	return &Engine{
		llm:       client,
		assembler: assembler,
		writer:    writer,
		models:    models,
		cfg:       cfg,
		policy:    policy,
		system:    defaultSystemPrompt,
		logger:    logger,
		locks:     newUserLocks(),
	}
}

// SetSystemPrompt replaces the base system prompt.
func (e *Engine) SetSystemPrompt(prompt string) {
	if prompt != "" {
		e.system = prompt
	}
}

// Run executes one agent run to completion. It never returns an error:
// every failure mode ends as a user-facing Response in the RunResult.
func (e *Engine) Run(ctx context.Context, req Request) RunResult {
	start := time.Now()

	release := e.locks.acquire(req.UserID)
	defer release()

	var result RunResult
	messages := e.buildMessages(ctx, req)

	toolsEnabled := !req.DisableTools && req.Tools != nil && req.Tools.Len() > 0
	var toolNames []string
	if req.Tools != nil {
		toolNames = req.Tools.Names()
	}

	state := guard.NewRunState(guard.Budget{
		MaxTotal:   e.cfg.MaxToolCalls,
		MaxPerTool: e.cfg.MaxPerTool,
	})
	var sandbox *tools.Sandbox
	if req.Tools != nil {
		sandbox = tools.NewSandbox(req.Tools, e.cfg.ToolTimeout(), e.logger)
	}

	reprompted := false
	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		result.IterationCount = iter + 1

		var schemas []map[string]any
		if toolsEnabled {
			schemas = req.Tools.Schemas()
		}

		resp, err := e.chat(ctx, e.models.Default, messages, schemas)
		if err != nil && iter == 0 && toolsEnabled {
			// Some providers reject the tool schema outright. Retry the
			// same iteration once as a plain chat before falling back.
			e.logger.Warn("provider call with tools failed, retrying without tools", "error", err)
			toolsEnabled = false
			resp, err = e.chat(ctx, e.models.Default, messages, nil)
		}
		if err != nil && e.models.Fallback != "" {
			e.logger.Warn("primary model exhausted retries, trying fallback",
				"primary", e.models.Default,
				"fallback", e.models.Fallback,
				"error", err,
			)
			toolsEnabled = false
			resp, err = e.llm.Chat(ctx, e.models.Fallback, messages, nil)
		}
		if err != nil {
			e.logger.Error("agent run failed", "user", req.UserID, "error", err)
			result.Response = failureMessage(err)
			result.LatencyMs = time.Since(start).Milliseconds()
			return result
		}

		result.InputTokens += resp.InputTokens
		result.OutputTokens += resp.OutputTokens

		calls := resp.Message.ToolCalls
		if len(calls) == 0 && toolsEnabled {
			// Weaker models emit tool calls as text in the content.
			// Recognized calls to registered tools join the normal
			// execution path.
			if parsed := llm.ParseTextToolCalls(resp.Message.Content); len(parsed) > 0 && anyKnownTool(parsed, toolNames) {
				calls = parsed
				resp.Message = llm.Message{Role: llm.RoleAssistant, ToolCalls: parsed}
			}
		}

		if len(calls) > 0 && toolsEnabled {
			for i := range calls {
				if calls[i].ID == "" {
					calls[i].ID = fmt.Sprintf("call_%d_%d", iter, i)
				}
			}
			resp.Message.ToolCalls = calls
			messages = append(messages, resp.Message)
			messages = append(messages, e.executeCalls(ctx, sandbox, state, calls, &result)...)
			continue
		}

		answer := sanitizeAnswer(resp.Message.Content, toolNames)
		if answer == "" && !reprompted && iter+1 < e.cfg.MaxIterations {
			reprompted = true
			messages = append(messages, resp.Message)
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: repromptInstruction})
			continue
		}
		if answer == "" {
			break
		}

		if e.writer != nil {
			e.writer.Record(req.UserID, req.Prompt, answer)
		}
		result.Response = answer
		result.LatencyMs = time.Since(start).Milliseconds()
		e.logger.Debug("agent run completed",
			"user", req.UserID,
			"iterations", result.IterationCount,
			"tool_calls", result.ToolCallCount,
			"latency_ms", result.LatencyMs,
		)
		return result
	}

	result.Response = maxIterationsResponse
	result.LatencyMs = time.Since(start).Milliseconds()
	e.logger.Warn("agent run hit iteration ceiling",
		"user", req.UserID,
		"iterations", result.IterationCount,
		"tool_calls", result.ToolCallCount,
	)
	return result
}

// buildMessages assembles the initial conversation: system prompt plus
// memory block first, then bounded recent history, then the new user
// turn.
func (e *Engine) buildMessages(ctx context.Context, req Request) []llm.Message {
	system := e.system
	var recent []memory.Record
	if e.assembler != nil {
		mc := e.assembler.GetContext(ctx, req.UserID, req.Prompt)
		if block := e.assembler.BuildBlock(mc); block != "" {
			system += "\n\n" + block
		}
		recent = mc.Recent
	}

	messages := make([]llm.Message, 0, len(recent)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, rec := range recent {
		messages = append(messages, llm.Message{Role: rec.Role, Content: rec.Content})
	}

	user := llm.Message{Role: llm.RoleUser, Content: req.Prompt}
	if req.Image != "" {
		user.Images = []string{req.Image}
	}
	return append(messages, user)
}

// executeCalls runs the requested tool calls one at a time. Budget
// verdicts substitute steering text for blocked calls; only calls that
// actually execute count toward ToolCallCount. Each tool message shares
// the id of the assistant call that requested it.
func (e *Engine) executeCalls(ctx context.Context, sandbox *tools.Sandbox, state *guard.RunState, calls []llm.ToolCall, result *RunResult) []llm.Message {
	out := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		name := call.Function.Name
		var content string

		verdict := state.Check(name, call.Function.Arguments)
		if verdict.Allowed {
			result.ToolCallCount++
			content = sandbox.Execute(ctx, name, call.Function.Arguments).Text()
		} else {
			e.logger.Debug("tool call blocked by budget", "tool", name, "total", state.Total())
			content = verdict.Instruction
		}

		out = append(out, llm.Message{
			Role:       llm.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
		})
	}
	return out
}

// chat calls the provider under the retry policy, binding the response
// out of the closure.
func (e *Engine) chat(ctx context.Context, model string, messages []llm.Message, schemas []map[string]any) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		r, err := e.llm.Chat(ctx, model, messages, schemas)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// failureMessage maps a terminal provider error to a short user-facing
// message.
func failureMessage(err error) string {
	switch retry.Classify(err) {
	case retry.ClassRateLimited:
		return "The language model is rate limiting requests right now. Please try again in a minute."
	case retry.ClassServerDown:
		return "The language model service appears to be down. Please try again later."
	case retry.ClassAuth:
		return "The language model rejected the configured credentials. Please check the API key."
	case retry.ClassNetwork:
		return "I couldn't reach the language model service. Please check the connection and try again."
	default:
		return "Something went wrong talking to the language model: " + truncate(err.Error(), maxFailureDetail)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
