package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout is the per-tool execution deadline when none is configured.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of one sandboxed tool invocation. Exactly one of
// Content or Err is meaningful; a failure never reaches the agent loop as
// a Go error or panic.
type Result struct {
	Content string
	Err     string
}

// Failed reports whether the invocation produced an error payload.
func (r Result) Failed() bool {
	return r.Err != ""
}

// Text returns the payload fed back into the conversation: the content
// on success, or an error marker the model can react to.
func (r Result) Text() string {
	if r.Failed() {
		return fmt.Sprintf("Error: %s", r.Err)
	}
	return r.Content
}

// Sandbox executes tools with a fixed timeout, normalizing every failure
// mode (unknown name, returned error, panic, timeout) into a Result.
// A handler that never settles is abandoned at the deadline; its
// goroutine is left to finish on its own and its eventual outcome is
// discarded.
type Sandbox struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSandbox creates a sandbox around a registry.
func NewSandbox(registry *Registry, timeout time.Duration, logger *slog.Logger) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

// Timeout returns the configured per-tool deadline.
func (s *Sandbox) Timeout() time.Duration {
	return s.timeout
}

type execOutcome struct {
	content string
	err     error
}

// Execute runs the named tool with the given arguments.
func (s *Sandbox) Execute(ctx context.Context, name string, args map[string]any) Result {
	tool := s.registry.Get(name)
	if tool == nil {
		return Result{Err: fmt.Sprintf("unknown tool: %s", name)}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The handler runs on its own goroutine so a handler that ignores
	// ctx cannot block the loop past the deadline. Buffered channel so
	// the goroutine can always deliver and exit after abandonment.
	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		content, err := tool.Handler(callCtx, args)
		done <- execOutcome{content: content, err: err}
	}()

	start := time.Now()
	select {
	case out := <-done:
		if out.err != nil {
			s.logger.Warn("tool failed",
				"tool", name,
				"duration", time.Since(start).Round(time.Millisecond),
				"error", out.err,
			)
			return Result{Err: out.err.Error()}
		}
		s.logger.Debug("tool completed",
			"tool", name,
			"duration", time.Since(start).Round(time.Millisecond),
			"result_len", len(out.content),
		)
		return Result{Content: out.content}

	case <-callCtx.Done():
		if ctx.Err() != nil {
			// The run itself was cancelled, not just this call.
			return Result{Err: fmt.Sprintf("%s cancelled: %v", name, ctx.Err())}
		}
		s.logger.Warn("tool timed out", "tool", name, "timeout", s.timeout)
		return Result{Err: fmt.Sprintf("%s timed out after %ds", name, int(s.timeout.Seconds()))}
	}
}
