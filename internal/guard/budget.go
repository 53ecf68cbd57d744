// Package guard enforces runaway-protection budgets on tool execution
// within a single agent run.
package guard

import (
	"encoding/json"
	"fmt"
)

// Default budget ceilings.
const (
	DefaultMaxTotal   = 15
	DefaultMaxPerTool = 5
)

// Steering instructions substituted for a tool result when a budget
// trips. They are conversation payloads, never errors: the run
// continues and the model is told to wrap up.
const (
	totalBudgetMsg = "Tool call budget for this conversation is exhausted. " +
		"Do not call any more tools. Answer the user now with the information you already have."
	perToolBudgetMsg = "You have called the tool %q too many times in this conversation. " +
		"Do not call it again. Answer the user now with the information you already have."
	repeatCallMsg = "You just called %q with exactly the same arguments. " +
		"Repeating the identical call will not produce a different result. " +
		"Do not repeat it; answer the user with what you have."
)

// Budget holds the configured ceilings.
type Budget struct {
	MaxTotal   int // total tool calls per run
	MaxPerTool int // calls per tool name per run
}

// DefaultBudget returns the standard ceilings.
func DefaultBudget() Budget {
	return Budget{MaxTotal: DefaultMaxTotal, MaxPerTool: DefaultMaxPerTool}
}

// Verdict is the outcome of a budget check. When Allowed is false,
// Instruction carries the steering text to substitute for the tool
// result.
type Verdict struct {
	Allowed     bool
	Instruction string
}

// RunState tracks budget consumption for one agent run. It is created at
// run start and discarded at run end, never persisted. Tool execution
// within a run is sequential, so no locking is needed; counters only
// ever increase.
type RunState struct {
	budget  Budget
	total   int
	perTool map[string]int
	lastSig string
	repeats int
}

// NewRunState creates budget state for a single run.
func NewRunState(budget Budget) *RunState {
	if budget.MaxTotal <= 0 {
		budget.MaxTotal = DefaultMaxTotal
	}
	if budget.MaxPerTool <= 0 {
		budget.MaxPerTool = DefaultMaxPerTool
	}
	return &RunState{
		budget:  budget,
		perTool: make(map[string]int),
	}
}

// Check evaluates a requested tool call against the global cap, the
// per-tool cap, and the identical-repeat rule, in that order. An allowed
// call is counted immediately; a blocked call is not (only executed
// calls consume budget). The request signature is recorded either way so
// repeat detection sees every consecutive request.
func (s *RunState) Check(name string, args map[string]any) Verdict {
	sig := callSignature(name, args)
	repeat := sig != "" && sig == s.lastSig
	s.lastSig = sig

	switch {
	case s.total >= s.budget.MaxTotal:
		return Verdict{Instruction: totalBudgetMsg}

	case s.perTool[name] >= s.budget.MaxPerTool:
		return Verdict{Instruction: fmt.Sprintf(perToolBudgetMsg, name)}

	case repeat:
		s.repeats++
		return Verdict{Instruction: fmt.Sprintf(repeatCallMsg, name)}
	}

	s.total++
	s.perTool[name]++
	return Verdict{Allowed: true}
}

// Total returns the number of tool calls executed so far in this run.
func (s *RunState) Total() int {
	return s.total
}

// Repeats returns how many identical-repeat requests were suppressed.
func (s *RunState) Repeats() int {
	return s.repeats
}

// callSignature produces a deterministic identity for a tool request.
// encoding/json sorts map keys, so two requests with the same name and
// semantically identical arguments always produce the same signature.
func callSignature(name string, args map[string]any) string {
	encoded, err := json.Marshal(args)
	if err != nil {
		// Unencodable arguments cannot be compared; treat as unique.
		return ""
	}
	return name + "\x00" + string(encoded)
}
