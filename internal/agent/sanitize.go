package agent

import (
	"regexp"
	"strings"

	"github.com/reeve-agent/reeve/internal/llm"
)

var toolCallTagRe = regexp.MustCompile(`(?s)<tool_call>.*?(?:</tool_call>|$)`)

// sanitizeAnswer strips tool-call syntax that weaker models emit as
// plain text instead of structured calls: <tool_call> blocks, bare
// tool-call JSON, and lines that are nothing but a registered tool name
// or a pseudo-invocation of one. Returns the trimmed remainder, which
// may be empty when the whole answer was tool syntax.
func sanitizeAnswer(content string, toolNames []string) string {
	out := toolCallTagRe.ReplaceAllString(content, "")

	if calls := llm.ParseTextToolCalls(out); len(calls) > 0 && anyKnownTool(calls, toolNames) {
		return ""
	}

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isToolToken(strings.TrimSpace(line), toolNames) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func anyKnownTool(calls []llm.ToolCall, toolNames []string) bool {
	for _, c := range calls {
		for _, n := range toolNames {
			if c.Function.Name == n {
				return true
			}
		}
	}
	return false
}

// isToolToken reports whether a line is a bare tool-name token such as
// "web_search" or "web_search(...)".
func isToolToken(line string, toolNames []string) bool {
	if line == "" {
		return false
	}
	for _, n := range toolNames {
		if line == n {
			return true
		}
		if strings.HasPrefix(line, n+"(") && strings.HasSuffix(line, ")") {
			return true
		}
	}
	return false
}
