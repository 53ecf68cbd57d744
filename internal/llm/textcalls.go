package llm

import (
	"encoding/json"
	"strings"
)

// ParseTextToolCalls attempts to extract tool calls from content text.
// Weaker models output tool calls as JSON in the content rather than
// using the native tool_calls field. This handles common formats:
//   - Raw JSON object: {"name": "...", "arguments": {...}}
//   - JSON array: [{"name": "...", "arguments": {...}}]
//   - Tagged: <tool_call>...</tool_call>
//
// The agent loop feeds recognized calls into the same execution path as
// native ones, and its output sanitizer uses the same detection to strip
// leaked tool syntax from final answers.
func ParseTextToolCalls(content string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	// Try to extract from <tool_call> tags
	if strings.Contains(content, "<tool_call>") {
		start := strings.Index(content, "<tool_call>")
		end := strings.Index(content, "</tool_call>")
		if start != -1 && end > start {
			content = strings.TrimSpace(content[start+len("<tool_call>") : end])
		} else if start != -1 {
			// No closing tag, take rest of content
			content = strings.TrimSpace(content[start+len("<tool_call>"):])
		}
	}

	// Try parsing as array of tool calls
	var calls []struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(content), &calls); err == nil && len(calls) > 0 {
		result := make([]ToolCall, 0, len(calls))
		for _, c := range calls {
			if c.Name == "" {
				continue
			}
			result = append(result, ToolCall{
				Function: FunctionCall{Name: c.Name, Arguments: c.Arguments},
			})
		}
		if len(result) > 0 {
			return result
		}
	}

	// Try parsing as single tool call object
	var single struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(content), &single); err == nil && single.Name != "" {
		return []ToolCall{{
			Function: FunctionCall{Name: single.Name, Arguments: single.Arguments},
		}}
	}

	return nil
}
