package llm

import "testing"

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantCalls int
		wantFirst string
	}{
		{
			name:      "raw object",
			content:   `{"name": "get_weather", "arguments": {"city": "Lisbon"}}`,
			wantCalls: 1,
			wantFirst: "get_weather",
		},
		{
			name:      "array",
			content:   `[{"name": "a", "arguments": {}}, {"name": "b", "arguments": {}}]`,
			wantCalls: 2,
			wantFirst: "a",
		},
		{
			name:      "tagged",
			content:   `<tool_call>{"name": "search", "arguments": {"q": "go"}}</tool_call>`,
			wantCalls: 1,
			wantFirst: "search",
		},
		{
			name:      "tagged without closing tag",
			content:   `<tool_call>{"name": "search", "arguments": {}}`,
			wantCalls: 1,
			wantFirst: "search",
		},
		{
			name:      "plain prose",
			content:   "The weather in Lisbon is sunny.",
			wantCalls: 0,
		},
		{
			name:      "empty",
			content:   "",
			wantCalls: 0,
		},
		{
			name:      "object without name",
			content:   `{"arguments": {"q": "go"}}`,
			wantCalls: 0,
		},
		{
			name:      "json that is not a call",
			content:   `{"answer": 42}`,
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ParseTextToolCalls(tt.content)
			if len(calls) != tt.wantCalls {
				t.Fatalf("got %d calls, want %d", len(calls), tt.wantCalls)
			}
			if tt.wantCalls > 0 && calls[0].Function.Name != tt.wantFirst {
				t.Errorf("first call = %q, want %q", calls[0].Function.Name, tt.wantFirst)
			}
		})
	}
}

func TestParseTextToolCallsArguments(t *testing.T) {
	calls := ParseTextToolCalls(`{"name": "search", "arguments": {"q": "golang", "limit": 3}}`)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}

	args := calls[0].Function.Arguments
	if args["q"] != "golang" {
		t.Errorf("q = %v, want golang", args["q"])
	}
	if n, ok := args["limit"].(float64); !ok || n != 3 {
		t.Errorf("limit = %v, want 3", args["limit"])
	}
}
