package facts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/reeve-agent/reeve/internal/tools"
)

// RegisterTools adds the fact tools for one user to a registry. The user
// is bound at registration time so the model never addresses the store
// by raw user id.
func RegisterTools(registry *tools.Registry, store *Store, userID string) {
	registry.Register(&tools.Tool{
		Name:        "remember_fact",
		Description: "Store a durable fact about the user for later conversations. Use short snake_case keys (e.g. home_city, partner_name).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Short identifier for the fact (snake_case)",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The information to remember",
				},
			},
			"required": []string{"key", "value"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)
			if key == "" {
				return "", fmt.Errorf("key is required")
			}
			if value == "" {
				return "", fmt.Errorf("value is required")
			}

			if err := store.Set(userID, key, value); err != nil {
				return "", fmt.Errorf("store fact: %w", err)
			}
			return fmt.Sprintf("Remembered: %s = %s", key, value), nil
		},
	})

	registry.Register(&tools.Tool{
		Name:        "recall_facts",
		Description: "List the durable facts stored about the user, optionally filtered by a substring match on the key.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filter": map[string]any{
					"type":        "string",
					"description": "Optional substring to match against fact keys",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			filter, _ := args["filter"].(string)

			all, err := store.Get(userID)
			if err != nil {
				return "", fmt.Errorf("load facts: %w", err)
			}

			keys := make([]string, 0, len(all))
			for k := range all {
				if filter == "" || strings.Contains(k, filter) {
					keys = append(keys, k)
				}
			}
			if len(keys) == 0 {
				return "No stored facts found.", nil
			}
			sort.Strings(keys)

			var sb strings.Builder
			for _, k := range keys {
				fmt.Fprintf(&sb, "- %s: %s\n", k, all[k])
			}
			return sb.String(), nil
		},
	})
}
