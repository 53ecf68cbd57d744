package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Embedder generates a vector for a piece of text.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// FactReader provides the durable fact map for a user.
type FactReader interface {
	Get(userID string) (map[string]string, error)
}

// Context is the merged grounding context for one run: the three memory
// tiers, already filtered and ordered for rendering.
type Context struct {
	Recent   []Record          // last K turns, oldest first
	Semantic []Match           // relevant past turns, re-sorted oldest first
	Facts    map[string]string // durable key/value facts
}

// AssemblerConfig tunes retrieval and filtering.
type AssemblerConfig struct {
	ContextWindow int     // recent turns injected as history
	SemanticTopK  int     // similarity matches to retrieve
	Threshold     float32 // minimum cosine similarity to keep a match
}

// DefaultAssemblerConfig returns the standard retrieval tuning.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		ContextWindow: 10,
		SemanticTopK:  5,
		Threshold:     0.75,
	}
}

// Assembler merges the three memory tiers into one grounding context.
// Every retrieval failure degrades to an empty tier; memory problems
// never surface to the user or abort a run.
type Assembler struct {
	buffer   *Buffer
	vectors  *VectorStore
	facts    FactReader
	embedder Embedder
	cfg      AssemblerConfig
	logger   *slog.Logger

	// now is stubbed in tests for deterministic relative times.
	now func() time.Time
}

// NewAssembler creates an assembler. vectors, facts, and embedder may be
// nil; the corresponding tier is then always empty.
func NewAssembler(buffer *Buffer, vectors *VectorStore, facts FactReader, embedder Embedder, cfg AssemblerConfig, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultAssemblerConfig().ContextWindow
	}
	if cfg.SemanticTopK <= 0 {
		cfg.SemanticTopK = DefaultAssemblerConfig().SemanticTopK
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultAssemblerConfig().Threshold
	}
	return &Assembler{
		buffer:   buffer,
		vectors:  vectors,
		facts:    facts,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// GetContext assembles the grounding context for a new utterance.
//
// Semantic matches are selected by relevance (top-K above the
// threshold), de-duplicated against the recent buffer, then re-sorted
// chronologically oldest-first: similarity search returns results
// unordered by time, but the rendered block must read as a timeline.
func (a *Assembler) GetContext(ctx context.Context, userID, utterance string) *Context {
	result := &Context{
		Recent: a.buffer.Recent(userID, a.cfg.ContextWindow),
		Facts:  map[string]string{},
	}

	if a.facts != nil {
		facts, err := a.facts.Get(userID)
		if err != nil {
			a.logger.Warn("fact lookup failed", "user", userID, "error", err)
		} else if facts != nil {
			result.Facts = facts
		}
	}

	if a.vectors == nil || a.embedder == nil || utterance == "" {
		return result
	}

	vec, err := a.embedder.Generate(ctx, utterance)
	if err != nil {
		a.logger.Warn("embedding query failed", "user", userID, "error", err)
		return result
	}

	matches, err := a.vectors.Query(userID, vec, a.cfg.SemanticTopK)
	if err != nil {
		a.logger.Warn("semantic search failed", "user", userID, "error", err)
		return result
	}

	for _, m := range matches {
		if m.Score < a.cfg.Threshold {
			continue
		}
		// Drop matches that verbatim duplicate recent history; the two
		// tiers must never repeat information.
		if a.buffer.Contains(userID, m.Content) {
			continue
		}
		result.Semantic = append(result.Semantic, m)
	}

	sort.SliceStable(result.Semantic, func(i, j int) bool {
		return result.Semantic[i].Timestamp.Before(result.Semantic[j].Timestamp)
	})

	return result
}

// BuildBlock renders the context as text for the system prompt. Returns
// the empty string when both facts and semantic matches are empty; the
// recent buffer alone never triggers a labeled memory section, since it
// is injected separately as conversation history.
func (a *Assembler) BuildBlock(c *Context) string {
	if len(c.Facts) == 0 && len(c.Semantic) == 0 {
		return ""
	}

	var sb strings.Builder

	if len(c.Facts) > 0 {
		sb.WriteString("Known facts about this user:\n")
		keys := make([]string, 0, len(c.Facts))
		for k := range c.Facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, c.Facts[k])
		}
	}

	if len(c.Semantic) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Relevant past conversation:\n")
		now := a.now()
		for _, m := range c.Semantic {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", RelativeTime(now, m.Timestamp), m.Role, m.Content)
		}
	}

	return sb.String()
}

// RelativeTime renders how long ago t was as a short human phrase.
func RelativeTime(now, t time.Time) string {
	d := now.Sub(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dmo ago", int(d.Hours()/24/30))
	}
}
