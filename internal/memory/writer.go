package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FactWriter persists an extracted fact.
type FactWriter interface {
	Set(userID, key, value string) error
}

// ExtractFunc performs the LLM call that distills a flat fact map from
// recent turns. Wired from main with the actual chat client. A nil or
// empty result means nothing was worth persisting.
type ExtractFunc func(ctx context.Context, recent []Record) (map[string]string, error)

// Writer is the post-run memory write path. Everything it does is
// fire-and-forget: the exchange is appended to the recent buffer, both
// turns are embedded and upserted into the vector store, and every Nth
// appended message an extraction pass merges discovered facts into the
// durable store. All failures are logged and swallowed: a slow or
// broken write never delays or alters the user-visible response, at the
// accepted cost that a crash mid-write silently loses that one exchange
// from long-term memory.
type Writer struct {
	buffer   *Buffer
	vectors  *VectorStore
	facts    FactWriter
	embedder Embedder
	extract  ExtractFunc

	extractEvery  int
	extractWindow int
	timeout       time.Duration
	logger        *slog.Logger

	wg sync.WaitGroup
}

// NewWriter creates the write path. vectors, facts, embedder, and
// extract may each be nil, disabling the corresponding step.
func NewWriter(buffer *Buffer, vectors *VectorStore, facts FactWriter, embedder Embedder, extractEvery int, logger *slog.Logger) *Writer {
	if extractEvery <= 0 {
		extractEvery = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		buffer:        buffer,
		vectors:       vectors,
		facts:         facts,
		embedder:      embedder,
		extractEvery:  extractEvery,
		extractWindow: 6,
		timeout:       30 * time.Second,
		logger:        logger,
	}
}

// SetExtractFunc configures the LLM fact extraction call.
func (w *Writer) SetExtractFunc(fn ExtractFunc) {
	w.extract = fn
}

// SetTimeout configures the deadline for one background write pass.
func (w *Writer) SetTimeout(d time.Duration) {
	w.timeout = d
}

// Record dispatches the write path for a completed exchange and returns
// immediately. The caller never observes its outcome.
func (w *Writer) Record(userID, userMessage, finalAnswer string) {
	now := time.Now()
	userRec := Record{ID: newID(), Role: "user", Content: userMessage, Timestamp: now}
	asstRec := Record{ID: newID(), Role: "assistant", Content: finalAnswer, Timestamp: now}

	// Buffer appends happen synchronously so the next run for this user
	// (already serialized behind us) sees the exchange in its history.
	w.buffer.Append(userID, userRec)
	count := w.buffer.Append(userID, asstRec)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("memory write panicked", "user", userID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		w.persist(ctx, userID, userRec)
		w.persist(ctx, userID, asstRec)

		if w.extract != nil && w.facts != nil && count%w.extractEvery == 0 {
			w.runExtraction(ctx, userID)
		}
	}()
}

// Wait blocks until all dispatched writes settle. For tests and
// graceful shutdown only; the request path never calls it.
func (w *Writer) Wait() {
	w.wg.Wait()
}

// persist embeds one record and upserts it into the vector store.
func (w *Writer) persist(ctx context.Context, userID string, rec Record) {
	if w.vectors == nil || w.embedder == nil || rec.Content == "" {
		return
	}

	vec, err := w.embedder.Generate(ctx, rec.Content)
	if err != nil {
		w.logger.Warn("memory embedding failed", "user", userID, "error", err)
		return
	}

	if err := w.vectors.Upsert(rec.ID, userID, rec, vec); err != nil {
		w.logger.Warn("memory upsert failed", "user", userID, "error", err)
	}
}

// runExtraction asks the model for a flat fact map over the last few
// turns and merges it into the durable store, last write wins. An
// extraction that fails or returns nothing is silently dropped.
func (w *Writer) runExtraction(ctx context.Context, userID string) {
	recent := w.buffer.Recent(userID, w.extractWindow)
	if len(recent) == 0 {
		return
	}

	extracted, err := w.extract(ctx, recent)
	if err != nil {
		w.logger.Warn("fact extraction failed", "user", userID, "error", err)
		return
	}
	if len(extracted) == 0 {
		w.logger.Debug("extraction found no facts worth persisting", "user", userID)
		return
	}

	persisted := 0
	for key, value := range extracted {
		if key == "" || value == "" {
			continue
		}
		if err := w.facts.Set(userID, key, value); err != nil {
			w.logger.Warn("failed to persist extracted fact",
				"user", userID, "key", key, "error", err)
			continue
		}
		persisted++
	}

	if persisted > 0 {
		w.logger.Info("extracted facts from conversation",
			"user", userID, "count", persisted)
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
