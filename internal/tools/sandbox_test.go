package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			s, _ := args["text"].(string)
			return s, nil
		},
	})
	sb := NewSandbox(r, time.Second, nil)

	res := sb.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	if res.Failed() {
		t.Fatalf("Execute failed: %s", res.Err)
	}
	if res.Content != "hello" {
		t.Errorf("Content = %q, want %q", res.Content, "hello")
	}
	if res.Text() != "hello" {
		t.Errorf("Text() = %q, want %q", res.Text(), "hello")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	sb := NewSandbox(NewRegistry(), time.Second, nil)

	res := sb.Execute(context.Background(), "nonexistent", nil)
	if !res.Failed() {
		t.Fatal("unknown tool did not fail")
	}
	if !strings.Contains(res.Err, "unknown tool") {
		t.Errorf("Err = %q, want unknown-tool message", res.Err)
	}
}

func TestExecuteToolError(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "broken",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		},
	})
	sb := NewSandbox(r, time.Second, nil)

	res := sb.Execute(context.Background(), "broken", nil)
	if !res.Failed() {
		t.Fatal("failing tool reported success")
	}
	if res.Err != "backend unavailable" {
		t.Errorf("Err = %q, want %q", res.Err, "backend unavailable")
	}
	if want := "Error: backend unavailable"; res.Text() != want {
		t.Errorf("Text() = %q, want %q", res.Text(), want)
	}
}

func TestExecutePanicNormalized(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "panicky",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("nil map write")
		},
	})
	sb := NewSandbox(r, time.Second, nil)

	res := sb.Execute(context.Background(), "panicky", nil)
	if !res.Failed() {
		t.Fatal("panicking tool reported success")
	}
	if !strings.Contains(res.Err, "panicked") {
		t.Errorf("Err = %q, want normalized panic message", res.Err)
	}
}

// A handler that never settles must produce a timeout-shaped result
// within the configured window; the loop never blocks on it.
func TestExecuteTimeoutAbandonsHandler(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	r := NewRegistry()
	r.Register(&Tool{
		Name: "stuck",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			<-block
			return "too late", nil
		},
	})
	sb := NewSandbox(r, 50*time.Millisecond, nil)

	start := time.Now()
	res := sb.Execute(context.Background(), "stuck", nil)
	elapsed := time.Since(start)

	if !res.Failed() {
		t.Fatal("stuck tool reported success")
	}
	if !strings.Contains(res.Err, "timed out") {
		t.Errorf("Err = %q, want timeout message", res.Err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Execute blocked for %v, want return near the 50ms deadline", elapsed)
	}
}

func TestExecuteParentCancellation(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	})
	sb := NewSandbox(r, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := sb.Execute(ctx, "slow", nil)
	if !res.Failed() {
		t.Fatal("cancelled tool reported success")
	}
	if !strings.Contains(res.Err, "cancel") {
		t.Errorf("Err = %q, want cancellation message", res.Err)
	}
}

func TestNewSandboxDefaults(t *testing.T) {
	sb := NewSandbox(NewRegistry(), 0, nil)
	if sb.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", sb.Timeout(), DefaultTimeout)
	}
}
