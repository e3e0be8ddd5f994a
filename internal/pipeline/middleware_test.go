package pipeline_test

import (
	"context"
	"testing"

	"loom/internal/pipeline"
)

type ctxKey string

type recordingMiddleware struct {
	name   string
	events *[]string
}

func (m *recordingMiddleware) Name() string { return m.name }

func (m *recordingMiddleware) BeforeStep(ctx context.Context, step *pipeline.StepContext) context.Context {
	*m.events = append(*m.events, m.name+":before")
	return context.WithValue(ctx, ctxKey(m.name), true)
}

func (m *recordingMiddleware) AfterStep(ctx context.Context, step *pipeline.StepContext) {
	*m.events = append(*m.events, m.name+":after")
}

func (m *recordingMiddleware) OnError(ctx context.Context, step *pipeline.StepContext) {
	*m.events = append(*m.events, m.name+":error")
}

type panickyMiddleware struct{}

func (panickyMiddleware) Name() string { return "panicky" }

func (panickyMiddleware) BeforeStep(ctx context.Context, step *pipeline.StepContext) context.Context {
	panic("hook bug")
}

func (panickyMiddleware) AfterStep(ctx context.Context, step *pipeline.StepContext) {
	panic("hook bug")
}

func newStep(name string) *pipeline.StepContext {
	return &pipeline.StepContext{Name: name, Metadata: make(map[string]any)}
}

func TestChainRunsHooksInRegistrationOrder(t *testing.T) {
	var events []string
	chain := pipeline.NewChain(nil,
		&recordingMiddleware{name: "first", events: &events},
		&recordingMiddleware{name: "second", events: &events},
	)

	step := newStep("download")
	ctx := chain.Before(context.Background(), step)
	chain.After(ctx, step)

	want := []string{"first:before", "second:before", "first:after", "second:after"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), events)
	}
	for i, event := range want {
		if events[i] != event {
			t.Fatalf("expected event %q at %d, got %q", event, i, events[i])
		}
	}
}

func TestChainThreadsContextThroughBeforeHooks(t *testing.T) {
	var events []string
	chain := pipeline.NewChain(nil,
		&recordingMiddleware{name: "alpha", events: &events},
		&recordingMiddleware{name: "beta", events: &events},
	)

	ctx := chain.Before(context.Background(), newStep("analysis"))
	for _, name := range []string{"alpha", "beta"} {
		if ctx.Value(ctxKey(name)) == nil {
			t.Fatalf("expected context value installed by %s", name)
		}
	}
}

func TestChainSwallowsHookPanics(t *testing.T) {
	var events []string
	chain := pipeline.NewChain(nil,
		panickyMiddleware{},
		&recordingMiddleware{name: "survivor", events: &events},
	)

	step := newStep("upload")
	ctx := chain.Before(context.Background(), step)
	if ctx == nil {
		t.Fatal("chain must return a usable context even after a hook panic")
	}
	chain.After(ctx, step)

	found := false
	for _, event := range events {
		if event == "survivor:after" {
			found = true
		}
	}
	if !found {
		t.Fatalf("later middleware must still run after a panic, events: %v", events)
	}
}

func TestChainErrorDispatch(t *testing.T) {
	var events []string
	chain := pipeline.NewChain(nil, &recordingMiddleware{name: "obs", events: &events})

	step := newStep("transcription")
	ctx := chain.Before(context.Background(), step)
	chain.Error(ctx, step)

	want := []string{"obs:before", "obs:error"}
	if len(events) != len(want) || events[1] != "obs:error" {
		t.Fatalf("expected error dispatch, got %v", events)
	}
}

func TestChainRegisterAppends(t *testing.T) {
	var events []string
	chain := pipeline.NewChain(nil)
	chain.Register(&recordingMiddleware{name: "late", events: &events})

	step := newStep("download")
	chain.After(chain.Before(context.Background(), step), step)
	if len(events) != 2 {
		t.Fatalf("registered middleware did not run: %v", events)
	}
}
