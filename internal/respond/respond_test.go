package respond

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vkral/souffleur/internal/llm"
)

// fakeLLM scripts the client behavior per call.
type fakeLLM struct {
	calls      int
	upfrontErr error
	deltas     []llm.Delta
	gotMsgs    []llm.Message
}

func (f *fakeLLM) StreamCompletion(_ context.Context, messages []llm.Message) (<-chan llm.Delta, error) {
	f.calls++
	f.gotMsgs = messages
	if f.upfrontErr != nil {
		return nil, f.upfrontErr
	}
	ch := make(chan llm.Delta, len(f.deltas))
	for _, d := range f.deltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func drain(ch <-chan Fragment) []Fragment {
	var out []Fragment
	for f := range ch {
		out = append(out, f)
	}
	return out
}

func TestStreamHappyPath(t *testing.T) {
	fake := &fakeLLM{deltas: []llm.Delta{
		{Content: "I led "},
		{Content: "the migration "},
		{Content: "to Postgres."},
	}}
	g := New(fake)

	frags := drain(g.Stream(context.Background(), "system prompt", nil, "What did you do?"))

	if len(frags) != 3 {
		t.Fatalf("fragments = %d, want 3", len(frags))
	}
	for _, f := range frags {
		if f.Diagnostic {
			t.Errorf("unexpected diagnostic fragment: %q", f.Text)
		}
	}
	if got := Collect(frags); got != "I led the migration to Postgres." {
		t.Errorf("Collect = %q", got)
	}
}

func TestStreamMessageComposition(t *testing.T) {
	fake := &fakeLLM{deltas: []llm.Delta{{Content: "ok"}}}
	g := New(fake)

	history := []llm.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	drain(g.Stream(context.Background(), "the prompt", history, "current question?"))

	msgs := fake.gotMsgs
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "the prompt" {
		t.Errorf("first message = %+v, want system prompt", msgs[0])
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Errorf("history not passed through in order: %+v", msgs[1:3])
	}
	if last := msgs[3]; last.Role != "user" || last.Content != "current question?" {
		t.Errorf("last message = %+v, want the utterance", last)
	}
}

func TestStreamUpfrontErrorBecomesDiagnostic(t *testing.T) {
	fake := &fakeLLM{upfrontErr: errors.New("connection refused")}
	g := New(fake)

	frags := drain(g.Stream(context.Background(), "p", nil, "q?"))

	if len(frags) != 1 {
		t.Fatalf("fragments = %d, want 1 diagnostic", len(frags))
	}
	if !frags[0].Diagnostic {
		t.Error("fragment should be diagnostic")
	}
	if !strings.Contains(frags[0].Text, "connection refused") {
		t.Errorf("diagnostic text = %q, should mention the cause", frags[0].Text)
	}
	if got := Collect(frags); got != "" {
		t.Errorf("Collect over diagnostic-only stream = %q, want empty", got)
	}
}

func TestStreamMidStreamErrorBecomesDiagnostic(t *testing.T) {
	fake := &fakeLLM{deltas: []llm.Delta{
		{Content: "partial "},
		{Err: errors.New("stream reset")},
	}}
	g := New(fake)

	frags := drain(g.Stream(context.Background(), "p", nil, "q?"))

	if len(frags) != 2 {
		t.Fatalf("fragments = %d, want partial + diagnostic", len(frags))
	}
	if frags[0].Diagnostic || frags[0].Text != "partial " {
		t.Errorf("first fragment = %+v, want the partial content", frags[0])
	}
	if !frags[1].Diagnostic {
		t.Error("second fragment should be diagnostic")
	}
}

func TestGeneratorSurvivesFailures(t *testing.T) {
	fake := &fakeLLM{upfrontErr: errors.New("boom")}
	g := New(fake)

	// A failed generation must leave the generator usable for the next
	// dispatch.
	drain(g.Stream(context.Background(), "p", nil, "q1?"))

	fake.upfrontErr = nil
	fake.deltas = []llm.Delta{{Content: "recovered"}}

	frags := drain(g.Stream(context.Background(), "p", nil, "q2?"))
	if got := Collect(frags); got != "recovered" {
		t.Errorf("Collect after failure = %q, want %q", got, "recovered")
	}
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2", fake.calls)
	}
}

func TestCollectTrimsWhitespace(t *testing.T) {
	frags := []Fragment{{Text: "  an answer  "}}
	if got := Collect(frags); got != "an answer" {
		t.Errorf("Collect = %q", got)
	}
}
