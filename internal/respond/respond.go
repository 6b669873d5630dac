// Package respond streams suggested answers for dispatched interviewer
// questions. Generation failures are absorbed into the fragment stream so a
// bad LLM call never takes the session down.
package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/vkral/souffleur/internal/llm"
)

// Fragment is one streamed piece of a suggestion. Diagnostic fragments
// describe a generation failure and must not be recorded as answer text.
type Fragment struct {
	Text       string
	Diagnostic bool
}

// Generator produces suggestion streams from an LLM client.
type Generator struct {
	llm llm.Client
}

// New creates a generator backed by the given LLM client.
func New(client llm.Client) *Generator {
	return &Generator{llm: client}
}

// Stream generates a suggestion for the utterance, given the system prompt and
// conversation history. The returned channel yields fragments lazily and is
// closed when generation finishes. Stream itself never fails: any upfront or
// mid-stream error is delivered as a single diagnostic fragment.
func (g *Generator) Stream(ctx context.Context, systemPrompt string, history []llm.Message, utterance string) <-chan Fragment {
	out := make(chan Fragment, 100)

	go func() {
		defer close(out)

		messages := make([]llm.Message, 0, len(history)+2)
		messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
		messages = append(messages, history...)
		messages = append(messages, llm.Message{Role: "user", Content: utterance})

		deltas, err := g.llm.StreamCompletion(ctx, messages)
		if err != nil {
			emit(ctx, out, Fragment{Text: diagnosticText(err), Diagnostic: true})
			return
		}

		for d := range deltas {
			if d.Err != nil {
				emit(ctx, out, Fragment{Text: diagnosticText(d.Err), Diagnostic: true})
				return
			}
			if d.Content == "" {
				continue
			}
			if !emit(ctx, out, Fragment{Text: d.Content}) {
				return
			}
		}
	}()

	return out
}

// Collect drains a fragment stream and returns the concatenated answer text.
// Diagnostic fragments are excluded, so a failed generation collects to "".
func Collect(fragments []Fragment) string {
	var sb strings.Builder
	for _, f := range fragments {
		if f.Diagnostic {
			continue
		}
		sb.WriteString(f.Text)
	}
	return strings.TrimSpace(sb.String())
}

func emit(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- f:
		return true
	}
}

func diagnosticText(err error) string {
	return fmt.Sprintf("[generation error: %v]", err)
}
